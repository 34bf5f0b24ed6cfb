package grpcserver

import "cityServiceDesk/models"

type CreateCategoryRequest struct {
	Name string `json:"name"`
}

type CreateCategoryResponse struct {
	Category *models.Category `json:"category"`
}

type ListCategoriesRequest struct{}

type ListCategoriesResponse struct {
	Categories []models.Category `json:"categories"`
}

// CreateRequestRequest files a request on behalf of the authenticated caller.
type CreateRequestRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CategoryID  int64  `json:"categoryId"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

type RequestResponse struct {
	Request *models.Request `json:"request"`
}

type GetRequestRequest struct {
	ID int64 `json:"id"`
}

// ListRequestsRequest selects a page of requests. Zero OwnerID and
// CategoryID mean "any"; an empty Statuses list matches every status.
type ListRequestsRequest struct {
	Statuses   []string `json:"statuses,omitempty"`
	OwnerID    int64    `json:"ownerId,omitempty"`
	CategoryID int64    `json:"categoryId,omitempty"`
	PageSize   int32    `json:"pageSize,omitempty"`
	PageToken  string   `json:"pageToken,omitempty"`
}

type ListRequestsResponse struct {
	Requests      []models.Request `json:"requests"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

type UpdateStatusRequest struct {
	ID              int64  `json:"id"`
	Status          string `json:"status"`
	PhotoURL        string `json:"photoUrl,omitempty"`
	RejectionReason string `json:"rejectionReason,omitempty"`
}

type DeleteRequestRequest struct {
	ID int64 `json:"id"`
}

type DeleteRequestResponse struct{}
