package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cityServiceDesk/internal/filter"
	"cityServiceDesk/internal/service"
	"cityServiceDesk/models"
)

// Handler holds the services the routes call into.
type Handler struct {
	desk  *service.Manager
	users *service.Directory
}

func NewHandler(desk *service.Manager, users *service.Directory) *Handler {
	return &Handler{desk: desk, users: users}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Categories ---

type createCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format: "+err.Error())
		return
	}

	category, err := h.desk.CreateCategory(c.Request.Context(), principal(c), req.Name)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, category)
}

func (h *Handler) ListCategories(c *gin.Context) {
	list, err := h.desk.ListCategories(c.Request.Context(), principal(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// --- Requests ---

// categoryRef accepts a category given either by name or by numeric id.
type categoryRef string

func (r *categoryRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = categoryRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("category must be a name or an id")
	}
	*r = categoryRef(n.String())
	return nil
}

type createRequestRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    categoryRef `json:"category" binding:"required"`
	PhotoURL    string      `json:"photoUrl"`
	UserID      int64       `json:"userId"`
}

// CreateRequest files a new request. userId defaults to the caller.
func (h *Handler) CreateRequest(c *gin.Context) {
	var req createRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format: "+err.Error())
		return
	}

	caller := principal(c)
	owner := req.UserID
	if owner == 0 && caller != nil {
		owner = caller.UserID
	}

	created, err := h.desk.CreateRequest(c.Request.Context(), caller, service.NewRequest{
		OwnerID:     owner,
		Title:       req.Title,
		Description: req.Description,
		Category:    string(req.Category),
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// ListRequests lists requests newest first. Optional query parameters:
// userId (one owner), status and category (filters; "all" disables them).
func (h *Handler) ListRequests(c *gin.Context) {
	q := service.Query{Criteria: filter.Criteria{
		Status:   c.Query("status"),
		Category: c.Query("category"),
	}}
	if raw := c.Query("userId"); raw != "" {
		owner, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid userId")
			return
		}
		q.OwnerID = &owner
	}
	h.search(c, q)
}

// MyRequests lists the requests of ?userId, or of the caller when omitted.
func (h *Handler) MyRequests(c *gin.Context) {
	q := service.Query{Criteria: filter.Criteria{
		Status:   c.Query("status"),
		Category: c.Query("category"),
	}}
	owner := int64(0)
	if raw := c.Query("userId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid userId")
			return
		}
		owner = id
	} else if p := principal(c); p != nil {
		owner = p.UserID
	}
	q.OwnerID = &owner
	h.search(c, q)
}

func (h *Handler) search(c *gin.Context, q service.Query) {
	list, err := h.desk.Search(c.Request.Context(), principal(c), q)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	req, err := h.desk.GetRequest(c.Request.Context(), principal(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type updateStatusRequest struct {
	Status          string `json:"status" binding:"required"`
	PhotoURL        string `json:"photoUrl"`
	RejectionReason string `json:"rejectionReason"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format: "+err.Error())
		return
	}
	updated, err := h.desk.Transition(c.Request.Context(), principal(c), id, service.TransitionInput{
		Status:          normalizeStatus(req.Status),
		PhotoURL:        req.PhotoURL,
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.desk.DeleteRequest(c.Request.Context(), principal(c), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Users ---

type registerRequest struct {
	FullName string `json:"fullName"`
	Login    string `json:"login" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format: "+err.Error())
		return
	}
	user, err := h.users.Register(c.Request.Context(), req.FullName, req.Login, req.Email)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.users.Me(c.Request.Context(), principal(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// normalizeStatus maps front-end keys onto canonical statuses. Unknown values
// pass through and are rejected by the lifecycle after the access check.
func normalizeStatus(raw string) models.RequestStatus {
	if st, ok := models.ParseStatus(raw); ok {
		return st
	}
	return models.RequestStatus(raw)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid request id")
		return 0, false
	}
	return id, true
}
