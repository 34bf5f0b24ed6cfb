package grpcserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"cityServiceDesk/internal/auth"
	"cityServiceDesk/internal/service"
	"cityServiceDesk/models"
	"cityServiceDesk/repository"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "requests.v1.RequestService"

const (
	maxPageSize     = 100 // Maximum allowed page size for list operations.
	defaultPageSize = 20  // Default page size for list operations.
	cursorSeparator = "|" // Separator for cursor components.
)

// RequestServiceServer is the server API for RequestService.
type RequestServiceServer interface {
	CreateCategory(context.Context, *CreateCategoryRequest) (*CreateCategoryResponse, error)
	ListCategories(context.Context, *ListCategoriesRequest) (*ListCategoriesResponse, error)
	CreateRequest(context.Context, *CreateRequestRequest) (*RequestResponse, error)
	GetRequest(context.Context, *GetRequestRequest) (*RequestResponse, error)
	ListRequests(context.Context, *ListRequestsRequest) (*ListRequestsResponse, error)
	UpdateStatus(context.Context, *UpdateStatusRequest) (*RequestResponse, error)
	DeleteRequest(context.Context, *DeleteRequestRequest) (*DeleteRequestResponse, error)
}

// RequestServer implements RequestServiceServer on top of the desk manager.
type RequestServer struct {
	Desk *service.Manager
}

var _ RequestServiceServer = (*RequestServer)(nil)

// RequestServiceDesc is registered with grpc.Server.RegisterService.
var RequestServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RequestServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateCategory", RequestServiceServer.CreateCategory),
		unary("ListCategories", RequestServiceServer.ListCategories),
		unary("CreateRequest", RequestServiceServer.CreateRequest),
		unary("GetRequest", RequestServiceServer.GetRequest),
		unary("ListRequests", RequestServiceServer.ListRequests),
		unary("UpdateStatus", RequestServiceServer.UpdateStatus),
		unary("DeleteRequest", RequestServiceServer.DeleteRequest),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "requests/v1/requests.proto",
}

// unary builds the method descriptor for one RPC, running the server
// interceptor chain the same way generated handlers do.
func unary[Req, Resp any](name string, call func(RequestServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(RequestServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

func caller(ctx context.Context) *auth.Principal {
	p, _ := auth.FromContext(ctx)
	return p
}

func (s *RequestServer) CreateCategory(ctx context.Context, req *CreateCategoryRequest) (*CreateCategoryResponse, error) {
	p := caller(ctx)
	c, err := s.Desk.CreateCategory(ctx, p, req.Name)
	if err != nil {
		return nil, toStatus(p, err)
	}
	return &CreateCategoryResponse{Category: c}, nil
}

func (s *RequestServer) ListCategories(ctx context.Context, _ *ListCategoriesRequest) (*ListCategoriesResponse, error) {
	p := caller(ctx)
	list, err := s.Desk.ListCategories(ctx, p)
	if err != nil {
		return nil, toStatus(p, err)
	}
	return &ListCategoriesResponse{Categories: list}, nil
}

// CreateRequest files a request owned by the authenticated caller.
func (s *RequestServer) CreateRequest(ctx context.Context, req *CreateRequestRequest) (*RequestResponse, error) {
	p := caller(ctx)
	if p == nil {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	r, err := s.Desk.CreateRequest(ctx, p, service.NewRequest{
		OwnerID:     p.UserID,
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		return nil, toStatus(p, err)
	}
	return &RequestResponse{Request: r}, nil
}

func (s *RequestServer) GetRequest(ctx context.Context, req *GetRequestRequest) (*RequestResponse, error) {
	if req.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	p := caller(ctx)
	r, err := s.Desk.GetRequest(ctx, p, req.ID)
	if err != nil {
		return nil, toStatus(p, err)
	}
	return &RequestResponse{Request: r}, nil
}

// ListRequests returns a page of requests, newest first.
func (s *RequestServer) ListRequests(ctx context.Context, req *ListRequestsRequest) (*ListRequestsResponse, error) {
	params := repository.ListRequestsParams{PageSize: defaultPageSize}
	if req.PageSize > 0 {
		params.PageSize = int(req.PageSize)
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}
	for _, raw := range req.Statuses {
		st, ok := models.ParseStatus(raw)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "unknown status %q", raw)
		}
		params.Statuses = append(params.Statuses, st)
	}
	if req.OwnerID > 0 {
		owner := req.OwnerID
		params.OwnerID = &owner
	}
	if req.CategoryID > 0 {
		cat := req.CategoryID
		params.CategoryID = &cat
	}
	if req.PageToken != "" {
		after, id, err := decodeCursor(req.PageToken)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid page_token: %v", err)
		}
		params.AfterTime, params.AfterID = after, id
	}

	p := caller(ctx)
	list, err := s.Desk.ListPage(ctx, p, params)
	if err != nil {
		return nil, toStatus(p, err)
	}

	// Build next page token if we have a full page.
	next := ""
	if len(list) == params.PageSize && len(list) > 0 {
		last := list[len(list)-1]
		next = encodeCursor(last.CreatedAt, last.ID)
	}
	return &ListRequestsResponse{Requests: list, NextPageToken: next}, nil
}

// UpdateStatus runs a lifecycle transition.
func (s *RequestServer) UpdateStatus(ctx context.Context, req *UpdateStatusRequest) (*RequestResponse, error) {
	if req.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	// Unknown statuses are rejected by the lifecycle, after the access check.
	st, ok := models.ParseStatus(req.Status)
	if !ok {
		st = models.RequestStatus(req.Status)
	}
	p := caller(ctx)
	r, err := s.Desk.Transition(ctx, p, req.ID, service.TransitionInput{
		Status:          st,
		PhotoURL:        req.PhotoURL,
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		return nil, toStatus(p, err)
	}
	return &RequestResponse{Request: r}, nil
}

func (s *RequestServer) DeleteRequest(ctx context.Context, req *DeleteRequestRequest) (*DeleteRequestResponse, error) {
	if req.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	p := caller(ctx)
	if err := s.Desk.DeleteRequest(ctx, p, req.ID); err != nil {
		return nil, toStatus(p, err)
	}
	return &DeleteRequestResponse{}, nil
}

// toStatus maps desk errors onto gRPC status codes. Authorization failures
// of anonymous callers surface as Unauthenticated.
func toStatus(p *auth.Principal, err error) error {
	switch {
	case errors.Is(err, models.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, models.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, models.ErrConflict):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, models.ErrAuthorization):
		if p == nil {
			return status.Error(codes.Unauthenticated, err.Error())
		}
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		return status.Errorf(codes.Internal, "internal error: %v", err)
	}
}

// encodeCursor builds an opaque next_page_token from a creation time and request id.
func encodeCursor(createdAt time.Time, id int64) string {
	raw := strconv.FormatInt(createdAt.UnixNano(), 10) + cursorSeparator + strconv.FormatInt(id, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodeCursor parses an opaque page_token back into creation time and request id.
func decodeCursor(token string) (time.Time, int64, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("base64: %w", err)
	}
	parts := strings.SplitN(string(b), cursorSeparator, 2)
	if len(parts) != 2 {
		return time.Time{}, 0, fmt.Errorf("invalid cursor format")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("parse time: %w", err)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return time.Time{}, 0, fmt.Errorf("parse id: %q", parts[1])
	}
	return time.Unix(0, nanos).UTC(), id, nil
}
