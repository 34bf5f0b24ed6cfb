package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

// RequestClient calls RequestService over a client connection using the JSON codec.
type RequestClient struct {
	cc grpc.ClientConnInterface
}

func NewRequestClient(cc grpc.ClientConnInterface) *RequestClient {
	return &RequestClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RequestClient) CreateCategory(ctx context.Context, in *CreateCategoryRequest, opts ...grpc.CallOption) (*CreateCategoryResponse, error) {
	return invoke[CreateCategoryResponse](ctx, c.cc, "CreateCategory", in, opts)
}

func (c *RequestClient) ListCategories(ctx context.Context, in *ListCategoriesRequest, opts ...grpc.CallOption) (*ListCategoriesResponse, error) {
	return invoke[ListCategoriesResponse](ctx, c.cc, "ListCategories", in, opts)
}

func (c *RequestClient) CreateRequest(ctx context.Context, in *CreateRequestRequest, opts ...grpc.CallOption) (*RequestResponse, error) {
	return invoke[RequestResponse](ctx, c.cc, "CreateRequest", in, opts)
}

func (c *RequestClient) GetRequest(ctx context.Context, in *GetRequestRequest, opts ...grpc.CallOption) (*RequestResponse, error) {
	return invoke[RequestResponse](ctx, c.cc, "GetRequest", in, opts)
}

func (c *RequestClient) ListRequests(ctx context.Context, in *ListRequestsRequest, opts ...grpc.CallOption) (*ListRequestsResponse, error) {
	return invoke[ListRequestsResponse](ctx, c.cc, "ListRequests", in, opts)
}

func (c *RequestClient) UpdateStatus(ctx context.Context, in *UpdateStatusRequest, opts ...grpc.CallOption) (*RequestResponse, error) {
	return invoke[RequestResponse](ctx, c.cc, "UpdateStatus", in, opts)
}

func (c *RequestClient) DeleteRequest(ctx context.Context, in *DeleteRequestRequest, opts ...grpc.CallOption) (*DeleteRequestResponse, error) {
	return invoke[DeleteRequestResponse](ctx, c.cc, "DeleteRequest", in, opts)
}
