package grpcserver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"cityServiceDesk/internal/service"
	"cityServiceDesk/internal/testutil"
	"cityServiceDesk/models"
	"cityServiceDesk/repository"
)

const testSecret = "grpc-test-secret"

type grpcEnv struct {
	client  *RequestClient
	health  healthpb.HealthClient
	citizen *models.User
	other   *models.User
	admin   *models.User
	roads   *models.Category
}

func newGRPCEnv(t *testing.T, dbName string) *grpcEnv {
	t.Helper()
	d := testutil.OpenInMemoryDB(t, dbName)
	users := repository.NewUserRepository(d)
	cats := repository.NewCategoryRepository(d)
	reqs := repository.NewRequestRepository(d)

	minute := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		minute = minute.Add(time.Minute)
		return minute
	}
	desk := service.NewManager(cats, reqs, service.WithClock(clock))
	srv := NewServer(testSecret, Deps{
		Users:  users,
		Desk:   desk,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &grpcEnv{
		client:  NewRequestClient(conn),
		health:  healthpb.NewHealthClient(conn),
		citizen: testutil.SeedUser(t, users, "citizen", models.RoleCitizen),
		other:   testutil.SeedUser(t, users, "neighbour", models.RoleCitizen),
		admin:   testutil.SeedUser(t, users, "admin", models.RoleAdmin),
		roads:   testutil.SeedCategory(t, cats, "Roads"),
	}
}

func as(t *testing.T, u *models.User) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	if u == nil {
		return ctx
	}
	token := testutil.GenerateJWTHS256(t, testSecret, u.ID, string(u.Role))
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func requireCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, status.Code(err), "error: %v", err)
}

func TestHealthOverJSONCodec(t *testing.T) {
	env := newGRPCEnv(t, "grpc_health")
	resp, err := env.health.Check(as(t, nil), &healthpb.HealthCheckRequest{Service: ServiceName},
		grpc.CallContentSubtype(codecName))
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestRequestLifecycleOverGRPC(t *testing.T) {
	env := newGRPCEnv(t, "grpc_lifecycle")

	created, err := env.client.CreateRequest(as(t, env.citizen), &CreateRequestRequest{
		Title:       "Pothole on Elm St",
		Description: "Deep pothole near the crossing",
		CategoryID:  env.roads.ID,
	})
	require.NoError(t, err)
	req := created.Request
	assert.Equal(t, models.StatusNew, req.Status)
	assert.Equal(t, env.citizen.ID, req.OwnerID)
	assert.Equal(t, "Roads", req.CategoryName)

	got, err := env.client.GetRequest(as(t, nil), &GetRequestRequest{ID: req.ID})
	require.NoError(t, err)
	assert.Equal(t, req.Title, got.Request.Title)

	_, err = env.client.UpdateStatus(as(t, env.citizen), &UpdateStatusRequest{ID: req.ID, Status: "IN_PROGRESS"})
	requireCode(t, err, codes.PermissionDenied)

	_, err = env.client.UpdateStatus(as(t, env.citizen), &UpdateStatusRequest{ID: req.ID, Status: "LOST"})
	requireCode(t, err, codes.PermissionDenied)

	_, err = env.client.UpdateStatus(as(t, env.admin), &UpdateStatusRequest{ID: req.ID, Status: "LOST"})
	requireCode(t, err, codes.InvalidArgument)

	_, err = env.client.UpdateStatus(as(t, env.admin), &UpdateStatusRequest{ID: req.ID, Status: "COMPLETED"})
	requireCode(t, err, codes.InvalidArgument)

	done, err := env.client.UpdateStatus(as(t, env.admin), &UpdateStatusRequest{
		ID: req.ID, Status: "COMPLETED", PhotoURL: "https://img.example.org/after.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Request.Status)
	assert.Equal(t, "https://img.example.org/after.jpg", done.Request.Photo())

	_, err = env.client.UpdateStatus(as(t, env.admin), &UpdateStatusRequest{ID: req.ID, Status: "REJECTED", RejectionReason: "dup"})
	requireCode(t, err, codes.FailedPrecondition)

	_, err = env.client.DeleteRequest(as(t, env.citizen), &DeleteRequestRequest{ID: req.ID})
	requireCode(t, err, codes.FailedPrecondition)

	_, err = env.client.GetRequest(as(t, nil), &GetRequestRequest{ID: 9999})
	requireCode(t, err, codes.NotFound)
}

func TestCategoriesAndAuthCodes(t *testing.T) {
	env := newGRPCEnv(t, "grpc_categories")

	_, err := env.client.CreateCategory(as(t, nil), &CreateCategoryRequest{Name: "Lighting"})
	requireCode(t, err, codes.Unauthenticated)

	_, err = env.client.CreateCategory(as(t, env.citizen), &CreateCategoryRequest{Name: "Lighting"})
	requireCode(t, err, codes.PermissionDenied)

	// A forged ADMIN claim is demoted to the stored role.
	forged := testutil.GenerateJWTHS256(t, testSecret, env.citizen.ID, string(models.RoleAdmin))
	ctx := metadata.AppendToOutgoingContext(as(t, nil), "authorization", "Bearer "+forged)
	_, err = env.client.CreateCategory(ctx, &CreateCategoryRequest{Name: "Lighting"})
	requireCode(t, err, codes.PermissionDenied)

	bad := metadata.AppendToOutgoingContext(as(t, nil), "authorization", "Bearer not-a-token")
	_, err = env.client.ListCategories(bad, &ListCategoriesRequest{})
	requireCode(t, err, codes.Unauthenticated)

	c, err := env.client.CreateCategory(as(t, env.admin), &CreateCategoryRequest{Name: "Lighting"})
	require.NoError(t, err)
	assert.Equal(t, "Lighting", c.Category.Name)

	_, err = env.client.CreateCategory(as(t, env.admin), &CreateCategoryRequest{Name: "Lighting"})
	requireCode(t, err, codes.InvalidArgument)

	list, err := env.client.ListCategories(as(t, nil), &ListCategoriesRequest{})
	require.NoError(t, err)
	require.Len(t, list.Categories, 2)
	assert.Equal(t, "Roads", list.Categories[0].Name)
}

func TestListRequestsPaginationAndFilters(t *testing.T) {
	env := newGRPCEnv(t, "grpc_list")

	var ids []int64
	for i, owner := range []*models.User{env.citizen, env.citizen, env.other, env.citizen, env.other} {
		r, err := env.client.CreateRequest(as(t, owner), &CreateRequestRequest{
			Title:       "Issue",
			Description: "Something broke",
			CategoryID:  env.roads.ID,
		})
		require.NoError(t, err, "create %d", i)
		ids = append(ids, r.Request.ID)
	}
	_, err := env.client.UpdateStatus(as(t, env.admin), &UpdateStatusRequest{ID: ids[3], Status: "in_progress"})
	require.NoError(t, err)

	// Chain pages of two: newest first across page boundaries.
	var seen []int64
	token := ""
	for page := 0; page < 5; page++ {
		resp, err := env.client.ListRequests(as(t, nil), &ListRequestsRequest{PageSize: 2, PageToken: token})
		require.NoError(t, err)
		for _, r := range resp.Requests {
			seen = append(seen, r.ID)
		}
		token = resp.NextPageToken
		if token == "" {
			break
		}
	}
	assert.Equal(t, []int64{ids[4], ids[3], ids[2], ids[1], ids[0]}, seen)

	mine, err := env.client.ListRequests(as(t, env.citizen), &ListRequestsRequest{OwnerID: env.citizen.ID})
	require.NoError(t, err)
	assert.Len(t, mine.Requests, 3)

	_, err = env.client.ListRequests(as(t, env.other), &ListRequestsRequest{OwnerID: env.citizen.ID})
	requireCode(t, err, codes.PermissionDenied)

	inProgress, err := env.client.ListRequests(as(t, nil), &ListRequestsRequest{Statuses: []string{"IN_PROGRESS"}})
	require.NoError(t, err)
	require.Len(t, inProgress.Requests, 1)
	assert.Equal(t, ids[3], inProgress.Requests[0].ID)

	_, err = env.client.ListRequests(as(t, nil), &ListRequestsRequest{Statuses: []string{"LOST"}})
	requireCode(t, err, codes.InvalidArgument)

	_, err = env.client.ListRequests(as(t, nil), &ListRequestsRequest{PageToken: "%%%"})
	requireCode(t, err, codes.InvalidArgument)
}

func TestDeleteOverGRPC(t *testing.T) {
	env := newGRPCEnv(t, "grpc_delete")

	r, err := env.client.CreateRequest(as(t, env.citizen), &CreateRequestRequest{
		Title: "Broken bench", Description: "Slats missing", CategoryID: env.roads.ID,
	})
	require.NoError(t, err)

	_, err = env.client.DeleteRequest(as(t, env.other), &DeleteRequestRequest{ID: r.Request.ID})
	requireCode(t, err, codes.PermissionDenied)

	_, err = env.client.DeleteRequest(as(t, env.citizen), &DeleteRequestRequest{ID: r.Request.ID})
	require.NoError(t, err)

	_, err = env.client.GetRequest(as(t, nil), &GetRequestRequest{ID: r.Request.ID})
	requireCode(t, err, codes.NotFound)

	_, err = env.client.CreateRequest(as(t, nil), &CreateRequestRequest{Title: "x", Description: "y", CategoryID: env.roads.ID})
	requireCode(t, err, codes.Unauthenticated)
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 30, 0, 123, time.UTC)
	gotTime, gotID, err := decodeCursor(encodeCursor(at, 42))
	require.NoError(t, err)
	assert.True(t, at.Equal(gotTime))
	assert.Equal(t, int64(42), gotID)

	_, _, err = decodeCursor("bm9zZXBhcmF0b3I")
	assert.Error(t, err)
}
