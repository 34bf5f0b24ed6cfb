package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cityServiceDesk/internal/service"
	"cityServiceDesk/internal/testutil"
	"cityServiceDesk/models"
	"cityServiceDesk/repository"
)

const testSecret = "http-test-secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type httpEnv struct {
	router  *gin.Engine
	citizen *models.User
	other   *models.User
	admin   *models.User
	roads   *models.Category
	parks   *models.Category
}

func newHTTPEnv(t *testing.T, dbName string) *httpEnv {
	t.Helper()
	d := testutil.OpenInMemoryDB(t, dbName)
	users := repository.NewUserRepository(d)
	cats := repository.NewCategoryRepository(d)
	reqs := repository.NewRequestRepository(d)

	minute := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		minute = minute.Add(time.Minute)
		return minute
	}
	h := NewHandler(service.NewManager(cats, reqs, service.WithClock(clock)), service.NewDirectory(users))
	router := SetupRouter(h, RouterConfig{
		JWTSecret:   testSecret,
		Users:       users,
		CORSOrigins: []string{"http://localhost:5173"},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &httpEnv{
		router:  router,
		citizen: testutil.SeedUser(t, users, "citizen", models.RoleCitizen),
		other:   testutil.SeedUser(t, users, "neighbour", models.RoleCitizen),
		admin:   testutil.SeedUser(t, users, "admin", models.RoleAdmin),
		roads:   testutil.SeedCategory(t, cats, "Roads"),
		parks:   testutil.SeedCategory(t, cats, "Parks"),
	}
}

// do performs a request as u (anonymous when nil) and returns the recorder.
func (e *httpEnv) do(t *testing.T, u *models.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+testutil.GenerateJWTHS256(t, testSecret, u.ID, string(u.Role)))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func (e *httpEnv) file(t *testing.T, u *models.User, title string, category any) models.Request {
	t.Helper()
	w := e.do(t, u, http.MethodPost, "/requests", gin.H{
		"title":       title,
		"description": "details for " + title,
		"category":    category,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Request](t, w)
}

func TestHealthAndRequestID(t *testing.T) {
	env := newHTTPEnv(t, "http_health")
	w := env.do(t, nil, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "trace-1")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, "trace-1", rec.Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	env := newHTTPEnv(t, "http_cors")
	req := httptest.NewRequest(http.MethodOptions, "/requests", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCategoryRoutes(t *testing.T) {
	env := newHTTPEnv(t, "http_categories")

	w := env.do(t, nil, http.MethodPost, "/categories", gin.H{"name": "Lighting"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, env.citizen, http.MethodPost, "/categories", gin.H{"name": "Lighting"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decode[errorBody](t, w).Error)

	w = env.do(t, env.admin, http.MethodPost, "/categories", gin.H{"name": "Lighting"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Lighting", decode[models.Category](t, w).Name)

	w = env.do(t, env.admin, http.MethodPost, "/categories", gin.H{"name": "Lighting"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, env.admin, http.MethodPost, "/categories", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, nil, http.MethodGet, "/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	names := []string{}
	for _, c := range decode[[]models.Category](t, w) {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Roads", "Parks", "Lighting"}, names)
}

func TestCreateRequest(t *testing.T) {
	env := newHTTPEnv(t, "http_create")

	byName := env.file(t, env.citizen, "Pothole", "Roads")
	assert.Equal(t, env.roads.ID, byName.CategoryID)
	assert.Equal(t, models.StatusNew, byName.Status)
	assert.Equal(t, env.citizen.ID, byName.OwnerID)

	byID := env.file(t, env.citizen, "Broken swing", env.parks.ID)
	assert.Equal(t, "Parks", byID.CategoryName)

	w := env.do(t, env.citizen, http.MethodPost, "/requests/create", gin.H{
		"title": "Legacy", "description": "old path", "category": "Roads", "userId": env.citizen.ID,
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, env.citizen, http.MethodPost, "/requests", gin.H{
		"title": "Someone else", "description": "x", "category": "Roads", "userId": env.other.ID,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, nil, http.MethodPost, "/requests", gin.H{"title": "Anon", "description": "x", "category": "Roads"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, nil, http.MethodPost, "/requests", gin.H{"title": "Anon", "description": "x", "category": "Sewers"})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "anonymous callers are denied before the category lookup")

	w = env.do(t, env.citizen, http.MethodPost, "/requests", gin.H{"title": "Nowhere", "description": "x", "category": "Sewers"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[errorBody](t, w).Error)

	w = env.do(t, env.citizen, http.MethodPost, "/requests", gin.H{"title": "  ", "description": "x", "category": "Roads"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, env.citizen, http.MethodPost, "/requests", gin.H{"title": "t", "description": "x", "category": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndFilterRoutes(t *testing.T) {
	env := newHTTPEnv(t, "http_list")

	a := env.file(t, env.citizen, "A", "Roads")
	b := env.file(t, env.other, "B", "Parks")
	c := env.file(t, env.citizen, "C", "Parks")

	w := env.do(t, env.admin, http.MethodPatch, "/requests/"+strconv.FormatInt(b.ID, 10)+"/status", gin.H{"status": "in_progress"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ids := func(list []models.Request) []int64 {
		out := []int64{}
		for _, r := range list {
			out = append(out, r.ID)
		}
		return out
	}

	for _, path := range []string{"/requests", "/requests/get_all"} {
		w = env.do(t, nil, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []int64{c.ID, b.ID, a.ID}, ids(decode[[]models.Request](t, w)), path)
	}

	// The web front end reads category.name and date from the legacy listing.
	w = env.do(t, nil, http.MethodGet, "/requests/get_all", nil)
	legacy := decode[[]struct {
		Category struct {
			Name string `json:"name"`
		} `json:"category"`
		Date time.Time `json:"date"`
	}](t, w)
	require.Len(t, legacy, 3)
	assert.Equal(t, "Parks", legacy[0].Category.Name)
	assert.False(t, legacy[0].Date.IsZero())

	w = env.do(t, nil, http.MethodGet, "/requests?status=IN_PROGRESS", nil)
	assert.Equal(t, []int64{b.ID}, ids(decode[[]models.Request](t, w)))

	w = env.do(t, nil, http.MethodGet, "/requests?status=all&category=Parks", nil)
	assert.Equal(t, []int64{c.ID, b.ID}, ids(decode[[]models.Request](t, w)))

	w = env.do(t, nil, http.MethodGet, "/requests?status=bogus", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Request](t, w))

	mine := "/requests/my?userId=" + strconv.FormatInt(env.citizen.ID, 10)
	w = env.do(t, env.citizen, http.MethodGet, mine, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{c.ID, a.ID}, ids(decode[[]models.Request](t, w)))

	w = env.do(t, env.citizen, http.MethodGet, "/requests/my", nil)
	assert.Equal(t, []int64{c.ID, a.ID}, ids(decode[[]models.Request](t, w)))

	w = env.do(t, env.other, http.MethodGet, mine, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, env.admin, http.MethodGet, "/requests?userId="+strconv.FormatInt(env.citizen.ID, 10), nil)
	assert.Equal(t, []int64{c.ID, a.ID}, ids(decode[[]models.Request](t, w)))

	w = env.do(t, nil, http.MethodGet, "/requests?userId=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusAndDeleteRoutes(t *testing.T) {
	env := newHTTPEnv(t, "http_status")
	r := env.file(t, env.citizen, "Fallen tree", "Parks")
	path := "/requests/" + strconv.FormatInt(r.ID, 10)

	w := env.do(t, env.citizen, http.MethodPatch, path+"/status", gin.H{"status": "REJECTED", "rejectionReason": "no"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The access check runs before the status is validated.
	w = env.do(t, env.citizen, http.MethodPatch, path+"/status", gin.H{"status": "LOST"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, env.admin, http.MethodPatch, path+"/status", gin.H{"status": "LOST"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, env.admin, http.MethodPatch, path+"/status", gin.H{"status": "REJECTED"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, env.admin, http.MethodPatch, path+"/status", gin.H{"status": "REJECTED", "rejectionReason": "Private land"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rejected := decode[models.Request](t, w)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Equal(t, "Private land", rejected.Reason())

	// Replaying the same transition is accepted without change.
	w = env.do(t, env.admin, http.MethodPatch, path+"/status", gin.H{"status": "REJECTED", "rejectionReason": "Private land"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, env.admin, http.MethodPatch, path+"/status", gin.H{"status": "COMPLETED", "photoUrl": "https://img/x.jpg"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, env.citizen, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	fresh := env.file(t, env.citizen, "Graffiti", "Roads")
	freshPath := "/requests/" + strconv.FormatInt(fresh.ID, 10)

	w = env.do(t, nil, http.MethodDelete, freshPath, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, env.admin, http.MethodDelete, freshPath, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, env.citizen, http.MethodDelete, freshPath, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, nil, http.MethodGet, freshPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, env.citizen, http.MethodDelete, freshPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, nil, http.MethodGet, "/requests/zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserRoutes(t *testing.T) {
	env := newHTTPEnv(t, "http_users")

	w := env.do(t, nil, http.MethodPost, "/users", gin.H{"fullName": "Ann Lee", "login": "ann", "email": "ann@example.org"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ann := decode[models.User](t, w)
	assert.Equal(t, models.RoleCitizen, ann.Role)

	w = env.do(t, nil, http.MethodPost, "/users/register", gin.H{"login": "ann"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, nil, http.MethodPost, "/users", gin.H{"login": "bob", "email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[errorBody](t, w).Message, "Email")

	w = env.do(t, nil, http.MethodPost, "/users", gin.H{"login": "carol"})
	assert.Equal(t, http.StatusCreated, w.Code, "email is optional")

	w = env.do(t, &ann, http.MethodGet, "/users/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ann", decode[models.User](t, w).Login)

	w = env.do(t, nil, http.MethodGet, "/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInvalidTokens(t *testing.T) {
	env := newHTTPEnv(t, "http_tokens")

	req := httptest.NewRequest(http.MethodGet, "/categories", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Token for a user that does not exist.
	ghost := &models.User{ID: 999, Role: models.RoleAdmin}
	w = env.do(t, ghost, http.MethodGet, "/categories", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A citizen claiming ADMIN is demoted to the stored role.
	forged := *env.citizen
	forged.Role = models.RoleAdmin
	w = env.do(t, &forged, http.MethodPost, "/categories", gin.H{"name": "Forged"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
