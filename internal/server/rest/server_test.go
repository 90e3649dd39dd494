package rest

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/dmitrijs2005/taskkeeper/internal/server/auth"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/tasks"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/taskkeeper/internal/server/services"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	mu   sync.Mutex
	puts map[string][]byte
}

func (f *fakeStore) Put(_ context.Context, key, _ string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.puts == nil {
		f.puts = map[string][]byte{}
	}
	f.puts[key] = body
	return nil
}

func (f *fakeStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key + "?sig=1", nil
}

type harness struct {
	srv *Server
}

func newHarness(t *testing.T, store services.ObjectStore) *harness {
	t.Helper()
	tokens := auth.NewTokenIssuer([]byte("test-secret"), "taskkeeper", time.Hour)
	taskRepo := tasks.NewMemoryRepository()
	accounts := services.NewUserService(users.NewMemoryRepository(), tokens, bcrypt.MinCost)
	srv := NewServer(Options{}, logging.Nop(), accounts,
		services.NewTaskService(taskRepo), services.NewExportService(taskRepo, store))
	return &harness{srv: srv}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := sonic.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

// signup registers a user and returns its token and id.
func (h *harness) signup(t *testing.T, email string) (string, string) {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Test", "email": email, "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[userResponse](t, rec)
	return resp.Token, resp.Data.ID
}

func (h *harness) create(t *testing.T, token string, body map[string]any) models.Task {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/tasks", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[taskResponse](t, rec).Data
}

type userResponse struct {
	Success bool              `json:"success"`
	Token   string            `json:"token"`
	Data    models.PublicUser `json:"data"`
}

type taskResponse struct {
	Success bool        `json:"success"`
	Data    models.Task `json:"data"`
}

type listResponse struct {
	Success bool          `json:"success"`
	Count   int           `json:"count"`
	Data    []models.Task `json:"data"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// requireFailure checks the failure envelope shape.
func requireFailure(t *testing.T, rec *httptest.ResponseRecorder, status int) string {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	assert.Equal(t, false, body["success"])
	assert.NotContains(t, body, "data")
	msg, _ := body["message"].(string)
	assert.NotEmpty(t, msg)
	return msg
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["success"])
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ann", "email": " Ann@Example.com ", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decode[userResponse](t, rec)
	assert.True(t, reg.Success)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "ann@example.com", reg.Data.Email)
	assert.Equal(t, "Ann", reg.Data.Name)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = h.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Other", "email": "ann@example.com", "password": "secret2",
	})
	assert.Equal(t, "email is already registered", requireFailure(t, rec, http.StatusConflict))

	rec = h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ann@example.com", "password": "wrong-one",
	})
	assert.Equal(t, "invalid email or password", requireFailure(t, rec, http.StatusUnauthorized))

	rec = h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ANN@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[userResponse](t, rec)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, reg.Data.ID, login.Data.ID)
}

func TestRegister_BadBodies(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"name":`},
		{"unknown field", `{"name":"a","email":"a@b.io","password":"secret1","admin":true}`},
		{"empty", ``},
		{"trailing value", `{"name":"a","email":"a@b.io","password":"secret1"} {"name":"b"}`},
		{"trailing garbage", `{"name":"a","email":"a@b.io","password":"secret1"} garbage`},
		{"short password", `{"name":"a","email":"a@b.io","password":"123"}`},
		{"bad email", `{"name":"a","email":"nope","password":"secret1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/api/auth/register", "", tt.body)
			requireFailure(t, rec, http.StatusBadRequest)
		})
	}
}

func TestLogin_TrailingData(t *testing.T) {
	h := newHarness(t, nil)
	h.signup(t, "trail@example.com")

	rec := h.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"trail@example.com","password":"secret1"}{}`)
	requireFailure(t, rec, http.StatusBadRequest)

	rec = h.do(t, http.MethodPost, "/api/auth/login", "", "{\"email\":\"trail@example.com\",\"password\":\"secret1\"}\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestMe(t *testing.T) {
	h := newHarness(t, nil)
	token, id := h.signup(t, "me@example.com")

	rec := h.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	me := decode[userResponse](t, rec)
	assert.Equal(t, id, me.Data.ID)
	assert.Equal(t, "me@example.com", me.Data.Email)

	requireFailure(t, h.do(t, http.MethodGet, "/api/auth/me", "", nil), http.StatusUnauthorized)
}

func TestTasks_RequireAuth(t *testing.T) {
	h := newHarness(t, nil)
	expired := auth.NewTokenIssuer([]byte("test-secret"), "taskkeeper", -time.Minute)
	stale, err := expired.GenerateToken("00000000-0000-0000-0000-000000000001")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic abc"},
		{"no token", "Bearer "},
		{"garbage", "Bearer not-a-jwt"},
		{"expired", "Bearer " + stale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			h.srv.Handler().ServeHTTP(rec, req)
			requireFailure(t, rec, http.StatusUnauthorized)
		})
	}
}

func TestTaskLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	token, owner := h.signup(t, "owner@example.com")

	created := h.create(t, token, map[string]any{
		"title":       "Ship report",
		"description": "quarterly",
		"priority":    "high",
		"dueDate":     "2030-01-02",
		"tags":        []string{"work", " "},
	})
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, owner, created.Owner)
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "high", created.Priority)
	assert.Equal(t, []string{"work"}, created.Tags)
	require.NotNil(t, created.DueDate)
	assert.Equal(t, time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC), created.DueDate.UTC())

	rec := h.do(t, http.MethodGet, "/api/tasks/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[taskResponse](t, rec).Data
	assert.Equal(t, created.Title, got.Title)
	assert.Equal(t, created.Description, got.Description)
	assert.Equal(t, created.Tags, got.Tags)

	rec = h.do(t, http.MethodPut, "/api/tasks/"+created.ID, token, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[taskResponse](t, rec).Data
	assert.Equal(t, "completed", updated.Status)
	assert.Equal(t, "Ship report", updated.Title)
	assert.Equal(t, "quarterly", updated.Description)
	assert.Equal(t, "high", updated.Priority)
	assert.Equal(t, []string{"work"}, updated.Tags)
	require.NotNil(t, updated.DueDate)
	assert.Equal(t, owner, updated.Owner)

	rec = h.do(t, http.MethodPut, "/api/tasks/"+created.ID, token, `{"dueDate":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, decode[taskResponse](t, rec).Data.DueDate)

	rec = h.do(t, http.MethodDelete, "/api/tasks/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "task deleted", decode[map[string]any](t, rec)["message"])

	requireFailure(t, h.do(t, http.MethodGet, "/api/tasks/"+created.ID, token, nil), http.StatusNotFound)
	requireFailure(t, h.do(t, http.MethodDelete, "/api/tasks/"+created.ID, token, nil), http.StatusNotFound)
}

func TestTaskOwnership(t *testing.T) {
	h := newHarness(t, nil)
	alice, _ := h.signup(t, "alice@example.com")
	bob, _ := h.signup(t, "bob@example.com")

	task := h.create(t, alice, map[string]any{"title": "private"})
	path := "/api/tasks/" + task.ID

	requireFailure(t, h.do(t, http.MethodGet, path, bob, nil), http.StatusNotFound)
	requireFailure(t, h.do(t, http.MethodPut, path, bob, map[string]any{"title": "mine"}), http.StatusNotFound)
	requireFailure(t, h.do(t, http.MethodDelete, path, bob, nil), http.StatusNotFound)

	rec := h.do(t, http.MethodGet, "/api/tasks", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[listResponse](t, rec).Count)

	rec = h.do(t, http.MethodGet, path, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "private", decode[taskResponse](t, rec).Data.Title)
}

func TestListTasks_FilterSearchSort(t *testing.T) {
	h := newHarness(t, nil)
	token, _ := h.signup(t, "list@example.com")

	h.create(t, token, map[string]any{"title": "Email follow-up", "priority": "high"})
	h.create(t, token, map[string]any{"title": "Lunch", "description": "with Emily", "priority": "low", "status": "completed"})
	h.create(t, token, map[string]any{"title": "Groceries", "priority": "medium"})

	titles := func(path string) []string {
		rec := h.do(t, http.MethodGet, path, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[listResponse](t, rec)
		require.Equal(t, len(resp.Data), resp.Count)
		out := make([]string, 0, len(resp.Data))
		for _, task := range resp.Data {
			out = append(out, task.Title)
		}
		return out
	}

	assert.Equal(t, []string{"Groceries", "Lunch", "Email follow-up"}, titles("/api/tasks"))
	assert.Equal(t, []string{"Lunch", "Email follow-up"}, titles("/api/tasks?search=emil"))
	assert.Equal(t, []string{"Lunch", "Email follow-up"}, titles("/api/tasks?search=%20"))
	assert.Equal(t, []string{}, titles("/api/tasks?search=%20groceries"))
	assert.Equal(t, []string{"Lunch"}, titles("/api/tasks?status=completed"))
	assert.Equal(t, titles("/api/tasks"), titles("/api/tasks?status=bogus&priority=urgent"))
	assert.Equal(t, []string{"Email follow-up", "Groceries", "Lunch"}, titles("/api/tasks?sort=priority"))
	assert.Equal(t, []string{"Email follow-up", "Lunch", "Groceries"}, titles("/api/tasks?sort=oldest"))

	rec := h.do(t, http.MethodGet, "/api/tasks?status=completed", token, nil)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestListTasks_EmptyIsArray(t *testing.T) {
	h := newHarness(t, nil)
	token, _ := h.signup(t, "empty@example.com")

	rec := h.do(t, http.MethodGet, "/api/tasks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, []any{}, body["data"])
	assert.Equal(t, float64(0), body["count"])
}

func TestCreateTask_Validation(t *testing.T) {
	h := newHarness(t, nil)
	token, _ := h.signup(t, "v@example.com")

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"missing title", `{"description":"x"}`, "title is required"},
		{"blank title", `{"title":"   "}`, "title is required"},
		{"bad status", `{"title":"a","status":"done"}`, `status "done" is not allowed`},
		{"bad priority", `{"title":"a","priority":"urgent"}`, `priority "urgent" is not allowed`},
		{"bad due date", `{"title":"a","dueDate":"tomorrow"}`, ""},
		{"unknown field", `{"title":"a","owner":"someone-else"}`, "invalid request body"},
		{"wrong type", `{"title":5}`, "invalid request body"},
		{"trailing value", `{"title":"a"} {"title":"b"}`, "invalid request body"},
		{"trailing garbage", `{"title":"a"} {"title":"b"} garbage`, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := requireFailure(t, h.do(t, http.MethodPost, "/api/tasks", token, tt.body), http.StatusBadRequest)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, msg)
			}
		})
	}
}

func TestUpdateTask_Validation(t *testing.T) {
	h := newHarness(t, nil)
	token, _ := h.signup(t, "u@example.com")
	task := h.create(t, token, map[string]any{"title": "a"})
	path := "/api/tasks/" + task.ID

	requireFailure(t, h.do(t, http.MethodPut, path, token, `{"title":""}`), http.StatusBadRequest)
	requireFailure(t, h.do(t, http.MethodPut, path, token, `{"status":"nope"}`), http.StatusBadRequest)
	requireFailure(t, h.do(t, http.MethodPut, path, token, `{"dueDate":"soon"}`), http.StatusBadRequest)
	requireFailure(t, h.do(t, http.MethodPut, path, token, `{"extra":1}`), http.StatusBadRequest)
	requireFailure(t, h.do(t, http.MethodPut, path, token, `{"title":"b"} x`), http.StatusBadRequest)
	requireFailure(t, h.do(t, http.MethodPut, "/api/tasks/not-a-uuid", token, `{"title":"x"}`), http.StatusNotFound)

	rec := h.do(t, http.MethodPut, path, token, `{"dueDate":"2031-05-06T10:00:00Z","tags":["x"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[taskResponse](t, rec).Data
	require.NotNil(t, updated.DueDate)
	assert.Equal(t, time.Date(2031, 5, 6, 10, 0, 0, 0, time.UTC), updated.DueDate.UTC())
	assert.Equal(t, []string{"x"}, updated.Tags)
}

func TestTaskTags_Cleaned(t *testing.T) {
	h := newHarness(t, nil)
	token, _ := h.signup(t, "tags@example.com")

	task := h.create(t, token, map[string]any{"title": "a", "tags": []string{" a ", " ", "", "b"}})
	assert.Equal(t, []string{"a", "b"}, task.Tags)

	rec := h.do(t, http.MethodPut, "/api/tasks/"+task.ID, token, `{"tags":["  ","c "]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"c"}, decode[taskResponse](t, rec).Data.Tags)
}

func TestTaskStats(t *testing.T) {
	h := newHarness(t, nil)
	token, _ := h.signup(t, "stats@example.com")
	other, _ := h.signup(t, "other@example.com")

	h.create(t, token, map[string]any{"title": "a", "priority": "high"})
	h.create(t, token, map[string]any{"title": "b", "status": "in-progress"})
	h.create(t, token, map[string]any{"title": "c", "status": "completed"})
	h.create(t, other, map[string]any{"title": "d", "priority": "high"})

	rec := h.do(t, http.MethodGet, "/api/tasks/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data models.Stats `json:"data"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.Stats{Total: 3, Pending: 1, InProgress: 1, Completed: 1, HighPriority: 1}, resp.Data)
}

func TestExport(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t, nil)
		token, _ := h.signup(t, "x@example.com")
		requireFailure(t, h.do(t, http.MethodPost, "/api/tasks/export", token, nil), http.StatusNotImplemented)
	})

	t.Run("enabled", func(t *testing.T) {
		store := &fakeStore{}
		h := newHarness(t, store)
		token, owner := h.signup(t, "y@example.com")
		h.create(t, token, map[string]any{"title": "a"})

		rec := h.do(t, http.MethodPost, "/api/tasks/export", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			Data services.ExportResult `json:"data"`
		}
		require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, strings.HasPrefix(resp.Data.Key, "exports/"+owner+"/"))
		assert.Equal(t, "https://objects.test/"+resp.Data.Key+"?sig=1", resp.Data.URL)
		assert.Contains(t, string(store.puts[resp.Data.Key]), `"title":"a"`)
	})
}

func TestGzipRequestBody(t *testing.T) {
	h := newHarness(t, nil)
	token, _ := h.signup(t, "gz@example.com")

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"title":"compressed"}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", &buf)
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "compressed", decode[taskResponse](t, rec).Data.Title)

	req = httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader("not gzip"))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec = httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "invalid gzip body", requireFailure(t, rec, http.StatusBadRequest))
}

type brokenTasks struct {
	Tasks
	panic bool
}

func (b brokenTasks) List(context.Context, string, models.TaskFilter) ([]models.Task, error) {
	if b.panic {
		panic("boom")
	}
	return nil, errors.New("connection reset by peer")
}

func TestServerErrorsAreGeneric(t *testing.T) {
	for _, panics := range []bool{false, true} {
		tokens := auth.NewTokenIssuer([]byte("k"), "taskkeeper", time.Hour)
		accounts := services.NewUserService(users.NewMemoryRepository(), tokens, bcrypt.MinCost)
		srv := NewServer(Options{}, logging.Nop(), accounts, brokenTasks{panic: panics}, services.NewExportService(nil, nil))

		token, err := tokens.GenerateToken("00000000-0000-0000-0000-000000000001")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, "server error", requireFailure(t, rec, http.StatusInternalServerError))
		assert.NotContains(t, rec.Body.String(), "connection reset")
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t, nil)
	requireFailure(t, h.do(t, http.MethodGet, "/nope", "", nil), http.StatusNotFound)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	tokens := auth.NewTokenIssuer([]byte("k"), "taskkeeper", time.Hour)
	accounts := services.NewUserService(users.NewMemoryRepository(), tokens, bcrypt.MinCost)
	srv := NewServer(Options{Address: "127.0.0.1:0", ShutdownTimeout: time.Second}, logging.Nop(),
		accounts, services.NewTaskService(tasks.NewMemoryRepository()), services.NewExportService(nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRun_ListenError(t *testing.T) {
	srv := NewServer(Options{Address: "256.0.0.1:bad"}, logging.Nop(), nil, nil, nil)
	err := srv.Run(context.Background())
	assert.Error(t, err)
}
