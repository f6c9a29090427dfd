package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guriuo/hiigsitech/internal/comments"
	"github.com/guriuo/hiigsitech/internal/config"
	"github.com/guriuo/hiigsitech/internal/domain"
	"github.com/guriuo/hiigsitech/internal/logger"
	"github.com/guriuo/hiigsitech/internal/services"
	"github.com/guriuo/hiigsitech/internal/storage"
)

const testFixtures = `
courses:
  - id: course-go
    title: Go for Web Developers
    slug: go-web
    modules:
      - key: m1
        title: Getting Started
        lessons:
          - {key: l1, title: Installing Go, slug: installing-go, videoType: url, videoUrl: "https://youtu.be/dQw4w9WgXcQ"}
          - {key: l2, title: Hello HTTP, slug: hello-http}
      - key: m2
        title: Going Further
        lessons:
          - {key: l3, title: Middleware, slug: middleware}
comments:
  - {id: c1, name: Lee, email: lee@example.com, comment: First, postId: post-1, createdAt: "2025-01-01T10:00:00Z"}
`

type failingComments struct {
	*services.FixtureSource
}

func (f failingComments) CreateComment(context.Context, domain.Comment) error {
	return errors.New("content store unavailable")
}

type testEnv struct {
	engine  *gin.Engine
	content *services.FixtureSource
	store   *storage.Store
}

func setupTestServer(t *testing.T, failCommentWrites bool) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tmpDir := t.TempDir()

	cfg := config.Config{
		Port:         "8080",
		BaseURL:      "http://localhost:8080",
		ShareSecret:  "secret",
		ShareTTL:     time.Minute,
		MaxBodyBytes: 64 * 1024,
		DataDir:      tmpDir,
	}
	log := logger.Nop()

	fm, err := storage.NewFileManager(cfg.DataDir)
	require.NoError(t, err)

	store, err := storage.NewStore(cfg.DataDir)
	require.NoError(t, err)

	content, err := services.ParseFixtures([]byte(testFixtures))
	require.NoError(t, err)

	var commentBackend services.CommentBackend = content
	if failCommentWrites {
		commentBackend = failingComments{content}
	}

	api := NewAPI(
		fm,
		services.NewLearningService(content, store, log),
		services.NewCommentService(commentBackend, log),
		services.NewContactService(content, log),
		services.NewPDFService(),
		services.NewShareService(cfg),
		log,
	)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(MaxBodySize(cfg.MaxBodyBytes))
	registerRoutes(engine, api)

	return testEnv{engine: engine, content: content, store: store}
}

func (e testEnv) do(t *testing.T, method, target, learner string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if learner != "" {
		req.Header.Set(learnerHeader, learner)
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func activeKey(t *testing.T, body map[string]any) string {
	t.Helper()
	active, ok := body["active"].(map[string]any)
	require.True(t, ok, "no active lesson in %v", body)
	return active["key"].(string)
}

func TestHealthHandler(t *testing.T) {
	env := setupTestServer(t, false)

	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["ok"])
}

func TestLearningRoutesRequireLearner(t *testing.T) {
	env := setupTestServer(t, false)

	rec := env.do(t, http.MethodGet, "/api/courses/go-web/lessons", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], learnerHeader)
}

func TestOpenLesson(t *testing.T) {
	env := setupTestServer(t, false)

	rec := env.do(t, http.MethodGet, "/api/courses/go-web/lessons/hello-http", "amina", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "l2", activeKey(t, body))
	assert.Equal(t, true, body["resolved"])
	assert.Equal(t, true, body["hasPrev"])
	assert.Equal(t, true, body["hasNext"])
	assert.Equal(t, "Mark as Complete", body["actionLabel"])

	rec = env.do(t, http.MethodGet, "/api/courses/go-web/lessons?lesson=l3", "amina", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "l3", activeKey(t, decode(t, rec)))

	rec = env.do(t, http.MethodGet, "/api/courses/go-web/lessons/unknown", "amina", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "l1", activeKey(t, body))
	assert.Equal(t, false, body["resolved"])
	assert.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ?autoplay=1&rel=0&controls=1&modestbranding=1", body["videoSource"])

	rec = env.do(t, http.MethodGet, "/api/courses/nope/lessons", "amina", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompleteAdvancesAndPersists(t *testing.T) {
	env := setupTestServer(t, false)

	rec := env.do(t, http.MethodPost, "/api/courses/go-web/lessons/l1/complete", "amina", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "l2", activeKey(t, body))
	assert.EqualValues(t, 33, body["progress"])
	assert.Equal(t, []any{"l1"}, body["completed"])

	rec = env.do(t, http.MethodGet, "/api/courses/go-web/lessons/l1", "amina", nil)
	body = decode(t, rec)
	assert.Equal(t, true, body["activeCompleted"])
	assert.Equal(t, "Next Lesson", body["actionLabel"])

	rec = env.do(t, http.MethodGet, "/api/courses/go-web/lessons/l1", "sam", nil)
	assert.EqualValues(t, 0, decode(t, rec)["progress"])

	rec = env.do(t, http.MethodPost, "/api/courses/go-web/lessons/l3/complete", "amina", nil)
	body = decode(t, rec)
	assert.Equal(t, "l3", activeKey(t, body))
	assert.EqualValues(t, 67, body["progress"])

	rec = env.do(t, http.MethodPost, "/api/courses/go-web/lessons/ghost/complete", "amina", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStepBoundaries(t *testing.T) {
	env := setupTestServer(t, false)

	rec := env.do(t, http.MethodPost, "/api/courses/go-web/lessons/l1/prev", "amina", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["moved"])
	assert.Equal(t, "l1", activeKey(t, body))

	rec = env.do(t, http.MethodPost, "/api/courses/go-web/lessons/l2/next", "amina", nil)
	body = decode(t, rec)
	assert.Equal(t, true, body["moved"])
	assert.Equal(t, "l3", activeKey(t, body))

	rec = env.do(t, http.MethodPost, "/api/courses/go-web/lessons/l3/next", "amina", nil)
	body = decode(t, rec)
	assert.Equal(t, false, body["moved"])
	assert.Equal(t, "l3", activeKey(t, body))
}

func TestUpdateNotes(t *testing.T) {
	env := setupTestServer(t, false)

	rec := env.do(t, http.MethodPut, "/api/courses/go-web/lessons/l2/notes", "amina", map[string]any{"notes": "remember ServeMux"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "remember ServeMux", decode(t, rec)["notes"])

	rec = env.do(t, http.MethodGet, "/api/courses/go-web/lessons/l2", "amina", nil)
	assert.Equal(t, "remember ServeMux", decode(t, rec)["notes"])

	rec = env.do(t, http.MethodGet, "/api/courses/go-web/lessons/l1", "amina", nil)
	assert.Equal(t, "", decode(t, rec)["notes"])

	val, ok, err := env.store.Get(context.Background(), storage.NoteKey("go-web", "l2").In("amina"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "remember ServeMux", val)

	rec = env.do(t, http.MethodPut, "/api/courses/go-web/lessons/l2/notes", "amina", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProgressOverview(t *testing.T) {
	env := setupTestServer(t, false)

	env.do(t, http.MethodPost, "/api/courses/go-web/lessons/l1/complete", "amina", nil)

	rec := env.do(t, http.MethodGet, "/api/progress?course=go-web", "amina", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	courses := decode(t, rec)["courses"].([]any)
	require.Len(t, courses, 1)
	first := courses[0].(map[string]any)
	assert.EqualValues(t, 33, first["progress"])
	assert.EqualValues(t, 3, first["total"])

	rec = env.do(t, http.MethodGet, "/api/progress", "amina", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/progress?course=go-web&course=missing", "amina", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitComment(t *testing.T) {
	env := setupTestServer(t, false)

	rec := env.do(t, http.MethodPost, "/api/comment", "", map[string]any{"name": "Amina", "comment": "hi", "postId": "post-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/comment", "", map[string]any{
		"name": "Amina", "email": "amina@example.com", "comment": "Great post", "postId": "post-1", "correlationId": "abc",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Comment submitted!", body["message"])
	stored := body["comment"].(map[string]any)
	assert.Equal(t, "abc", stored["correlationId"])
	assert.NotContains(t, stored, "email")

	rec = env.do(t, http.MethodPost, "/api/comment", "", map[string]any{
		"name": "Admin", "email": "a@x", "comment": "Thanks", "postId": "post-1", "parentId": "c1", "isAdmin": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/posts/post-1/comments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["comments"].([]any)
	require.Len(t, list, 2)
	first := list[0].(map[string]any)
	assert.Equal(t, "c1", first["id"])
	assert.Len(t, first["replies"], 1)
}

func TestSubmitCommentBackendFailure(t *testing.T) {
	env := setupTestServer(t, true)

	rec := env.do(t, http.MethodPost, "/api/comment", "", map[string]any{
		"name": "Amina", "email": "amina@example.com", "comment": "Great post", "postId": "post-1",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error submitting comment", decode(t, rec)["error"])
}

func TestContactForm(t *testing.T) {
	env := setupTestServer(t, false)

	rec := env.do(t, http.MethodPost, "/api/contact", "", map[string]any{"name": "A", "email": "a@x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/contact", "", map[string]any{"name": "A", "email": "a@x", "phone": "555", "message": "Need a site"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.content.Contacts(), 1)
}

func TestNotesExportLink(t *testing.T) {
	env := setupTestServer(t, false)

	env.do(t, http.MethodPut, "/api/courses/go-web/lessons/l1/notes", "amina", map[string]any{"notes": "go install"})

	rec := env.do(t, http.MethodPost, "/api/courses/go-web/exports", "amina", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	link, err := url.Parse(decode(t, rec)["url"].(string))
	require.NoError(t, err)
	assert.Equal(t, "/exports/go-web/amina", link.Path)

	rec = env.do(t, http.MethodGet, link.RequestURI(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

	q := link.Query()
	rec = env.do(t, http.MethodGet, "/exports/go-web/sam?"+q.Encode(), "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/exports/go-web/amina?exp=1&sig="+q.Get("sig"), "", nil)
	assert.Equal(t, http.StatusGone, rec.Code)

	rec = env.do(t, http.MethodGet, "/exports/go-web/amina", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/courses/missing/exports", "amina", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThreadAgainstCommentEndpoint(t *testing.T) {
	for _, tt := range []struct {
		name      string
		fail      bool
		wantCount int
	}{
		{name: "confirmed", fail: false, wantCount: 2},
		{name: "rolled back", fail: true, wantCount: 1},
	} {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestServer(t, tt.fail)
			srv := httptest.NewServer(env.engine)
			defer srv.Close()

			initial, err := env.content.Comments(context.Background(), "post-1")
			require.NoError(t, err)

			var failed []domain.Comment
			thread := comments.NewThread("post-1", initial, comments.NewHTTPSubmitter(srv.URL, srv.Client()),
				comments.WithNotifier(comments.NotifierFunc(func(c domain.Comment, _ error) { failed = append(failed, c) })))

			pending, err := thread.Post(context.Background(), comments.Form{Name: "Amina", Email: "amina@example.com", Comment: "Great post"}, "")
			require.NoError(t, err)
			assert.True(t, pending.Pending())

			thread.Wait()
			got := thread.Comments()
			require.Len(t, got, tt.wantCount)
			assert.Equal(t, 0, thread.Pending())

			if tt.fail {
				assert.Len(t, failed, 1)
				return
			}
			assert.Empty(t, failed)
			assert.Equal(t, domain.CommentStatusConfirmed, got[1].Status)
			assert.NotEqual(t, pending.ID, got[1].ID)

			stored, err := env.content.Comments(context.Background(), "post-1")
			require.NoError(t, err)
			assert.Equal(t, got[1].ID, stored[1].ID)
		})
	}
}
