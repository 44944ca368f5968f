package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/config"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/middleware"
	"github.com/amankumarsingh77/dubbing-pipeline/internal/models"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/logger"
	"github.com/amankumarsingh77/dubbing-pipeline/pkg/utils"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUseCase struct {
	jobs    map[string]*models.JobStatusView
	retried []string
}

func (f *fakeUseCase) Accept(_ context.Context, n *models.Notification) ([]*models.Job, error) {
	events, err := n.Events()
	if err != nil {
		return nil, apperrors.Classify(apperrors.ErrInvalidArtifact, err)
	}
	var jobs []*models.Job
	for _, ev := range events {
		if strings.HasSuffix(ev.Key, ".mp3") {
			jobs = append(jobs, &models.Job{JobID: "job-" + ev.Key})
		}
	}
	return jobs, nil
}

func (f *fakeUseCase) HandleNotification(context.Context, *models.Notification) ([]*models.JobStatusView, error) {
	return nil, nil
}

func (f *fakeUseCase) Drive(_ context.Context, jobID string) (*models.JobStatusView, error) {
	return f.GetJobStatus(context.Background(), jobID)
}

func (f *fakeUseCase) GetJobStatus(_ context.Context, jobID string) (*models.JobStatusView, error) {
	view, ok := f.jobs[jobID]
	if !ok {
		return nil, apperrors.Classifyf(apperrors.ErrNotFound, "job %s", jobID)
	}
	return view, nil
}

func (f *fakeUseCase) ListJobs(_ context.Context, env string, pq *utils.Pagination) (*models.JobList, error) {
	return &models.JobList{Jobs: []*models.JobSummary{{JobID: "j1", Environment: env}}, TotalCount: 1, Page: pq.Page, PageSize: pq.Size}, nil
}

func (f *fakeUseCase) RetryJob(ctx context.Context, jobID string) (*models.JobStatusView, error) {
	view, err := f.GetJobStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	f.retried = append(f.retried, jobID)
	return view, nil
}

type recordingDispatcher struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingDispatcher) Dispatch(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, jobID)
}

func newTestServer(secret string) (*echo.Echo, *recordingDispatcher, *fakeUseCase) {
	uc := &fakeUseCase{jobs: map[string]*models.JobStatusView{
		"j1": {JobID: "j1", Status: models.JobStatusInFlight},
	}}
	d := &recordingDispatcher{}
	cfg := &config.Config{Server: config.ServerConfig{JwtSecretKey: secret}}
	h := NewOrchestratorHandler(uc, d, logger.NewNop())
	mw := middleware.NewMiddlewareManager(cfg, []string{"*"}, logger.NewNop())

	e := echo.New()
	v1 := e.Group("/api/v1")
	MapNotificationRoutes(v1.Group("/notifications"), h)
	MapJobRoutes(v1.Group("/jobs"), h, mw)
	return e, d, uc
}

func do(e *echo.Echo, method, target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandleNotificationAcceptsAndDispatches(t *testing.T) {
	t.Parallel()

	e, d, _ := newTestServer("")
	rec := do(e, http.MethodPost, "/api/v1/notifications",
		`{"bucket":"in","key":"audio_inputs/talk.mp3","eventType":"objectCreated"}`, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp acceptedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"job-audio_inputs/talk.mp3"}, resp.JobIDs)
	assert.Equal(t, resp.JobIDs, d.ids)

	rec = do(e, http.MethodPost, "/api/v1/notifications", `{not json`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobRoutes(t *testing.T) {
	t.Parallel()

	e, d, uc := newTestServer("")

	rec := do(e, http.MethodGet, "/api/v1/jobs/j1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"in_flight"`)

	rec = do(e, http.MethodGet, "/api/v1/jobs/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/jobs?env=beta&page=2&size=5", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list models.JobList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Page)
	assert.Equal(t, 5, list.PageSize)
	assert.Equal(t, "beta", list.Jobs[0].Environment)

	rec = do(e, http.MethodGet, "/api/v1/jobs?page=x", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/api/v1/jobs/j1/retry", "", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"j1"}, uc.retried)
	assert.Equal(t, []string{"j1"}, d.ids)

	rec = do(e, http.MethodPost, "/api/v1/jobs/missing/retry", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []string{"j1"}, uc.retried)
}

func TestJobRoutesRequireOperatorToken(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestServer("s3cret")

	rec := do(e, http.MethodGet, "/api/v1/jobs/j1", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	bad, err := utils.GenerateOperatorToken("ops", "other", time.Minute)
	require.NoError(t, err)
	rec = do(e, http.MethodGet, "/api/v1/jobs/j1", "", bad)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := utils.GenerateOperatorToken("ops", "s3cret", time.Minute)
	require.NoError(t, err)
	rec = do(e, http.MethodGet, "/api/v1/jobs/j1", "", token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodPost, "/api/v1/notifications",
		`{"bucket":"in","key":"audio_inputs/a.mp3","eventType":"objectCreated"}`, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
