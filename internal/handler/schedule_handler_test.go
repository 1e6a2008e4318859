package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/jobshop-api/internal/dto"
	internalmiddleware "github.com/noah-isme/jobshop-api/internal/middleware"
	"github.com/noah-isme/jobshop-api/internal/models"
	"github.com/noah-isme/jobshop-api/internal/service"
	appErrors "github.com/noah-isme/jobshop-api/pkg/errors"
)

type scheduleSolverMock struct {
	solveReq   dto.SolveRequest
	csvBody    string
	csvOpts    dto.SolveOptions
	submitted  dto.CreateScheduleRunRequest
	actorID    string
	listQuery  dto.ScheduleRunQuery
	exportArgs [2]string
	err        error
}

func (m *scheduleSolverMock) Solve(ctx context.Context, req dto.SolveRequest) (*models.ScheduleResult, error) {
	m.solveReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.ScheduleResult{Status: "OPTIMAL", Objective: 7, Makespan: 7, Cached: true}, nil
}

func (m *scheduleSolverMock) SolveCSV(ctx context.Context, r io.Reader, opts dto.SolveOptions) (*models.ScheduleResult, error) {
	body, _ := io.ReadAll(r)
	m.csvBody = string(body)
	m.csvOpts = opts
	return &models.ScheduleResult{Status: "OPTIMAL", Objective: 3}, nil
}

func (m *scheduleSolverMock) Validate(ctx context.Context, req dto.SolveRequest) (*dto.ValidateResponse, error) {
	return &dto.ValidateResponse{Tasks: len(req.Tasks), Jobs: 1, Machines: []models.ID{"M1"}, Horizon: 5}, nil
}

func (m *scheduleSolverMock) Sample(ctx context.Context) ([]models.TaskRecord, error) {
	return []models.TaskRecord{{JobID: "1", TaskID: "1", MachineID: "M1", Duration: "3"}}, nil
}

func (m *scheduleSolverMock) SubmitRun(ctx context.Context, req dto.CreateScheduleRunRequest, actorID string) (*dto.ScheduleRunResponse, error) {
	m.submitted = req
	m.actorID = actorID
	return &dto.ScheduleRunResponse{ID: "run-1", Status: models.ScheduleRunStatusQueued, TaskCount: len(req.Tasks), CreatedAt: time.Now()}, nil
}

func (m *scheduleSolverMock) GetRun(ctx context.Context, id string) (*dto.ScheduleRunResponse, error) {
	if id != "run-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
	}
	return &dto.ScheduleRunResponse{ID: id, Status: models.ScheduleRunStatusSucceeded}, nil
}

func (m *scheduleSolverMock) ListRuns(ctx context.Context, query dto.ScheduleRunQuery) ([]dto.ScheduleRunResponse, *models.Pagination, error) {
	m.listQuery = query
	return []dto.ScheduleRunResponse{{ID: "run-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *scheduleSolverMock) DeleteRun(ctx context.Context, id string) error {
	return m.err
}

func (m *scheduleSolverMock) ExportRun(ctx context.Context, id, format string) (*service.ScheduleExport, error) {
	m.exportArgs = [2]string{id, format}
	return &service.ScheduleExport{Filename: "schedule-run-1.csv", ContentType: "text/csv", Body: []byte("Machine,Job\n")}, nil
}

func (m *scheduleSolverMock) FlushCache(ctx context.Context) error {
	return m.err
}

func newJSONContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestScheduleHandlerSolve(t *testing.T) {
	mock := &scheduleSolverMock{}
	handler := &ScheduleHandler{service: mock}
	c, w := newJSONContext(http.MethodPost, "/schedules/solve",
		`{"tasks":[{"jobId":1,"taskId":"1","machineId":"M1","duration":3,"deadline":null}],"options":{"tardinessWeight":5}}`)

	handler.Solve(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mock.solveReq.Tasks, 1)
	assert.Equal(t, dto.FlexValue("1"), mock.solveReq.Tasks[0].JobID)
	assert.Equal(t, dto.FlexValue(""), mock.solveReq.Tasks[0].Deadline)
	require.NotNil(t, mock.solveReq.Options.TardinessWeight)
	assert.Equal(t, int64(5), *mock.solveReq.Options.TardinessWeight)

	envelope := decodeEnvelope(t, w)
	meta := envelope["meta"].(map[string]interface{})
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestScheduleHandlerSolveMalformedJSON(t *testing.T) {
	handler := &ScheduleHandler{service: &scheduleSolverMock{}}
	c, w := newJSONContext(http.MethodPost, "/schedules/solve", `{"tasks":`)

	handler.Solve(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandlerSolveMapsDomainErrors(t *testing.T) {
	handler := &ScheduleHandler{service: &scheduleSolverMock{err: appErrors.Clone(appErrors.ErrNoSolution, "")}}
	c, w := newJSONContext(http.MethodPost, "/schedules/solve", `{"tasks":[]}`)

	handler.Solve(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "NO_SOLUTION", envelope["error"].(map[string]interface{})["code"])
}

func TestScheduleHandlerSolveUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &scheduleSolverMock{}
	handler := &ScheduleHandler{service: mock}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "jobs.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("JobID,TaskID,MachineID,Duration\n1,1,M1,3\n"))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("tardinessWeight", "2"))
	require.NoError(t, writer.WriteField("maxSolveTime", "5s"))
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/schedules/solve/upload", &body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())

	handler.SolveUpload(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, mock.csvBody, "1,1,M1,3")
	require.NotNil(t, mock.csvOpts.TardinessWeight)
	assert.Equal(t, int64(2), *mock.csvOpts.TardinessWeight)
	assert.Equal(t, "5s", mock.csvOpts.MaxSolveTime)
}

func TestScheduleHandlerSolveUploadRequiresFile(t *testing.T) {
	handler := &ScheduleHandler{service: &scheduleSolverMock{}}
	c, w := newJSONContext(http.MethodPost, "/schedules/solve/upload", `{}`)

	handler.SolveUpload(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandlerValidateAndSample(t *testing.T) {
	handler := &ScheduleHandler{service: &scheduleSolverMock{}}

	c, w := newJSONContext(http.MethodPost, "/schedules/validate", `{"tasks":[{"jobId":"1","taskId":"1","machineId":"M1","duration":"5"}]}`)
	handler.Validate(c)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["tasks"])

	c, w = newJSONContext(http.MethodGet, "/schedules/sample", "")
	handler.Sample(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeEnvelope(t, w)["data"], 1)
}

func TestScheduleHandlerSubmitRunUsesClaims(t *testing.T) {
	mock := &scheduleSolverMock{}
	handler := &ScheduleHandler{service: mock}
	c, w := newJSONContext(http.MethodPost, "/schedules/runs", `{"name":"week 42","tasks":[{"jobId":"1","taskId":"1","machineId":"M1","duration":"5"}]}`)
	c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "planner-7", Role: models.RolePlanner})

	handler.SubmitRun(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "planner-7", mock.actorID)
	assert.Equal(t, "week 42", mock.submitted.Name)
	assert.Equal(t, "/schedules/runs/run-1", w.Header().Get("Location"))
}

func TestScheduleHandlerRunLookups(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &scheduleSolverMock{}
	handler := &ScheduleHandler{service: mock}
	router := gin.New()
	router.GET("/schedules/runs", handler.ListRuns)
	router.GET("/schedules/runs/:id", handler.GetRun)
	router.GET("/schedules/runs/:id/export", handler.ExportRun)
	router.DELETE("/schedules/runs/:id", handler.DeleteRun)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/schedules/runs?status=FAILED&page=2&page_size=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ScheduleRunQuery{Status: "FAILED", Page: 2, PageSize: 5}, mock.listQuery)
	assert.NotNil(t, decodeEnvelope(t, w)["pagination"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/schedules/runs/missing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/schedules/runs/run-1/export?format=csv", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]string{"run-1", "csv"}, mock.exportArgs)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "schedule-run-1.csv")
	assert.Equal(t, "Machine,Job\n", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/schedules/runs/run-1", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	mock.err = appErrors.Clone(appErrors.ErrConflict, "schedule run is being solved")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/schedules/runs/run-1", nil))
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestScheduleRoutesRequireAdminForDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &ScheduleHandler{service: &scheduleSolverMock{}}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "v", Role: models.RoleViewer})
	})
	router.DELETE("/schedules/runs/:id", internalmiddleware.RBAC(models.RoleAdmin), handler.DeleteRun)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/schedules/runs/run-1", nil))
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := pingFunc(func(ctx context.Context) error { return nil })
	down := pingFunc(func(ctx context.Context) error { return appErrors.ErrUnavailable })

	handler := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{"database": ok})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	require.Equal(t, http.StatusOK, w.Code)

	handler = NewMetricsHandler(nil, map[string]Pinger{"database": ok, "redis": down})
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
