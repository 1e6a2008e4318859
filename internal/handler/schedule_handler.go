package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/jobshop-api/internal/dto"
	internalmiddleware "github.com/noah-isme/jobshop-api/internal/middleware"
	"github.com/noah-isme/jobshop-api/internal/models"
	"github.com/noah-isme/jobshop-api/internal/service"
	appErrors "github.com/noah-isme/jobshop-api/pkg/errors"
	"github.com/noah-isme/jobshop-api/pkg/response"
)

const maxUploadBytes = 4 << 20

type scheduleSolver interface {
	Solve(ctx context.Context, req dto.SolveRequest) (*models.ScheduleResult, error)
	SolveCSV(ctx context.Context, r io.Reader, opts dto.SolveOptions) (*models.ScheduleResult, error)
	Validate(ctx context.Context, req dto.SolveRequest) (*dto.ValidateResponse, error)
	Sample(ctx context.Context) ([]models.TaskRecord, error)
	SubmitRun(ctx context.Context, req dto.CreateScheduleRunRequest, actorID string) (*dto.ScheduleRunResponse, error)
	GetRun(ctx context.Context, id string) (*dto.ScheduleRunResponse, error)
	ListRuns(ctx context.Context, query dto.ScheduleRunQuery) ([]dto.ScheduleRunResponse, *models.Pagination, error)
	DeleteRun(ctx context.Context, id string) error
	ExportRun(ctx context.Context, id, format string) (*service.ScheduleExport, error)
	FlushCache(ctx context.Context) error
}

// ScheduleHandler exposes job-shop scheduling endpoints.
type ScheduleHandler struct {
	service scheduleSolver
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(svc *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// Solve godoc
// @Summary Solve a job-shop instance
// @Description Builds the scheduling model, solves it and returns the interpreted schedule.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.SolveRequest true "Task records and solve options"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /schedules/solve [post]
func (h *ScheduleHandler) Solve(c *gin.Context) {
	var req dto.SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid solve payload"))
		return
	}
	result, err := h.service.Solve(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	internalmiddleware.SetCacheHit(c, result.Cached)
	response.JSON(c, http.StatusOK, result, nil, internalmiddleware.ExtractMeta(c))
}

// SolveUpload godoc
// @Summary Solve a job-shop instance uploaded as CSV
// @Tags Schedules
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV with JobID,TaskID,MachineID,Duration[,Deadline]"
// @Param tardinessWeight formData int false "Tardiness weight"
// @Param maxSolveTime formData string false "Solve time limit, e.g. 10s"
// @Success 200 {object} response.Envelope
// @Router /schedules/solve/upload [post]
func (h *ScheduleHandler) SolveUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	if header.Size > maxUploadBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds 4MB"))
		return
	}

	var opts dto.SolveOptions
	if raw := c.PostForm("tardinessWeight"); raw != "" {
		weight, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "tardinessWeight must be an integer"))
			return
		}
		opts.TardinessWeight = &weight
	}
	opts.MaxSolveTime = c.PostForm("maxSolveTime")

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	result, err := h.service.SolveCSV(c.Request.Context(), file, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	internalmiddleware.SetCacheHit(c, result.Cached)
	response.JSON(c, http.StatusOK, result, nil, internalmiddleware.ExtractMeta(c))
}

// Validate godoc
// @Summary Check an instance without solving it
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.SolveRequest true "Task records"
// @Success 200 {object} response.Envelope
// @Router /schedules/validate [post]
func (h *ScheduleHandler) Validate(c *gin.Context) {
	var req dto.SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	summary, err := h.service.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Sample godoc
// @Summary Bundled sample instance
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedules/sample [get]
func (h *ScheduleHandler) Sample(c *gin.Context) {
	records, err := h.service.Sample(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// SubmitRun godoc
// @Summary Queue an asynchronous solve
// @Tags Schedule Runs
// @Accept json
// @Produce json
// @Param payload body dto.CreateScheduleRunRequest true "Run payload"
// @Success 202 {object} response.Envelope
// @Router /schedules/runs [post]
func (h *ScheduleHandler) SubmitRun(c *gin.Context) {
	var req dto.CreateScheduleRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid run payload"))
		return
	}
	run, err := h.service.SubmitRun(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Location", strings.TrimSuffix(c.Request.URL.Path, "/")+"/"+run.ID)
	response.Accepted(c, run)
}

// ListRuns godoc
// @Summary List schedule runs
// @Tags Schedule Runs
// @Produce json
// @Param status query string false "QUEUED, RUNNING, SUCCEEDED or FAILED"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules/runs [get]
func (h *ScheduleHandler) ListRuns(c *gin.Context) {
	var query dto.ScheduleRunQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	runs, pagination, err := h.service.ListRuns(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// GetRun godoc
// @Summary Get a schedule run
// @Tags Schedule Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/runs/{id} [get]
func (h *ScheduleHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// DeleteRun godoc
// @Summary Delete a schedule run
// @Tags Schedule Runs
// @Param id path string true "Run ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /schedules/runs/{id} [delete]
func (h *ScheduleHandler) DeleteRun(c *gin.Context) {
	if err := h.service.DeleteRun(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ExportRun godoc
// @Summary Export the schedule of a finished run
// @Tags Schedule Runs
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Run ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /schedules/runs/{id}/export [get]
func (h *ScheduleHandler) ExportRun(c *gin.Context) {
	doc, err := h.service.ExportRun(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Body)
}

// FlushCache godoc
// @Summary Drop cached solve results
// @Tags Schedules
// @Success 204
// @Router /schedules/cache [delete]
func (h *ScheduleHandler) FlushCache(c *gin.Context) {
	if err := h.service.FlushCache(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
