package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zapcore"

	"github.com/xxxsen/textstat/internal/model"
	"github.com/xxxsen/textstat/internal/pkg/errcode"
	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
	"github.com/xxxsen/textstat/internal/pkg/response"
	"github.com/xxxsen/textstat/internal/service"
)

type AnalysisHandler struct {
	analyses *service.AnalysisService
}

type SubmitResponse struct {
	TaskID string          `json:"task_id"`
	Status model.JobStatus `json:"status"`
}

type TaskResponse struct {
	TaskID         string          `json:"task_id"`
	FileID         string          `json:"file_id"`
	Status         model.JobStatus `json:"status"`
	Result         *model.Stats    `json:"result,omitempty"`
	OriginalFileID string          `json:"original_file_id,omitempty"`
	Error          string          `json:"error,omitempty"`
	Attempts       int             `json:"attempts"`
}

func NewAnalysisHandler(analyses *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analyses: analyses}
}

func (h *AnalysisHandler) Submit(c *gin.Context) {
	job, err := h.analyses.Submit(c.Request.Context(), c.Param("file_id"))
	if err != nil && job != nil && errors.Is(err, appErr.ErrTooMany) {
		logRequestError(c, zapcore.InfoLevel, err)
		response.ErrorWithData(c, errcode.ErrTooMany, "analysis queue full", SubmitResponse{TaskID: job.ID, Status: job.Status})
		return
	}
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, SubmitResponse{TaskID: job.ID, Status: job.Status})
}

func (h *AnalysisHandler) Task(c *gin.Context) {
	job, err := h.analyses.Status(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	out := TaskResponse{
		TaskID:   job.ID,
		FileID:   job.FileID,
		Status:   job.Status,
		Error:    job.Reason,
		Attempts: job.Attempts,
	}
	if job.Result != nil {
		out.Result = job.Result.Stats
		out.OriginalFileID = job.Result.OriginalFileID
	}
	response.Success(c, out)
}

func (h *AnalysisHandler) Result(c *gin.Context) {
	rec, err := h.analyses.Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, rec)
}
