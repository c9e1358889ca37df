package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xxxsen/textstat/internal/middleware"
	"github.com/xxxsen/textstat/internal/pkg/errcode"
	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
	"github.com/xxxsen/textstat/internal/pkg/response"
)

type errMapping struct {
	target error
	code   uint32
	msg    string
	level  zapcore.Level
}

// Client errors are expected traffic; only unmapped errors are logged at
// error level.
var errMappings = []errMapping{
	{appErr.ErrNotFound, errcode.ErrNotFound, "not found", zapcore.DebugLevel},
	{appErr.ErrInvalid, errcode.ErrInvalid, "invalid request", zapcore.InfoLevel},
	{appErr.ErrConflict, errcode.ErrConflict, "conflict", zapcore.InfoLevel},
	{appErr.ErrTooMany, errcode.ErrTooMany, "too many requests", zapcore.InfoLevel},
	{appErr.ErrUnsupportedEncoding, errcode.ErrUnsupportedEncoding, "unsupported encoding", zapcore.InfoLevel},
}

func classifyError(err error) (uint32, string, zapcore.Level) {
	for _, m := range errMappings {
		if errors.Is(err, m.target) {
			return m.code, m.msg, m.level
		}
	}
	return errcode.ErrInternal, "internal error", zapcore.ErrorLevel
}

func logRequestError(c *gin.Context, level zapcore.Level, err error) {
	ce := logutil.GetLogger(c.Request.Context()).Check(level, "request failed")
	if ce == nil {
		return
	}
	ce.Write(
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code, msg, level := classifyError(err)
	logRequestError(c, level, err)
	response.Error(c, code, msg)
}
