package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code uint32, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(code, message))
}

// ErrorWithData reports a failure that still carries a payload the client
// can act on.
func ErrorWithData(c *gin.Context, code uint32, message string, data interface{}) {
	c.AbortWithStatusJSON(http.StatusOK, &proxyutil.CommonResponse{Code: code, Message: message, Data: data})
}
