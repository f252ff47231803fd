package resp

import (
	"net/http"
	"time"

	"PPChat/tools/errs"

	"github.com/gin-gonic/gin"
)

// Body 所有 HTTP 接口统一的返回结构
type Body struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Code      int    `json:"code,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Path      string `json:"path,omitempty"`
	Meta      any    `json:"meta,omitempty"`
	Data      any    `json:"data,omitempty"`
}

func OK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Body{Success: true, Message: message, Data: data})
}

func OKWithMeta(c *gin.Context, message string, meta, data any) {
	c.JSON(http.StatusOK, Body{Success: true, Message: message, Meta: meta, Data: data})
}

// Fail 按 CodeError 映射状态码并中断后续 handler；非 CodeError 一律 500 且不外泄细节。
func Fail(c *gin.Context, err error) {
	ce := errs.As(err)
	msg := ce.Msg
	if ce.Code == errs.ServerInternalError {
		msg = errs.ErrInternal.Msg
	}
	c.AbortWithStatusJSON(errs.HTTPStatus(err), Body{
		Success:   false,
		Message:   msg,
		Code:      ce.Code,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Path:      c.Request.URL.Path,
	})
}
