package middleware

import (
	"net/http"
	"strings"

	"PPChat/tools/errs"
	"PPChat/tools/resp"

	"github.com/gin-gonic/gin"
)

// Origin 校验跨域来源并回写 CORS 头，挂在 MiddlewareManager 里用。allowed 为空时放行所有来源；"*" 同理。
func Origin(allowed []string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	allowAll := len(allowed) == 0
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		set[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			return
		}
		if _, ok := set[strings.TrimRight(origin, "/")]; !ok && !allowAll {
			resp.Fail(c, errs.ErrForbiddenOrigin.WrapMsg("", "origin", origin))
			return
		}
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Add("Vary", "Origin")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
		}
	}
}
