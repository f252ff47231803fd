package security

import (
	"strings"

	"PPChat/tools/errs"
	"PPChat/tools/resp"
	jwtsec "PPChat/tools/security"

	"github.com/gin-gonic/gin"
)

// context key
// 后续 handler 统一用 UserID(c) 读取
const PPCtxUserIDKey = "userId"

type Options struct {
	Jwt jwtsec.Options
	// 读取哪个请求头，默认 Authorization
	HeaderToken string
	// 允许 ?token= 兜底（浏览器 WebSocket 无法带头）
	AllowQueryToken bool
}

func DefaultOptions(secret []byte) *Options {
	return &Options{
		Jwt:         jwtsec.DefaultOptions(secret),
		HeaderToken: "Authorization",
	}
}

// Middleware 校验 Bearer token，并把用户 id 写入 context；失败统一 401。
func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions(nil)
	}
	header := opts.HeaderToken
	if header == "" {
		header = "Authorization"
	}
	return func(c *gin.Context) {
		token := jwtsec.BearerToken(c.GetHeader(header))
		if token == "" && opts.AllowQueryToken {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			resp.Fail(c, errs.ErrUnauthenticated.WrapMsg("missing bearer token"))
			return
		}
		userID, err := jwtsec.Verify(opts.Jwt, token)
		if err != nil {
			resp.Fail(c, errs.ErrUnauthenticated.WrapMsg(err.Error()))
			return
		}
		c.Set(PPCtxUserIDKey, userID)
		c.Next()
	}
}

// UserID 读取鉴权后的用户 id
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(PPCtxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
