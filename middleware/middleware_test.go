package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	midsec "PPChat/middleware/security"
	"PPChat/tools/errs"
	"PPChat/tools/resp"
	jwtsec "PPChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() { gin.SetMode(gin.TestMode) }

func newEngine(secret []byte, origins []string) *gin.Engine {
	e := gin.New()
	e.Use(Recovery(zap.NewNop()), AccessLog(zap.NewNop()), NewManager(Origin(origins)).Use())
	rt := NewRouter(e, midsec.Middleware(midsec.DefaultOptions(secret)))
	rt.GET("/open", func(c *gin.Context) { c.String(http.StatusOK, "ok") }, RouteOpt{})
	rt.GET("/me", func(c *gin.Context) {
		id, _ := midsec.UserID(c)
		c.String(http.StatusOK, id)
	}, RouteOpt{IsAuth: true})
	rt.GET("/boom", func(c *gin.Context) { panic("boom") }, RouteOpt{})
	return e
}

func do(e *gin.Engine, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	return w
}

func TestAuth(t *testing.T) {
	req := require.New(t)
	secret := []byte("s3cret")
	e := newEngine(secret, nil)

	// Given no token, Then 401 with the uniform error body
	w := do(e, http.MethodGet, "/me", nil)
	req.Equal(http.StatusUnauthorized, w.Code)
	var body resp.Body
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.False(body.Success)
	req.Equal(errs.UnauthenticatedCode, body.Code)
	req.Equal("/me", body.Path)
	req.NotEmpty(body.Timestamp)

	// Given a valid token, Then the user id reaches the handler
	token, _, err := jwtsec.Generate(jwtsec.DefaultOptions(secret), "alice")
	req.NoError(err)
	w = do(e, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + token})
	req.Equal(http.StatusOK, w.Code)
	req.Equal("alice", w.Body.String())

	// Given a token signed elsewhere, Then 401
	other, _, err := jwtsec.Generate(jwtsec.DefaultOptions([]byte("other")), "alice")
	req.NoError(err)
	w = do(e, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + other})
	req.Equal(http.StatusUnauthorized, w.Code)

	// open routes need nothing
	req.Equal(http.StatusOK, do(e, http.MethodGet, "/open", nil).Code)
}

func TestRecovery(t *testing.T) {
	req := require.New(t)
	w := do(newEngine([]byte("s"), nil), http.MethodGet, "/boom", nil)
	req.Equal(http.StatusInternalServerError, w.Code)

	var body resp.Body
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Equal(errs.ServerInternalError, body.Code)
	req.Equal("internal server error", body.Message)
}

func TestOrigin(t *testing.T) {
	req := require.New(t)
	e := newEngine([]byte("s"), []string{"https://chat.example.com/"})

	w := do(e, http.MethodGet, "/open", map[string]string{"Origin": "https://chat.example.com"})
	req.Equal(http.StatusOK, w.Code)
	req.Equal("https://chat.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(e, http.MethodGet, "/open", map[string]string{"Origin": "https://evil.example.com"})
	req.Equal(http.StatusForbidden, w.Code)

	// no Origin header: not a browser cross-site request
	req.Equal(http.StatusOK, do(e, http.MethodGet, "/open", nil).Code)
}
