package chat

import (
	"context"
	"net/http"
	"sync"
	"time"

	"PPChat/tools/errs"
	"PPChat/tools/ids"
	"PPChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WsServerOptions struct {
	Conn               ConnOptions
	Jwt                security.Options
	AllowQueryIdentity bool          // ?userId= 直接声明身份，仅用于开发联调
	HandshakeTimeout   time.Duration // Connecting 阶段身份解析的上限，默认 10s
}

// WsServer upgrades HTTP requests to websocket connections and runs one session per
// connection.
type WsServer struct {
	gw       *Gateway
	svc      *Service
	opts     WsServerOptions
	upgrader websocket.Upgrader
	log      *zap.Logger

	conns sync.Map // HandleID -> *WsConn
	wg    sync.WaitGroup
}

func NewWsServer(gw *Gateway, svc *Service, opts WsServerOptions, log *zap.Logger) *WsServer {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	return &WsServer{
		gw:   gw,
		svc:  svc,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true }, // Origin 由 gin 中间件校验
		},
		log: log,
	}
}

// identify returns the user id the handshake claims; "" means anonymous.
func (s *WsServer) identify(r *http.Request) (string, error) {
	token := security.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token != "" {
		userID, err := security.Verify(s.opts.Jwt, token)
		if err != nil {
			return "", errs.ErrUnauthenticated.WrapMsg("", "err", err)
		}
		return userID, nil
	}
	if s.opts.AllowQueryIdentity {
		return r.URL.Query().Get("userId"), nil
	}
	return "", nil
}

// HandleWS ===== WebSocket 处理 =====
func (s *WsServer) HandleWS(c *gin.Context) {
	userID, idErr := s.identify(c.Request)

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 常见：非 WebSocket 请求/握手失败，Upgrade 已写回 4xx
		s.log.Info("upgrade websocket", zap.Error(err))
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()

	conn := NewWsConn(ids.GenerateString(), ws, s.opts.Conn, s.log)
	s.conns.Store(conn.ID(), conn)
	defer s.conns.Delete(conn.ID())
	go conn.writePump()

	if idErr != nil {
		s.reject(conn, idErr)
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	hctx, cancel := context.WithTimeout(ctx, s.opts.HandshakeTimeout)
	sess, err := s.gw.Connect(hctx, userID, conn)
	cancel()
	if err != nil {
		s.reject(conn, err)
		return
	}
	s.log.Info("connection open", zap.String("user", sess.UserID()), zap.String("handle", conn.ID()))

	rerr := conn.readLoop(func(raw []byte) { s.handleFrame(ctx, sess, conn, raw) })
	if websocket.IsUnexpectedCloseError(rerr, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		s.log.Debug("read loop ended", zap.String("handle", conn.ID()), zap.Error(rerr))
	}

	// any transport closure ends the session the same way
	sess.Close()
	conn.CloseWith(websocket.CloseNormalClosure, "")
	<-conn.Done()
	s.log.Info("connection closed", zap.String("user", sess.UserID()), zap.String("handle", conn.ID()))
}

func (s *WsServer) reject(conn *WsConn, err error) {
	s.log.Info("connection rejected", zap.String("handle", conn.ID()), zap.Error(err))
	if frame, ferr := EncodeFrame(NewErrorPayload(err)); ferr == nil {
		_ = conn.Push(frame)
	}
	conn.CloseWith(websocket.ClosePolicyViolation, errs.As(err).Msg)
	<-conn.Done()
}

func (s *WsServer) handleFrame(ctx context.Context, sess *Session, conn *WsConn, raw []byte) {
	f, err := ParseFrame(raw)
	if err != nil {
		s.reply(conn, "", NewErrorPayload(err))
		return
	}
	v, err := f.Decode()
	if err != nil {
		s.reply(conn, f.ID, NewErrorPayload(err))
		return
	}

	switch req := v.(type) {
	case SendMessageRequest:
		res, err := s.svc.SendMessage(ctx, sess.UserID(), req.ReceiverID, req.Content)
		if err != nil {
			s.reply(conn, f.ID, NewErrorPayload(err))
			return
		}
		s.reply(conn, f.ID, AckPayload{MessageID: res.Message.MessageID, Delivery: res.Delivery})
	default:
		s.reply(conn, f.ID, NewErrorPayload(errs.ErrArgs.WrapMsg("frame type not accepted from clients", "type", f.Type)))
	}
}

func (s *WsServer) reply(conn *WsConn, requestID string, v any) {
	frame, err := EncodeReply(requestID, v)
	if err != nil {
		s.log.Error("encode reply", zap.Error(err))
		return
	}
	if err := conn.Push(frame); err != nil {
		s.log.Debug("reply push failed", zap.String("handle", conn.ID()), zap.Error(err))
	}
}

// Shutdown closes every connection with "going away" and waits for the handlers to
// finish or ctx to expire.
func (s *WsServer) Shutdown(ctx context.Context) error {
	s.conns.Range(func(_, v any) bool {
		v.(*WsConn).CloseWith(websocket.CloseGoingAway, "server shutting down")
		return true
	})
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
