package chat

import (
	"sync"
	"time"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ===== 配置 =====

type ConnOptions struct {
	SendQueueSize   int           // 每连接发送队列长度
	WriteWait       time.Duration // 单次写超时
	PongWait        time.Duration // 读超时，收到 pong 续期
	PingInterval    time.Duration // 必须小于 PongWait
	MaxMessageBytes int64         // 单帧上限
}

func (o *ConnOptions) norm() {
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 256
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 << 10
	}
}

// WsConn is a Handle backed by a gorilla websocket. All socket writes happen on the
// write pump; Push only enqueues.
type WsConn struct {
	id   model.HandleID
	ws   *websocket.Conn
	opts ConnOptions
	log  *zap.Logger

	mu          sync.RWMutex
	closed      bool
	closeCode   int
	closeReason string
	send        chan []byte // 每连接独立发送队列（业务帧），由写协程消费
	done        chan struct{}
}

func NewWsConn(id model.HandleID, ws *websocket.Conn, opts ConnOptions, log *zap.Logger) *WsConn {
	opts.norm()
	if log == nil {
		log = zap.NewNop()
	}
	return &WsConn{
		id:        id,
		ws:        ws,
		opts:      opts,
		log:       log.With(zap.String("handle", id)),
		closeCode: websocket.CloseNormalClosure,
		send:      make(chan []byte, opts.SendQueueSize),
		done:      make(chan struct{}),
	}
}

func (c *WsConn) ID() model.HandleID { return c.id }

// Push enqueues frame without blocking.
func (c *WsConn) Push(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errs.ErrHandleClosed.WrapMsg("", "handle", c.id)
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errs.ErrSlowConsumer.WrapMsg("", "handle", c.id)
	}
}

// CloseWith stops accepting frames; the write pump flushes what is queued, sends a close
// frame with code and reason, then closes the socket. Only the first call counts.
func (c *WsConn) CloseWith(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
}

// Done is closed once the socket has been closed by the write pump.
func (c *WsConn) Done() <-chan struct{} { return c.done }

func (c *WsConn) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.done)
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				c.mu.RLock()
				code, reason := c.closeCode, c.closeReason
				c.mu.RUnlock()
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("write frame", zap.Error(err))
				c.CloseWith(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				c.log.Debug("write ping", zap.Error(err))
				c.CloseWith(websocket.CloseAbnormalClosure, "")
				return
			}
		}
	}
}

// readLoop delivers text/binary frames to onFrame until the peer goes away, the read
// deadline passes without a pong, or the socket is closed locally.
func (c *WsConn) readLoop(onFrame func(raw []byte)) error {
	c.ws.SetReadLimit(c.opts.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		onFrame(data)
	}
}
