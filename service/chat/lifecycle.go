package chat

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"

	"go.uber.org/zap"
)

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the lifecycle of one connection: Connecting -> Open -> Closed.
type Session struct {
	gw     *Gateway
	userID model.UserID
	handle Handle
	state  atomic.Int32
	once   sync.Once
}

func (s *Session) State() State             { return State(s.state.Load()) }
func (s *Session) UserID() model.UserID     { return s.userID }
func (s *Session) Handle() Handle           { return s.handle }
func (s *Session) HandleID() model.HandleID { return s.handle.ID() }

// Close moves the session to Closed. Safe to call more than once and from any goroutine.
func (s *Session) Close() {
	s.once.Do(func() {
		prev := State(s.state.Swap(int32(StateClosed)))
		if prev == StateOpen {
			s.gw.Disconnect(s.handle.ID())
		}
	})
}

// Gateway drives connection lifecycles against the registry and the broadcaster.
type Gateway struct {
	reg      *Registry
	bc       *Broadcaster
	resolver IdentityResolver
	log      *zap.Logger
	now      func() time.Time
}

// NewGateway builds a Gateway. resolver may be nil, in which case any non-empty
// identity is accepted.
func NewGateway(reg *Registry, bc *Broadcaster, resolver IdentityResolver, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{reg: reg, bc: bc, resolver: resolver, log: log, now: time.Now}
}

// Connect runs the Connecting state for h. Anonymous or unresolvable identities are
// rejected without touching the registry.
func (g *Gateway) Connect(ctx context.Context, userID model.UserID, h Handle) (*Session, error) {
	s := &Session{gw: g, userID: strings.TrimSpace(userID), handle: h}
	s.state.Store(int32(StateConnecting))

	if s.userID == "" {
		s.state.Store(int32(StateClosed))
		return nil, errs.ErrAnonymousConnection.WrapMsg("handshake carries no user id", "handle", h.ID())
	}
	if g.resolver != nil {
		if _, err := g.resolver.ResolveUser(ctx, s.userID); err != nil {
			s.state.Store(int32(StateClosed))
			return nil, err
		}
	}

	prior, replaced := g.reg.Register(s.userID, h)
	s.state.Store(int32(StateOpen))
	if replaced {
		g.log.Info("connection superseded",
			zap.String("user", s.userID), zap.String("old", prior.ID()), zap.String("new", h.ID()))
	}
	g.bc.Announce(ctx, model.PresenceEvent{UserID: s.userID, IsOnline: true, Timestamp: g.now()}, h.ID())
	return s, nil
}

// Disconnect removes the handle and announces the user offline if it was registered.
// Returns false for unknown or already removed handles.
func (g *Gateway) Disconnect(handleID model.HandleID) bool {
	userID, ok := g.reg.Unregister(handleID)
	if !ok {
		return false
	}
	g.bc.Announce(context.Background(), model.PresenceEvent{UserID: userID, IsOnline: false, Timestamp: g.now()}, handleID)
	return true
}

func (g *Gateway) Registry() *Registry { return g.reg }
