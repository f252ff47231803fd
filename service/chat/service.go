package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"
	"PPChat/tools/safe"

	"go.uber.org/zap"
)

// SendResult is returned once the message is durable.
type SendResult struct {
	Message  model.Message   `json:"message"`
	Delivery DeliveryOutcome `json:"delivery"`
}

type ServiceOptions struct {
	MaxContentRunes int
	PublishTimeout  time.Duration
	Publishers      []EventPublisher
	LastSeen        LastSeenReader
	Directory       PresenceDirectory
	NodeID          string
	Log             *zap.Logger
}

// Service orchestrates resolve -> persist -> route -> publish for one message.
type Service struct {
	reg        *Registry
	router     *Router
	resolver   IdentityResolver
	store      MessageStore
	publishers []EventPublisher
	lastSeen   LastSeenReader
	directory  PresenceDirectory
	nodeID     string
	maxRunes   int
	pubTimeout time.Duration
	log        *zap.Logger
}

func NewService(reg *Registry, router *Router, resolver IdentityResolver, store MessageStore, opts ServiceOptions) *Service {
	safe.MustNotNil(resolver, "resolver")
	safe.MustNotNil(store, "store")
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}
	return &Service{
		reg:        reg,
		router:     router,
		resolver:   resolver,
		store:      store,
		publishers: opts.Publishers,
		lastSeen:   opts.LastSeen,
		directory:  opts.Directory,
		nodeID:     opts.NodeID,
		maxRunes:   safe.DefaultInt(opts.MaxContentRunes, 4000),
		pubTimeout: opts.PublishTimeout,
		log:        opts.Log,
	}
}

// SendMessage persists the message and then attempts live delivery to both participants.
// Push failures never fail the call; they are reported in SendResult.Delivery.
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID model.UserID, content string) (SendResult, error) {
	senderID = strings.TrimSpace(senderID)
	receiverID = strings.TrimSpace(receiverID)
	if senderID == "" {
		return SendResult{}, errs.ErrUnauthenticated.WrapMsg("sender is required")
	}
	if receiverID == "" {
		return SendResult{}, errs.ErrArgs.WrapMsg("receiverId is required")
	}
	if strings.TrimSpace(content) == "" {
		return SendResult{}, errs.ErrArgs.WrapMsg("content is required")
	}
	if n := utf8.RuneCountInString(content); n > s.maxRunes {
		return SendResult{}, errs.ErrArgs.WrapMsg("content too long", "runes", n, "max", s.maxRunes)
	}

	if _, err := s.resolver.ResolveUser(ctx, receiverID); err != nil {
		if errors.Is(err, errs.ErrUserNotFound) {
			return SendResult{}, errs.ErrRecipientNotFound.WrapMsg("", "receiverId", receiverID)
		}
		return SendResult{}, errs.WrapMsg(err, "resolve receiver", "receiverId", receiverID)
	}

	msg, err := s.store.Persist(ctx, senderID, receiverID, content)
	if err != nil {
		s.log.Error("persist message", zap.String("sender", senderID), zap.String("receiver", receiverID), zap.Error(err))
		return SendResult{}, errs.ErrPersistence.WrapMsg("", "sender", senderID, "receiver", receiverID)
	}
	if !msg.Persisted() {
		s.log.Error("store returned message without id", zap.String("sender", senderID))
		return SendResult{}, errs.ErrPersistence.WrapMsg("missing message id")
	}

	delivery := s.router.Route(msg)
	s.log.Debug("message routed",
		zap.String("msg", msg.MessageID),
		zap.Bool("receiverQueued", delivery.Receiver.Queued),
		zap.Bool("senderQueued", delivery.Sender.Queued),
		zap.Bool("fallback", delivery.FallbackToStorage))

	s.publish(ctx, msg)
	return SendResult{Message: msg, Delivery: delivery}, nil
}

func (s *Service) publish(ctx context.Context, msg model.Message) {
	for _, p := range s.publishers {
		p := p
		safe.SafeGo("message-publisher", func() {
			pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.pubTimeout)
			defer cancel()
			if err := p.Publish(pctx, msg); err != nil {
				s.log.Warn("publish message event", zap.String("msg", msg.MessageID), zap.Error(err))
			}
		})
	}
}

// History returns one page of the conversation between requester and peer, oldest first.
// Zero page or limit select the defaults.
func (s *Service) History(ctx context.Context, requesterID, peerID model.UserID, page, limit int) (model.HistoryPage, error) {
	requesterID = strings.TrimSpace(requesterID)
	peerID = strings.TrimSpace(peerID)
	if requesterID == "" {
		return model.HistoryPage{}, errs.ErrUnauthenticated.WrapMsg("requester is required")
	}
	if peerID == "" {
		return model.HistoryPage{}, errs.ErrArgs.WrapMsg("user id is required")
	}
	if page == 0 {
		page = model.DefaultPage
	}
	if limit == 0 {
		limit = model.DefaultLimit
	}
	if page < 1 {
		return model.HistoryPage{}, errs.ErrArgs.WrapMsg("page must not be less than 1", "page", page)
	}
	if limit < 1 || limit > model.MaxLimit {
		return model.HistoryPage{}, errs.ErrArgs.WrapMsg("limit out of range", "limit", limit, "max", model.MaxLimit)
	}

	if _, err := s.resolver.ResolveUser(ctx, peerID); err != nil {
		if errors.Is(err, errs.ErrUserNotFound) {
			return model.HistoryPage{}, err
		}
		return model.HistoryPage{}, errs.WrapMsg(err, "resolve peer", "userId", peerID)
	}

	hp, err := s.store.QueryHistory(ctx, requesterID, peerID, page, limit)
	if err != nil {
		return model.HistoryPage{}, errs.WrapMsg(err, "query history", "userA", requesterID, "userB", peerID)
	}
	if hp.Items == nil {
		hp.Items = []model.Message{}
	}
	return hp, nil
}

// Presence reports whether userID holds a live connection, with the last offline time
// when a reader is configured.
func (s *Service) Presence(ctx context.Context, userID model.UserID) (model.PresenceStatus, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.PresenceStatus{}, errs.ErrArgs.WrapMsg("user id is required")
	}
	st := model.PresenceStatus{UserID: userID, IsOnline: s.reg.IsOnline(userID)}
	if st.IsOnline {
		return st, nil
	}
	s.clearStalePresence(ctx, userID)
	if s.lastSeen == nil {
		return st, nil
	}
	ts, err := s.lastSeen.LastSeen(ctx, userID)
	if err != nil {
		s.log.Warn("read last seen", zap.String("user", userID), zap.Error(err))
		return st, nil
	}
	st.LastSeen = ts
	return st, nil
}

// clearStalePresence drops a mirror key that claims userID is online on this node
// while the registry has no handle for it.
func (s *Service) clearStalePresence(ctx context.Context, userID model.UserID) {
	if s.directory == nil {
		return
	}
	node, online, err := s.directory.PresenceLookup(ctx, userID)
	if err != nil {
		s.log.Warn("presence lookup", zap.String("user", userID), zap.Error(err))
		return
	}
	if !online || node != s.nodeID || s.reg.IsOnline(userID) {
		return
	}
	if err := s.directory.ClearPresence(ctx, userID); err != nil {
		s.log.Warn("clear stale presence", zap.String("user", userID), zap.Error(err))
		return
	}
	s.log.Info("stale presence cleared", zap.String("user", userID), zap.String("node", node))
}
