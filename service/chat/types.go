package chat

import (
	"context"
	"time"

	"PPChat/module/chat/model"
)

// Handle is one live connection as seen by the core. Push must not block: it either
// enqueues the frame for the connection's writer or fails.
type Handle interface {
	ID() model.HandleID
	Push(frame []byte) error
}

// IdentityResolver confirms that a user exists.
type IdentityResolver interface {
	ResolveUser(ctx context.Context, userID model.UserID) (model.User, error)
}

// MessageStore durably records messages and answers history queries.
type MessageStore interface {
	Persist(ctx context.Context, senderID, receiverID model.UserID, content string) (model.Message, error)
	QueryHistory(ctx context.Context, userA, userB model.UserID, page, limit int) (model.HistoryPage, error)
}

// EventPublisher ships persisted messages to downstream consumers. Best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

// PresenceObserver is notified after every presence transition, off the caller's path.
type PresenceObserver interface {
	Observe(ctx context.Context, ev model.PresenceEvent) error
}

// PresenceDirectory is the shared presence mirror. The local registry stays authoritative;
// the directory is only checked for keys this node left behind.
type PresenceDirectory interface {
	PresenceLookup(ctx context.Context, userID model.UserID) (node string, online bool, err error)
	ClearPresence(ctx context.Context, userID model.UserID) error
}

// LastSeenReader answers when a user was last seen going offline.
type LastSeenReader interface {
	LastSeen(ctx context.Context, userID model.UserID) (*time.Time, error)
}
