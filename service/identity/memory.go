package identity

import (
	"context"
	"sync"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"
)

// MemoryResolver resolves users from an in-process table.
type MemoryResolver struct {
	mu    sync.RWMutex
	users map[model.UserID]model.User
}

func NewMemoryResolver(users ...model.User) *MemoryResolver {
	r := &MemoryResolver{users: make(map[model.UserID]model.User, len(users))}
	for _, u := range users {
		r.users[u.UserID] = u
	}
	return r
}

func (r *MemoryResolver) Add(u model.User) {
	r.mu.Lock()
	r.users[u.UserID] = u
	r.mu.Unlock()
}

func (r *MemoryResolver) ResolveUser(_ context.Context, userID model.UserID) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return model.User{}, errs.ErrUserNotFound.WrapMsg("", "userId", userID)
	}
	return u, nil
}

// AcceptAll resolves every non-empty id to a user of the same name. For local runs.
type AcceptAll struct{}

func (AcceptAll) ResolveUser(_ context.Context, userID model.UserID) (model.User, error) {
	if userID == "" {
		return model.User{}, errs.ErrUserNotFound.WrapMsg("empty user id")
	}
	return model.User{UserID: userID, Name: userID}, nil
}
