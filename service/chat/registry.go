package chat

import (
	"sync"

	"PPChat/module/chat/model"
)

// Registry maps each online user to its single live handle and each handle back to
// its user. One handle per user: a newer connection replaces the older one.
type Registry struct {
	mu       sync.RWMutex
	byUser   map[model.UserID]Handle
	byHandle map[model.HandleID]model.UserID
}

func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[model.UserID]Handle),
		byHandle: make(map[model.HandleID]model.UserID),
	}
}

// Register associates h with userID and returns the handle it replaced, if any.
func (r *Registry) Register(userID model.UserID, h Handle) (Handle, bool) {
	id := h.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	// a handle belongs to exactly one user
	if owner, ok := r.byHandle[id]; ok && owner != userID {
		if cur, ok := r.byUser[owner]; ok && cur.ID() == id {
			delete(r.byUser, owner)
		}
		delete(r.byHandle, id)
	}

	prior, replaced := r.byUser[userID]
	if replaced {
		if prior.ID() == id {
			replaced = false
		} else {
			delete(r.byHandle, prior.ID())
		}
	}
	r.byUser[userID] = h
	r.byHandle[id] = userID
	if !replaced {
		return nil, false
	}
	return prior, true
}

// Unregister removes whatever association maps to handleID and reports the user that
// owned it. Calling it for an unknown or already removed handle is a no-op.
func (r *Registry) Unregister(handleID model.HandleID) (model.UserID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byHandle[handleID]
	if !ok {
		return "", false
	}
	delete(r.byHandle, handleID)
	if cur, ok := r.byUser[userID]; ok && cur.ID() == handleID {
		delete(r.byUser, userID)
	}
	return userID, true
}

func (r *Registry) Lookup(userID model.UserID) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byUser[userID]
	return h, ok
}

func (r *Registry) ReverseLookup(handleID model.HandleID) (model.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byHandle[handleID]
	return u, ok
}

func (r *Registry) IsOnline(userID model.UserID) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Others snapshots every registered handle except the one given.
func (r *Registry) Others(except model.HandleID) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handle, 0, len(r.byUser))
	for _, h := range r.byUser {
		if h.ID() != except {
			out = append(out, h)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
