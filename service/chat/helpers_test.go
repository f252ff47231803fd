package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"

	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	err    error
	onPush func(frame []byte)
}

func newFakeHandle(id string) *fakeHandle { return &fakeHandle{id: id} }

func (h *fakeHandle) ID() model.HandleID { return h.id }

func (h *fakeHandle) Push(frame []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	if h.onPush != nil {
		h.onPush(frame)
	}
	h.frames = append(h.frames, frame)
	return nil
}

func (h *fakeHandle) fail(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

func (h *fakeHandle) decoded(t *testing.T) []any {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]any, 0, len(h.frames))
	for _, f := range h.frames {
		v, err := DecodeFrame(f)
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func (h *fakeHandle) messages(t *testing.T) []model.Message {
	var out []model.Message
	for _, v := range h.decoded(t) {
		if m, ok := v.(model.Message); ok {
			out = append(out, m)
		}
	}
	return out
}

func (h *fakeHandle) presence(t *testing.T) []model.PresenceEvent {
	var out []model.PresenceEvent
	for _, v := range h.decoded(t) {
		if ev, ok := v.(model.PresenceEvent); ok {
			out = append(out, ev)
		}
	}
	return out
}

type fakeResolver struct {
	users map[string]bool
	err   error
}

func newFakeResolver(users ...string) *fakeResolver {
	r := &fakeResolver{users: map[string]bool{}}
	for _, u := range users {
		r.users[u] = true
	}
	return r
}

func (r *fakeResolver) ResolveUser(_ context.Context, userID model.UserID) (model.User, error) {
	if r.err != nil {
		return model.User{}, r.err
	}
	if !r.users[userID] {
		return model.User{}, errs.ErrUserNotFound.WrapMsg("", "userId", userID)
	}
	return model.User{UserID: userID, Name: userID}, nil
}

type fakeStore struct {
	mu   sync.Mutex
	msgs []model.Message
	err  error
	seq  int
	now  time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *fakeStore) Persist(_ context.Context, senderID, receiverID model.UserID, content string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.Message{}, s.err
	}
	s.seq++
	m := model.Message{
		MessageID:  fmt.Sprintf("m%d", s.seq),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  s.now.Add(time.Duration(s.seq) * time.Second),
	}
	s.msgs = append(s.msgs, m)
	return m, nil
}

func (s *fakeStore) QueryHistory(_ context.Context, a, b model.UserID, page, limit int) (model.HistoryPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []model.Message
	for _, m := range s.msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			items = append(items, m)
		}
	}
	return model.HistoryPage{Items: items, Meta: model.NewHistoryMeta(page, limit, int64(len(items)))}, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

type chanObserver struct{ ch chan model.PresenceEvent }

func (o chanObserver) Observe(_ context.Context, ev model.PresenceEvent) error {
	o.ch <- ev
	return nil
}

type chanPublisher struct{ ch chan model.Message }

func (p chanPublisher) Publish(_ context.Context, m model.Message) error {
	p.ch <- m
	return nil
}

var errBoom = errors.New("boom")

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
