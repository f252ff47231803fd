package storage

import (
	"context"
	"sync"
	"time"

	"PPChat/module/chat/model"

	"github.com/google/uuid"
)

// MemoryStore keeps messages in process. Used for local runs and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	msgs []model.Message
	now  func() time.Time
	last time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Persist(_ context.Context, senderID, receiverID model.UserID, content string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC()
	// keep createdAt strictly increasing so history order matches insertion order
	if !ts.After(s.last) {
		ts = s.last.Add(time.Microsecond)
	}
	s.last = ts

	m := model.Message{
		MessageID:  uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  ts,
	}
	s.msgs = append(s.msgs, m)
	return m, nil
}

func (s *MemoryStore) QueryHistory(_ context.Context, userA, userB model.UserID, page, limit int) (model.HistoryPage, error) {
	page, limit = model.NormalizePage(page, limit)

	s.mu.RLock()
	var conv []model.Message
	for _, m := range s.msgs {
		if (m.SenderID == userA && m.ReceiverID == userB) || (m.SenderID == userB && m.ReceiverID == userA) {
			conv = append(conv, m)
		}
	}
	s.mu.RUnlock()

	total := int64(len(conv))
	start := (page - 1) * limit
	items := []model.Message{}
	if start < len(conv) {
		end := start + limit
		if end > len(conv) {
			end = len(conv)
		}
		items = append(items, conv[start:end]...)
	}
	return model.HistoryPage{Items: items, Meta: model.NewHistoryMeta(page, limit, total)}, nil
}
