package mgo

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"PPChat/data/database/mgo/mongoutil"
	"PPChat/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	baseBackoff = 200 * time.Millisecond
	maxBackoff  = 5 * time.Second
	healthEvery = 10 * time.Second // 健康检查周期
	failThresh  = 3                // 连续失败阈值
)

// ErrNotReady is returned by DB while no connection is established.
var ErrNotReady = errs.New("mongo not ready")

// Manager keeps one MongoDB client alive: connects with backoff, pings periodically
// and reconnects after repeated failures.
type Manager struct {
	cfg *mongoutil.Config
	log *zap.Logger

	mu        sync.RWMutex
	client    *mongoutil.Client
	readyCh   chan struct{} // 首次就绪通知；只会被 close 一次
	readyOnce sync.Once
	lastErr   atomic.Value // error
	stopped   chan struct{}
}

func NewManager(cfg *mongoutil.Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{cfg: cfg, log: log, readyCh: make(chan struct{}), stopped: make(chan struct{})}
}

// Start runs until ctx is done; the client is disconnected on exit.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		defer close(m.stopped)
		for {
			if !m.connect(ctx) {
				m.drop()
				return
			}
			if !m.watch(ctx) {
				m.drop()
				return
			}
			m.log.Warn("mongo unhealthy, reconnecting", zap.Error(m.Err()))
			m.drop()
		}
	}()
}

// connect retries with jittered exponential backoff. Returns false when ctx ends first.
func (m *Manager) connect(ctx context.Context) bool {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return false
		}
		cli, err := mongoutil.NewMongoDB(ctx, m.cfg)
		if err == nil {
			m.mu.Lock()
			m.client = cli
			m.mu.Unlock()
			m.readyOnce.Do(func() { close(m.readyCh) })
			m.log.Info("mongo connected", zap.String("database", m.cfg.Database))
			return true
		}
		m.lastErr.Store(err)
		m.log.Warn("mongo connect failed", zap.Int("attempt", attempt), zap.Error(err))

		backoff := baseBackoff << attempt
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		jitter := time.Duration(rand.Int63n(int64(backoff/5) + 1)) // 0~20%
		timer := time.NewTimer(backoff - jitter/2)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		if attempt < 6 {
			attempt++
		}
	}
}

// watch pings until failThresh consecutive failures (returns true) or ctx ends (false).
func (m *Manager) watch(ctx context.Context) bool {
	ticker := time.NewTicker(healthEvery)
	defer ticker.Stop()
	fail := 0
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			m.mu.RLock()
			c := m.client
			m.mu.RUnlock()
			if c == nil {
				return true
			}
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := c.Ping(pctx)
			cancel()
			if err == nil {
				fail = 0
				continue
			}
			fail++
			m.lastErr.Store(err)
			if fail >= failThresh {
				return true
			}
		}
	}
}

func (m *Manager) drop() {
	m.mu.Lock()
	c := m.client
	m.client = nil
	m.mu.Unlock()
	if c != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	}
}

// Ready is closed after the first successful connection.
func (m *Manager) Ready() <-chan struct{} { return m.readyCh }

// Stopped is closed once Start's loop has exited and the client is released.
func (m *Manager) Stopped() <-chan struct{} { return m.stopped }

// WaitReady blocks until the first connection or ctx expiry.
func (m *Manager) WaitReady(ctx context.Context) error {
	select {
	case <-m.readyCh:
		return nil
	case <-ctx.Done():
		if err := m.Err(); err != nil {
			return errs.Wrap(err, "mongo not ready")
		}
		return ctx.Err()
	}
}

// DB returns the current database handle.
func (m *Manager) DB() (*mongo.Database, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, ErrNotReady
	}
	return m.client.GetDB(), nil
}

// Err returns the most recent connection or ping error.
func (m *Manager) Err() error {
	if v := m.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}
