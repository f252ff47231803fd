package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"PPChat/module/chat/model"
	"PPChat/tools/safe"

	"go.uber.org/zap"
)

const observerQueueSize = 1024

type observed struct {
	ctx context.Context
	ev  model.PresenceEvent
}

// Broadcaster tells every other connected user about an online/offline transition.
// Pushes never block and failures are only counted.
// Observers are fed by a single worker, so they see events in announce order.
type Broadcaster struct {
	reg       *Registry
	observers []PresenceObserver
	timeout   time.Duration
	log       *zap.Logger

	queue     chan observed
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	pushed          atomic.Int64
	dropped         atomic.Int64
	observerDropped atomic.Int64
}

func NewBroadcaster(reg *Registry, log *zap.Logger, observerTimeout time.Duration, observers ...PresenceObserver) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	if observerTimeout <= 0 {
		observerTimeout = 2 * time.Second
	}
	b := &Broadcaster{
		reg:       reg,
		observers: observers,
		timeout:   observerTimeout,
		log:       log,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	if len(observers) == 0 {
		close(b.stopped)
		return b
	}
	b.queue = make(chan observed, observerQueueSize)
	safe.SafeGo("presence-observer", b.run)
	return b
}

// Announce must be called after the registry mutation behind ev has taken effect.
func (b *Broadcaster) Announce(ctx context.Context, ev model.PresenceEvent, origin model.HandleID) {
	frame, err := EncodeFrame(ev)
	if err != nil {
		b.log.Error("encode presence", zap.String("user", ev.UserID), zap.Error(err))
		return
	}

	for _, h := range b.reg.Others(origin) {
		if err := h.Push(frame); err != nil {
			b.dropped.Add(1)
			b.log.Debug("presence push failed", zap.String("handle", h.ID()), zap.Error(err))
			continue
		}
		b.pushed.Add(1)
	}

	if b.queue == nil {
		return
	}
	select {
	case <-b.done:
		b.observerDropped.Add(1)
		return
	default:
	}
	select {
	case b.queue <- observed{ctx: context.WithoutCancel(ctx), ev: ev}:
	default:
		// 队列满直接丢，不阻塞连接生命周期
		b.observerDropped.Add(1)
		b.log.Warn("presence observer queue full", zap.String("user", ev.UserID), zap.Bool("online", ev.IsOnline))
	}
}

func (b *Broadcaster) run() {
	defer close(b.stopped)
	for {
		select {
		case item := <-b.queue:
			b.notify(item)
		case <-b.done:
			// drain what was accepted before Close
			for {
				select {
				case item := <-b.queue:
					b.notify(item)
				default:
					return
				}
			}
		}
	}
}

func (b *Broadcaster) notify(item observed) {
	for _, o := range b.observers {
		func() {
			defer safe.Recover("presence-observer")
			octx, cancel := context.WithTimeout(item.ctx, b.timeout)
			defer cancel()
			if err := o.Observe(octx, item.ev); err != nil {
				b.log.Warn("presence observer failed", zap.String("user", item.ev.UserID), zap.Bool("online", item.ev.IsOnline), zap.Error(err))
			}
		}()
	}
}

// Close stops the observer worker after it has delivered what is already queued.
func (b *Broadcaster) Close(ctx context.Context) error {
	b.closeOnce.Do(func() { close(b.done) })
	select {
	case <-b.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the number of presence frames queued and dropped since start.
func (b *Broadcaster) Stats() (pushed, dropped int64) {
	return b.pushed.Load(), b.dropped.Load()
}

// ObserverDropped counts events that never reached the observers.
func (b *Broadcaster) ObserverDropped() int64 { return b.observerDropped.Load() }
