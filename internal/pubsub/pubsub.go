package pubsub

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultBufferSize     = 10
	defaultPublishTimeout = 20 * time.Second
)

type Publisher[E any] interface {
	Publish(evt E)
}

type Subscriber[E any] interface {
	Subscribe(ctx context.Context) Subscription[E]
}

type Subscription[E any] interface {
	ResultChan() <-chan E
	Stop()
}

// PubSub fans events out to all subscribers.
// A subscriber that does not accept an event within PublishTimeout is removed.
type PubSub[E any] struct {
	Name           string
	BufferSize     int
	PublishTimeout time.Duration

	mutex         sync.RWMutex
	subscriptions map[int64]*subscription[E]
	seq           int64
	stopped       bool
}

func New[E any](name string) *PubSub[E] {
	return &PubSub[E]{
		Name:           name,
		BufferSize:     defaultBufferSize,
		PublishTimeout: defaultPublishTimeout,
		subscriptions:  map[int64]*subscription[E]{},
	}
}

// Stop closes all subscriptions. Events published afterwards are dropped.
func (p *PubSub[E]) Stop() {
	p.mutex.Lock()
	p.stopped = true
	subscriptions := make([]*subscription[E], 0, len(p.subscriptions))
	for _, s := range p.subscriptions {
		subscriptions = append(subscriptions, s)
	}
	p.mutex.Unlock()

	for _, s := range subscriptions {
		s.Stop()
	}
}

func (p *PubSub[E]) Subscribe(ctx context.Context) Subscription[E] {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.stopped {
		return noopSubscription[E]{}
	}

	p.seq++

	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan E, max(0, p.BufferSize))
	s := &subscription[E]{
		id:     p.seq,
		cancel: cancel,
		pubsub: p,
		ch:     ch,
		out:    ch,
	}
	p.subscriptions[s.id] = s

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return s
}

func (p *PubSub[E]) Publish(evt E) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if p.stopped {
		return
	}

	for _, s := range p.subscriptions {
		select {
		case s.ch <- evt:
		case <-time.After(p.PublishTimeout):
			slog.Warn("kicking subscriber since it timed out accepting the event", "pubsub", p.Name, "subscription", s.id, "timeout", p.PublishTimeout)
			go s.Stop()
		}
	}
}

type subscription[E any] struct {
	pubsub *PubSub[E]
	id     int64
	cancel context.CancelFunc
	ch     chan E
	out    <-chan E
}

func (s *subscription[E]) Stop() {
	s.pubsub.mutex.Lock()
	delete(s.pubsub.subscriptions, s.id)
	ch := s.ch
	s.ch = nil
	s.pubsub.mutex.Unlock()
	if ch != nil {
		close(ch)
		s.cancel()
		for range ch {
		}
	}
}

func (s *subscription[E]) ResultChan() <-chan E {
	return s.out
}

type noopSubscription[E any] struct{}

func (noopSubscription[E]) Stop() {}

func (noopSubscription[E]) ResultChan() <-chan E {
	ch := make(chan E)
	close(ch)
	return ch
}
