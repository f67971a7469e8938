package channel

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mgoltzsche/online-vad/internal/vad"
)

// SessionFactory creates the VAD session of a channel.
type SessionFactory interface {
	NewSession(name string, sinks ...vad.Sink) (*vad.Session, error)
	Options() vad.Options
}

type Channels struct {
	channels map[string]*Channel
	sessions SessionFactory
	active   prometheus.Gauge
	mutex    sync.Mutex
}

// NewChannels creates a channel registry. The active gauge is optional.
func NewChannels(sessions SessionFactory, active prometheus.Gauge) *Channels {
	return &Channels{
		channels: map[string]*Channel{},
		sessions: sessions,
		active:   active,
	}
}

func (r *Channels) GetOrCreate(id string) (*Channel, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	c, ok := r.channels[id]
	if !ok {
		c, err := newChannel(id, r.sessions)
		if err != nil {
			return nil, err
		}

		r.channels[id] = c
		if r.active != nil {
			r.active.Inc()
		}

		slog.Debug("created channel", "channel", id)

		return c, nil
	}

	return c, nil
}

func (r *Channels) Get(id string) (*Channel, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	c, ok := r.channels[id]

	return c, ok
}

// Remove closes the channel and removes it from the registry.
func (r *Channels) Remove(c *Channel) error {
	r.mutex.Lock()
	if r.channels[c.id] == c {
		delete(r.channels, c.id)
		if r.active != nil {
			r.active.Dec()
		}
	}
	r.mutex.Unlock()

	return c.Close()
}

// Close closes all channels.
func (r *Channels) Close() error {
	r.mutex.Lock()
	channels := r.channels
	r.channels = map[string]*Channel{}
	if r.active != nil {
		r.active.Sub(float64(len(channels)))
	}
	r.mutex.Unlock()

	var errs []error
	for _, c := range channels {
		errs = append(errs, c.Close())
	}

	return errors.Join(errs...)
}
