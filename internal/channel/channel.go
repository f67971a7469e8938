package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-audio/audio"

	vadaudio "github.com/mgoltzsche/online-vad/internal/audio"
	"github.com/mgoltzsche/online-vad/internal/model"
	"github.com/mgoltzsche/online-vad/internal/pubsub"
	"github.com/mgoltzsche/online-vad/internal/vad"
)

type SegmentEvent = model.SegmentEvent
type Subscriber = pubsub.Subscriber[SegmentEvent]

var ErrClosed = errors.New("channel is closed")

// Channel serializes the audio of a single recording into a VAD session
// and publishes the finalized segments to its subscribers.
type Channel struct {
	id         string
	sampleRate int
	mutex      sync.Mutex
	session    *vad.Session
	chunker    *vadaudio.Chunker
	output     *pubsub.PubSub[SegmentEvent]
	closed     bool
}

func newChannel(id string, sessions SessionFactory) (*Channel, error) {
	output := pubsub.New[SegmentEvent](id)
	publish := vad.SinkFunc(func(evt SegmentEvent) error {
		output.Publish(evt)
		return nil
	})

	session, err := sessions.NewSession(id, publish)
	if err != nil {
		return nil, err
	}

	opts := sessions.Options()

	return &Channel{
		id:         id,
		sampleRate: opts.SampleRate,
		session:    session,
		chunker:    &vadaudio.Chunker{Size: opts.SamplesPerChunk()},
		output:     output,
	}, nil
}

func (c *Channel) ID() string {
	return c.id
}

// Process feeds the audio into the session. When final is true the
// recording is ended and the remaining audio is flushed.
func (c *Channel) Process(buf audio.Buffer, final bool) (vad.Result, error) {
	if f := buf.PCMFormat(); f == nil || f.SampleRate != c.sampleRate {
		return vad.Result{}, fmt.Errorf("audio with unexpected sample rate provided, expected %d", c.sampleRate)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return vad.Result{}, ErrClosed
	}

	result := vad.Result{Continuing: true}

	for _, chunk := range c.chunker.Push(vadaudio.MonoSamples(buf)) {
		r, err := c.session.ProcessChunk(chunk, c.id, true)
		result.Segments = append(result.Segments, r.Segments...)
		result.Emitted = append(result.Emitted, r.Emitted...)
		if err != nil {
			return result, err
		}
		result.Continuing = r.Continuing
	}

	if final {
		r, err := c.flush()
		result.Segments = append(result.Segments, r.Segments...)
		result.Emitted = append(result.Emitted, r.Emitted...)
		if err != nil {
			return result, err
		}
		result.Continuing = r.Continuing
	}

	return result, nil
}

// End ends the recording, flushing the pending segment.
func (c *Channel) End() (vad.Result, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return vad.Result{}, ErrClosed
	}

	return c.flush()
}

func (c *Channel) flush() (vad.Result, error) {
	return c.session.ProcessChunk(c.chunker.Rest(), c.id, false)
}

func (c *Channel) Reinitiate() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.session.Reinitiate()

	return nil
}

func (c *Channel) Subscribe(ctx context.Context) pubsub.Subscription[SegmentEvent] {
	return c.output.Subscribe(ctx)
}

// Close releases the session and stops all subscriptions.
func (c *Channel) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.output.Stop()

	return c.session.Close()
}
