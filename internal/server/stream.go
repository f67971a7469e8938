package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/mgoltzsche/online-vad/internal/audio"
	"github.com/mgoltzsche/online-vad/internal/channel"
)

const endMessage = "end"

// streamSession feeds binary wave messages received via websocket into the
// channel and writes the finalized segments back as JSON text messages.
// A text message "end" ends the recording and closes the connection.
func streamSession(ctx context.Context, channels *channel.Channels, c *channel.Channel, w http.ResponseWriter, req *http.Request) {
	conn, err := websocket.Accept(w, req, nil)
	if err != nil {
		writeError(w, fmt.Errorf("accept websocket connection: %w", err), http.StatusBadRequest)
		return
	}
	defer conn.CloseNow()

	slog.Debug("accepted websocket connection", "session", c.ID())

	ended, err := readAudioFromWebsocket(ctx, conn, c)
	if !ended {
		// The client disconnected without ending the recording.
		if _, e := c.End(); e != nil && !errors.Is(e, channel.ErrClosed) {
			slog.Warn("failed to end recording", "session", c.ID(), "err", e)
		}
	}

	if e := channels.Remove(c); e != nil {
		slog.Warn("failed to close session", "session", c.ID(), "err", e)
	}

	if err != nil {
		slog.Warn("websocket stream failed", "session", c.ID(), "err", err)
		conn.Close(websocket.StatusInternalError, "stream failed")
		return
	}

	conn.Close(websocket.StatusNormalClosure, "")
}

func readAudioFromWebsocket(ctx context.Context, conn *websocket.Conn, c *channel.Channel) (bool, error) {
	conn.SetReadLimit(-1)

	for {
		msgType, b, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return false, nil
			}
			return false, fmt.Errorf("read websocket message: %w", err)
		}

		if msgType == websocket.MessageText {
			if string(bytes.TrimSpace(b)) != endMessage {
				return false, fmt.Errorf("unexpected text message %q received, expected %q", b, endMessage)
			}

			result, err := c.End()
			if err != nil {
				return true, err
			}

			return true, writeSegments(ctx, conn, result.Emitted)
		}

		buf, err := audio.ReadWave(bytes.NewReader(b))
		if err != nil {
			return false, fmt.Errorf("read websocket audio message: %w", err)
		}

		result, err := c.Process(buf, false)
		if err != nil {
			return false, err
		}

		if err = writeSegments(ctx, conn, result.Emitted); err != nil {
			return false, err
		}
	}
}

func writeSegments(ctx context.Context, conn *websocket.Conn, segments []channel.SegmentEvent) error {
	for _, evt := range segments {
		if err := wsjson.Write(ctx, conn, evt); err != nil {
			return fmt.Errorf("write segment to websocket: %w", err)
		}
	}

	return nil
}

// streamEvents streams the channel's segment events as server-sent events
// until the channel is closed or the request is cancelled.
func streamEvents(ctx context.Context, c *channel.Channel, w http.ResponseWriter) error {
	s := c.Subscribe(ctx)
	defer s.Stop()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("X-Accel-Buffering", "no") // tell reverse proxy not to buffer
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	flush(w)

	ch := s.ResultChan()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return nil
			}

			b, err := json.Marshal(evt)
			if err != nil {
				return fmt.Errorf("marshal segment event: %w", err)
			}

			if _, err = fmt.Fprintf(w, "event: segment\ndata: %s\n\n", b); err != nil {
				return fmt.Errorf("write segment event: %w", err)
			}
		case <-time.After(50 * time.Second):
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return fmt.Errorf("send keep-alive: %w", err)
			}
		case <-ctx.Done():
			return nil
		}

		flush(w)
	}
}

func flush(w io.Writer) {
	flusher, ok := w.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}
