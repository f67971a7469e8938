package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mgoltzsche/online-vad/internal/audio"
	"github.com/mgoltzsche/online-vad/internal/channel"
	"github.com/mgoltzsche/online-vad/internal/model"
	"github.com/mgoltzsche/online-vad/internal/vad"
)

// SegmentsResponse is returned by the audio and session endpoints.
type SegmentsResponse struct {
	Continuing bool                 `json:"continuing"`
	Segments   []model.SegmentEvent `json:"segments"`
}

type Options struct {
	Channels *channel.Channels
	Gatherer prometheus.Gatherer
	// HTTPRequests counts requests by route and code. It is optional.
	HTTPRequests *prometheus.CounterVec
}

func AddRoutes(ctx context.Context, o Options, mux *http.ServeMux) {
	handle := func(pattern, route string, h http.HandlerFunc) {
		var handler http.Handler = h
		if o.HTTPRequests != nil {
			handler = promhttp.InstrumentHandlerCounter(o.HTTPRequests.MustCurryWith(prometheus.Labels{"route": route}), handler)
		}
		mux.Handle(pattern, handler)
	}

	channels := o.Channels

	handle("POST /sessions/{sessionId}/audio", "audio", func(w http.ResponseWriter, req *http.Request) {
		defer req.Body.Close()

		final, err := parseBoolParam(req, "final")
		if err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}

		buf, err := audio.ReadWave(req.Body)
		if err != nil {
			writeError(w, fmt.Errorf("failed to read PCM audio from request body: %w", err), http.StatusBadRequest)
			return
		}

		c, err := channels.GetOrCreate(req.PathValue("sessionId"))
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}

		result, err := c.Process(buf, final)
		if final {
			if e := channels.Remove(c); e != nil {
				slog.Warn("failed to close session", "session", c.ID(), "err", e)
			}
		}
		if err != nil {
			writeProcessError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, segmentsResponse(result))
	})

	handle("GET /sessions/{sessionId}/stream", "stream", func(w http.ResponseWriter, req *http.Request) {
		c, err := channels.GetOrCreate(req.PathValue("sessionId"))
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}

		streamSession(req.Context(), channels, c, w, req)
	})

	handle("GET /sessions/{sessionId}/events", "events", func(w http.ResponseWriter, req *http.Request) {
		c, ok := channels.Get(req.PathValue("sessionId"))
		if !ok {
			writeError(w, fmt.Errorf("session %q not found", req.PathValue("sessionId")), http.StatusNotFound)
			return
		}

		err := streamEvents(req.Context(), c, w)
		if err != nil {
			slog.Warn("failed to stream segment events", "session", c.ID(), "err", err)
		}
	})

	handle("POST /sessions/{sessionId}/reinitiate", "reinitiate", func(w http.ResponseWriter, req *http.Request) {
		c, ok := channels.Get(req.PathValue("sessionId"))
		if !ok {
			writeError(w, fmt.Errorf("session %q not found", req.PathValue("sessionId")), http.StatusNotFound)
			return
		}

		if err := c.Reinitiate(); err != nil {
			writeProcessError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})

	handle("DELETE /sessions/{sessionId}", "delete", func(w http.ResponseWriter, req *http.Request) {
		c, ok := channels.Get(req.PathValue("sessionId"))
		if !ok {
			writeError(w, fmt.Errorf("session %q not found", req.PathValue("sessionId")), http.StatusNotFound)
			return
		}

		result, err := c.End()
		if e := channels.Remove(c); e != nil {
			slog.Warn("failed to close session", "session", c.ID(), "err", e)
		}
		if err != nil {
			writeProcessError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, segmentsResponse(result))
	})

	if o.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{}))
	}

	go func() {
		<-ctx.Done()
		if err := channels.Close(); err != nil {
			slog.Warn("failed to close sessions", "err", err)
		}
	}()
}

func segmentsResponse(result vad.Result) SegmentsResponse {
	segments := result.Emitted
	if segments == nil {
		segments = []model.SegmentEvent{}
	}

	return SegmentsResponse{
		Continuing: result.Continuing,
		Segments:   segments,
	}
}

func parseBoolParam(req *http.Request, name string) (bool, error) {
	v := req.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s query parameter value provided: %w", name, err)
	}

	return b, nil
}

func writeProcessError(w http.ResponseWriter, err error) {
	if errors.Is(err, channel.ErrClosed) {
		writeError(w, err, http.StatusConflict)
		return
	}

	writeError(w, err, http.StatusInternalServerError)
}

func writeError(w http.ResponseWriter, err error, status int) {
	if status >= 500 {
		slog.Error(err.Error())
	} else {
		slog.Warn(err.Error())
	}

	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "err", err)
	}
}
