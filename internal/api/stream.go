package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/erazemk/leftoverlink/internal/browse"
	"github.com/erazemk/leftoverlink/internal/filter"
	"github.com/erazemk/leftoverlink/internal/model"
)

// StreamBuffer is how many undelivered collections a stream may queue
// before the client is dropped.
const StreamBuffer = 16

// StreamHeartbeat is the interval between keep-alive comments.
var StreamHeartbeat = 30 * time.Second

// Stream handles GET /api/listings/stream. It sends a "listings" event with
// the filtered collection now and after every change.
func (h *ListingsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		slog.Warn("failed to clear write deadline", "error", err)
	}

	b := browse.New(h.Repo, filter.ParseQuery(r.URL.Query()))
	defer b.Close()

	updates := make(chan []model.Listing, StreamBuffer)
	lagging := make(chan struct{})
	var once sync.Once
	unsubscribe := b.Subscribe(func(listings []model.Listing) {
		select {
		case updates <- listings:
		default:
			once.Do(func() { close(lagging) })
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.Error("streaming not supported", "error", err)
		return
	}

	heartbeat := time.NewTicker(StreamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-lagging:
			slog.Warn("listing stream client too slow, disconnecting", "remote", r.RemoteAddr)
			return
		case listings := <-updates:
			if err := writeEvent(w, "listings", newListingViews(listings, time.Now())); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w io.Writer, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
