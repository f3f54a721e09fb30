package http

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"property-registry/backend/internal/domain/property"
	"property-registry/backend/internal/httpjson"

	"github.com/go-chi/chi/v5"
)

type propertyHandlers struct {
	keepAlive time.Duration
}

func (h *propertyHandlers) add(w http.ResponseWriter, r *http.Request) {
	var in property.CreatePropertyInput
	if err := httpjson.Read(r, &in); err != nil {
		httpjson.Error(w, 400, httpjson.KindBadRequest, "invalid json")
		return
	}

	id, err := facadesFrom(r.Context()).Properties.Add(r.Context(), in)
	if err != nil {
		status, kind := mapPropertyError(err)
		failWith(w, status, kind, err)
		return
	}
	httpjson.OK(w, 201, map[string]any{"id": id})
}

func (h *propertyHandlers) list(w http.ResponseWriter, r *http.Request) {
	out, err := facadesFrom(r.Context()).Properties.List(r.Context())
	if err != nil {
		status, kind := mapPropertyError(err)
		failWith(w, status, kind, err)
		return
	}
	httpjson.OK(w, 200, map[string]any{"data": out})
}

func (h *propertyHandlers) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	out, err := facadesFrom(r.Context()).Properties.Search(r.Context(), q)
	if err != nil {
		status, kind := mapPropertyError(err)
		failWith(w, status, kind, err)
		return
	}
	httpjson.OK(w, 200, map[string]any{"data": out})
}

func (h *propertyHandlers) update(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		httpjson.Error(w, 400, httpjson.KindBadRequest, "missing id")
		return
	}

	var in property.UpdatePropertyInput
	if err := httpjson.Read(r, &in); err != nil {
		httpjson.Error(w, 400, httpjson.KindBadRequest, "invalid json")
		return
	}

	if err := facadesFrom(r.Context()).Properties.Update(r.Context(), id, in); err != nil {
		status, kind := mapPropertyError(err)
		failWith(w, status, kind, err)
		return
	}
	httpjson.OK(w, 200, nil)
}

func (h *propertyHandlers) remove(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		httpjson.Error(w, 400, httpjson.KindBadRequest, "missing id")
		return
	}

	if err := facadesFrom(r.Context()).Properties.Delete(r.Context(), id); err != nil {
		status, kind := mapPropertyError(err)
		failWith(w, status, kind, err)
		return
	}
	httpjson.OK(w, 200, nil)
}

// stream sends the whole collection as an SSE "snapshot" event on every
// change. A slow client only ever gets the latest snapshot. When the
// listener fails the stream ends with an "error" event.
func (h *propertyHandlers) stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snapshots := make(chan []property.Property, 1)
	sub, err := facadesFrom(ctx).Properties.Subscribe(ctx, func(props []property.Property) {
		select {
		case <-snapshots:
		default:
		}
		snapshots <- props
	})
	if err != nil {
		status, kind := mapPropertyError(err)
		failWith(w, status, kind, err)
		return
	}
	defer sub.Unsubscribe()

	rc := http.NewResponseController(w)
	// the server's WriteTimeout would otherwise cut the stream
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx: disable buffering
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		log.Printf("[properties] streaming unsupported: %v", err)
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-sub.Done():
			if err := sub.Err(); err != nil {
				status, kind := mapPropertyError(err)
				data, _ := json.Marshal(map[string]any{"success": false, "error": err.Error(), "kind": kind, "status": status})
				fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
				_ = rc.Flush()
			}
			return

		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			_ = rc.Flush()

		case props := <-snapshots:
			data, err := json.Marshal(map[string]any{"success": true, "data": props})
			if err != nil {
				log.Printf("[properties] encode snapshot: %v", err)
				continue
			}
			fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
