package httpjson

import (
	"encoding/json"
	"net/http"
)

// Failure kinds carried in the "kind" field of error envelopes.
const (
	KindBadRequest       = "bad_request"
	KindUnauthenticated  = "unauthenticated"
	KindPermissionDenied = "permission_denied"
	KindNotFound         = "not_found"
	KindConflict         = "conflict"
	KindUnavailable      = "unavailable"
	KindInternal         = "internal"
)

func Write(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Read decodes a JSON body, rejecting fields the destination does not know.
func Read(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// OK writes {"success": true} merged with payload.
func OK(w http.ResponseWriter, status int, payload map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	Write(w, status, body)
}

// Error writes {"success": false, "error": msg, "kind": kind}.
func Error(w http.ResponseWriter, status int, kind, msg string) {
	Write(w, status, map[string]interface{}{
		"success": false,
		"error":   msg,
		"kind":    kind,
	})
}
