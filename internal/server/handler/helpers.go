// Package handler serves the read-only monitoring API: stored bars, the
// audit log, run artifacts and the live paper session.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// writeJSON marshals v and writes it with the given status. A marshal
// failure falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseListOpts reads limit/offset (default 50, max 500) and the optional
// start/end YYYY-MM-DD bounds, interpreted as Shanghai dates.
func parseListOpts(r *http.Request) (domain.ListOpts, error) {
	q := r.URL.Query()
	opts := domain.ListOpts{Limit: 50}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if opts.Limit > 500 {
		opts.Limit = 500
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.Offset = n
		}
	}

	if v := q.Get("start"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, domain.Shanghai)
		if err != nil {
			return opts, err
		}
		opts.Since = &t
	}
	if v := q.Get("end"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, domain.Shanghai)
		if err != nil {
			return opts, err
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		opts.Until = &end
	}
	return opts, nil
}
