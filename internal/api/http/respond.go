package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/mind-engage/iqscore/internal/eventlog"
)

// EventLister reads the event trail of one session. *eventlog.Repo satisfies it.
type EventLister interface {
	ByKey(ctx context.Context, key string) ([]eventlog.Event, error)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

// clientIP reads RemoteAddr, which middleware.RealIP has already rewritten
// from X-Forwarded-For / X-Real-IP.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}
