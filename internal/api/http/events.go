package http

import (
	"net/http"
	"strconv"

	syncx "github.com/mind-engage/mindengage-progress/internal/sync"
)

// GET /events?after=<seq>&limit=
// Feed for replicating progress events to another site.
func EventsSinceHandler(events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		list, err := events.Since(r.Context(), after, parseIntDefault(r.URL.Query().Get("limit"), 100))
		if err != nil {
			writeError(w, r, err)
			return
		}
		next := after
		if n := len(list); n > 0 {
			next = list[n-1].Offset
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": list, "next": next})
	}
}
