package httptransport

import (
	"context"
	"net/http"
	"strconv"

	dErrors "meritledger/pkg/domain-errors"
	"meritledger/pkg/platform/events"
	"meritledger/pkg/platform/httputil"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// EventLister is the read side of the outbox.
type EventLister interface {
	List(ctx context.Context, afterSeq uint64, limit int) ([]events.Event, error)
}

type eventsResponse struct {
	Events []events.Event `json:"events"`
	Next   uint64         `json:"next"`
}

// eventsHandler serves GET /events?after=<seq>&limit=<n>. Next is the cursor to
// pass as after on the following poll.
func eventsHandler(lister EventLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var after uint64
		if raw := q.Get("after"); raw != "" {
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "after must be a non-negative integer"))
				return
			}
			after = v
		}
		limit := defaultEventLimit
		if raw := q.Get("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 || v > maxEventLimit {
				httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be between 1 and 1000"))
				return
			}
			limit = v
		}

		list, err := lister.List(r.Context(), after, limit)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events"))
			return
		}
		next := after
		if len(list) > 0 {
			next = list[len(list)-1].Seq
		} else {
			list = []events.Event{}
		}
		httputil.WriteJSON(w, http.StatusOK, eventsResponse{Events: list, Next: next})
	}
}
