package sidecar

import (
	"net/http"

	"github.com/taskwire/taskwire/internal/api/shared"
)

// Subscription declares one topic this service consumes and the local route
// the relay should invoke per delivered event. The relay queries the
// subscription list once at its own startup; the list is static for the
// lifetime of the process.
type Subscription struct {
	Topic string `json:"topic"`
	Route string `json:"route"`
}

// SubscriptionsHandler serves the declarative GET /subscribe endpoint from
// a fixed subscription list.
func SubscriptionsHandler(subs []Subscription) http.HandlerFunc {
	// Never serve null; an empty list is a valid declaration.
	if subs == nil {
		subs = []Subscription{}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, subs)
	}
}
