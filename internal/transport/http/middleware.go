package httptransport

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"citepay/pkg/requestcontext"
)

// ActorHeader names the acting cashier or admin. Authentication itself is
// out of scope; an upstream gateway is trusted to set this header.
const ActorHeader = "X-Actor"

// RequestIDHeader carries a caller-supplied request ID; one is generated
// when absent.
const RequestIDHeader = "X-Request-ID"

// RequestContext stamps each request with its actor, request ID, and
// arrival time. Services read these through pkg/requestcontext, so every
// timestamp and audit entry within one request agrees.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = requestcontext.WithRequestID(ctx, requestID)

		if actor := strings.TrimSpace(r.Header.Get(ActorHeader)); actor != "" {
			ctx = requestcontext.WithActor(ctx, actor)
		}
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
