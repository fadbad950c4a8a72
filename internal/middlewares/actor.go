package middlewares

import (
	"net"
	"net/http"

	"blockwatch/internal/blocker"
)

// ActorMiddleware records the caller on the request context so state changes
// are attributed in the block history. It must run after ClientIPMiddleware.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		actor := blocker.NewActor(host, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(blocker.WithActor(r.Context(), actor)))
	})
}
