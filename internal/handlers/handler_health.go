package handlers

import (
	"context"
	"net/http"
	"time"

	"blockwatch/internal/middlewares"
)

const healthCheckTimeout = 2 * time.Second

// HandlerHealth reports OK when the store is reachable.
func HandlerHealth(ctx *middlewares.AppContext) {
	if ctx.Storage != nil {
		pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()

		if err := ctx.Storage.Ping(pingCtx); err != nil {
			ctx.Logger.Warn("health check failed", "error", err)
			ctx.SetJSONStatus(http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}

	ctx.SetJSONStatus(http.StatusOK, "OK")
}
