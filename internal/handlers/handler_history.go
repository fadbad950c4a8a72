package handlers

import (
	"net/http"
	"strconv"

	"blockwatch/internal/middlewares"
	"blockwatch/internal/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

func GETHistory(ctx *middlewares.AppContext) {
	limit := defaultHistoryLimit
	if raw := ctx.Request.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ctx.SetJSONError(http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	events, err := ctx.Blocker.ListHistory(ctx, limit)
	if err != nil {
		ctx.Logger.Error("failed to list history", "error", err)
		ctx.SetJSONError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	if events == nil {
		events = []models.HistoryEvent{}
	}

	ctx.WriteJSON(http.StatusOK, HistoryResponse{Events: events, Count: len(events)})
}
