package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"blockwatch/internal/blocker"
	"blockwatch/internal/firewall"
	"blockwatch/internal/middlewares"
	"blockwatch/internal/models"
	"blockwatch/internal/storage"
	"blockwatch/internal/utils"
)

const maxRequestBodyBytes = 1 << 16

var errTTLAndPermanent = errors.New("ttl and permanent are mutually exclusive")

// parseTTL maps the request fields to the manager's ttl argument: nil for the
// default lifetime, zero for a permanent block.
func parseTTL(raw string, permanent bool) (*time.Duration, error) {
	if permanent {
		if raw != "" {
			return nil, errTTLAndPermanent
		}
		var zero time.Duration
		return &zero, nil
	}

	if raw == "" {
		return nil, nil
	}

	ttl, err := utils.ParseDurationString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid ttl: %w", err)
	}
	return &ttl, nil
}

func decodeJSON(ctx *middlewares.AppContext, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(ctx.Response, ctx.Request.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusForError maps manager errors to HTTP statuses.
func statusForError(err error) int {
	var resErr *blocker.ResolutionError

	switch {
	case errors.Is(err, blocker.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, blocker.ErrInvalidTTL):
		return http.StatusBadRequest
	case errors.Is(err, blocker.ErrSweepInProgress):
		return http.StatusConflict
	case errors.As(err, &resErr):
		return http.StatusUnprocessableEntity
	}

	switch firewall.KindOf(err) {
	case firewall.KindInvalidAddress:
		return http.StatusBadRequest
	case firewall.KindTimeout:
		return http.StatusGatewayTimeout
	case firewall.KindPermissionDenied, firewall.KindToolUnavailable, firewall.KindCommandFailed:
		return http.StatusBadGateway
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}

	return http.StatusInternalServerError
}

// writeError responds with the status for err. A non-nil entry is included
// for persistence failures, where the firewall already reflects the change.
func writeError(ctx *middlewares.AppContext, err error, ip string, entry *models.BlockEntry) {
	status := statusForError(err)

	if status >= http.StatusInternalServerError {
		ctx.Logger.Error("request failed", "path", ctx.Request.URL.Path, "ip", ip, "status", status, "error", err)
	} else {
		ctx.Logger.Debug("request rejected", "path", ctx.Request.URL.Path, "ip", ip, "status", status, "error", err)
	}

	resp := ErrorResponse{Error: err.Error(), IP: ip}
	if entry != nil && entry.IP != "" && errors.Is(err, storage.ErrIOFailure) {
		resp.Entry = entry
	}

	ctx.WriteJSON(status, resp)
}
