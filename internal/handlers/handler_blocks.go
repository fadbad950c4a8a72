package handlers

import (
	"net/http"
	"strings"

	"blockwatch/internal/middlewares"
	"blockwatch/internal/models"

	"github.com/go-chi/chi/v5"
)

func GETBlocks(ctx *middlewares.AppContext) {
	blocks := ctx.Blocker.ListActive()
	if blocks == nil {
		blocks = []models.BlockEntry{}
	}

	ctx.WriteJSON(http.StatusOK, BlocksResponse{Blocks: blocks, Count: len(blocks)})
}

func GETBlock(ctx *middlewares.AppContext) {
	ip := chi.URLParam(ctx.Request, "ip")

	entry, err := ctx.Blocker.Get(ip)
	if err != nil {
		writeError(ctx, err, ip, nil)
		return
	}

	ctx.WriteJSON(http.StatusOK, entry)
}

// POSTBlock blocks an address. It answers 201 for a new block and 200 when
// the address was already blocked.
func POSTBlock(ctx *middlewares.AppContext) {
	var req BlockRequest
	if err := decodeJSON(ctx, &req); err != nil {
		ctx.Logger.Debug("failed to decode request body", "error", err)
		ctx.SetJSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	req.IP = strings.TrimSpace(req.IP)
	if req.IP == "" {
		ctx.SetJSONError(http.StatusBadRequest, "ip is required")
		return
	}

	ttl, err := parseTTL(req.TTL, req.Permanent)
	if err != nil {
		ctx.WriteJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), IP: req.IP})
		return
	}

	prev, prevErr := ctx.Blocker.Get(req.IP)
	wasActive := prevErr == nil && prev.IsActive()

	entry, err := ctx.Blocker.Block(ctx, req.IP, ttl, models.SourceManual)
	if err != nil {
		writeError(ctx, err, req.IP, &entry)
		return
	}

	status := http.StatusCreated
	if wasActive && prev.BlockedAt.Equal(entry.BlockedAt) {
		status = http.StatusOK
	}

	ctx.WriteJSON(status, entry)
}

func POSTBlockDomain(ctx *middlewares.AppContext) {
	var req BlockDomainRequest
	if err := decodeJSON(ctx, &req); err != nil {
		ctx.Logger.Debug("failed to decode request body", "error", err)
		ctx.SetJSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Domain) == "" {
		ctx.SetJSONError(http.StatusBadRequest, "domain is required")
		return
	}

	ttl, err := parseTTL(req.TTL, req.Permanent)
	if err != nil {
		ctx.SetJSONError(http.StatusBadRequest, err.Error())
		return
	}

	// the address is only known after resolution
	before := ctx.Blocker.ListActive()

	entry, err := ctx.Blocker.BlockDomain(ctx, req.Domain, ctx.Resolver, ttl)
	if err != nil {
		writeError(ctx, err, entry.IP, &entry)
		return
	}

	status := http.StatusCreated
	for _, prev := range before {
		if prev.IP == entry.IP && prev.BlockedAt.Equal(entry.BlockedAt) {
			status = http.StatusOK
			break
		}
	}

	ctx.WriteJSON(status, entry)
}

func DELETEBlock(ctx *middlewares.AppContext) {
	ip := chi.URLParam(ctx.Request, "ip")
	reason := strings.TrimSpace(ctx.Request.URL.Query().Get("reason"))

	if err := ctx.Blocker.Unblock(ctx, ip, reason); err != nil {
		writeError(ctx, err, ip, nil)
		return
	}

	ctx.Response.WriteHeader(http.StatusNoContent)
}
