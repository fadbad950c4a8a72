package handlers

import (
	"blockwatch/internal/blocker"
	"blockwatch/internal/models"
)

type BlockRequest struct {
	IP string `json:"ip"`
	// TTL accepts Go durations plus d, w, M and y units, e.g. "30m" or "7d".
	TTL       string `json:"ttl,omitempty"`
	Permanent bool   `json:"permanent,omitempty"`
}

type BlockDomainRequest struct {
	Domain    string `json:"domain"`
	TTL       string `json:"ttl,omitempty"`
	Permanent bool   `json:"permanent,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	IP    string `json:"ip,omitempty"`
	// Entry is set when the firewall change took effect but could not be persisted.
	Entry *models.BlockEntry `json:"entry,omitempty"`
}

type BlocksResponse struct {
	Blocks []models.BlockEntry `json:"blocks"`
	Count  int                 `json:"count"`
}

type HistoryResponse struct {
	Events []models.HistoryEvent `json:"events"`
	Count  int                   `json:"count"`
}

type SweepResponse struct {
	blocker.SweepResult
	Error string `json:"error,omitempty"`
}
