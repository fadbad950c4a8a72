package models

import (
	"time"
)

type HistoryEvent struct {
	ID     string           `json:"id"`
	Type   HistoryEventType `json:"type"`
	IP     string           `json:"ip"`
	Reason string           `json:"reason,omitempty"`

	// Entry is the state of the block right after the transition.
	Entry BlockEntry `json:"entry"`

	ClientIP  *string `json:"client_ip,omitempty"`
	UserAgent *string `json:"user_agent,omitempty"`
	Client    *string `json:"client,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

type HistoryEventType string

const (
	EventBlock      HistoryEventType = "block"
	EventUnblock    HistoryEventType = "unblock"
	EventAutoExpiry HistoryEventType = "auto-expiry"
	EventReconcile  HistoryEventType = "reconcile"
)

const (
	ReasonManual     = "manual"
	ReasonAutoExpiry = "auto-expiry"
	ReasonReconciled = "reconciled"
	ReasonOrphaned   = "orphaned-rule"
)
