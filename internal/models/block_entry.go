package models

import (
	"time"
)

type BlockEntry struct {
	IP string `json:"ip"`

	BlockedAt time.Time  `json:"blocked_at"`
	ExpiresAt *time.Time `json:"expires_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Source BlockSource `json:"source"`
	Status BlockStatus `json:"status"`

	Domain string `json:"domain,omitempty"`
	Reason string `json:"reason,omitempty"`

	Country string `json:"country,omitempty"`
	ASN     uint   `json:"asn,omitempty"`
	ASNOrg  string `json:"asn_org,omitempty"`
}

// IsActive reports whether the entry should currently have a firewall rule.
func (e BlockEntry) IsActive() bool {
	return e.Status == StatusActive
}

// IsExpired reports whether the entry's deadline has been reached at now.
// Permanent entries never expire.
func (e BlockEntry) IsExpired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// Clone returns a copy that shares no pointers with e.
func (e BlockEntry) Clone() BlockEntry {
	if e.ExpiresAt != nil {
		expiresAt := *e.ExpiresAt
		e.ExpiresAt = &expiresAt
	}
	return e
}

type BlockStatus string

const (
	StatusActive    BlockStatus = "ACTIVE"
	StatusExpired   BlockStatus = "EXPIRED"
	StatusUnblocked BlockStatus = "UNBLOCKED"
)

type BlockSource string

const (
	SourceManual       BlockSource = "manual"
	SourceDomainLookup BlockSource = "domain-lookup"
	SourceReconciled   BlockSource = "reconciled"
)

func (s BlockSource) Valid() bool {
	switch s {
	case SourceManual, SourceDomainLookup, SourceReconciled:
		return true
	}
	return false
}
