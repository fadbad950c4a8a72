package jobs

import (
	"errors"
)

const (
	ExpiryJobName = "block_expiry"
	ResyncJobName = "firewall_resync"
)

var errNonPositiveInterval = errors.New("job interval must be positive")
