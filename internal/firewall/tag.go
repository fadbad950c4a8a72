package firewall

import (
	"strconv"
	"strings"
	"time"
)

const tagPrefix = "blockwatch:"

// ruleTag encodes the block metadata into the rule comment, for example
// "blockwatch:b=1700000000,e=1700003600". e=0 marks a permanent block.
func ruleTag(rule Rule) string {
	var expires int64
	if rule.ExpiresAt != nil {
		expires = rule.ExpiresAt.Unix()
	}
	return tagPrefix + "b=" + strconv.FormatInt(rule.BlockedAt.Unix(), 10) + ",e=" + strconv.FormatInt(expires, 10)
}

// parseRuleTag decodes a comment written by ruleTag. Surrounding quotes are
// ignored. ok is false for comments this program did not write.
func parseRuleTag(comment string) (blockedAt time.Time, expiresAt *time.Time, ok bool) {
	comment = strings.Trim(comment, `"'`)
	rest, found := strings.CutPrefix(comment, tagPrefix)
	if !found {
		return time.Time{}, nil, false
	}

	var haveBlocked, haveExpires bool
	for _, field := range strings.Split(rest, ",") {
		key, value, found := strings.Cut(field, "=")
		if !found {
			return time.Time{}, nil, false
		}

		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return time.Time{}, nil, false
		}

		switch key {
		case "b":
			blockedAt = time.Unix(n, 0).UTC()
			haveBlocked = true
		case "e":
			if n > 0 {
				t := time.Unix(n, 0).UTC()
				expiresAt = &t
			}
			haveExpires = true
		}
	}

	if !haveBlocked || !haveExpires {
		return time.Time{}, nil, false
	}

	return blockedAt, expiresAt, true
}
