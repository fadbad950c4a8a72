package firewall

import (
	"net/netip"
	"strings"
)

type aliasGetResponse struct {
	Alias aliasDetail `json:"alias"`
}

type aliasDetail struct {
	Enabled        string                  `json:"enabled"`
	Name           string                  `json:"name"`
	Type           map[string]selectOption `json:"type"`
	PathExpression string                  `json:"path_expression"`
	Proto          map[string]selectOption `json:"proto"`
	Interface      map[string]selectOption `json:"interface"`
	Counters       string                  `json:"counters"`
	UpdateFreq     string                  `json:"updatefreq"`
	Content        map[string]selectOption `json:"content"`
	Password       string                  `json:"password"`
	Username       string                  `json:"username"`
	AuthType       map[string]selectOption `json:"authtype"`
	Categories     map[string]selectOption `json:"categories"`
	Description    string                  `json:"description"`
}

type selectOption struct {
	Value       string `json:"value"`
	Selected    int    `json:"selected"`
	Description string `json:"description,omitempty"`
}

// hostAddrs returns the single-host addresses selected in the alias. Nested
// aliases, networks and ranges are left alone.
func (a *aliasDetail) hostAddrs() []netip.Addr {
	var addrs []netip.Addr
	for key, item := range a.Content {
		if item.Selected != 1 {
			continue
		}
		value := item.Value
		if value == "" {
			value = key
		}
		if addr, ok := parseHost(strings.TrimSpace(value)); ok {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// otherEntries returns selected content that is not a single-host address, so
// it survives a rewrite of the alias.
func (a *aliasDetail) otherEntries() []string {
	var entries []string
	for key, item := range a.Content {
		if item.Selected != 1 {
			continue
		}
		value := item.Value
		if value == "" {
			value = key
		}
		if _, ok := parseHost(strings.TrimSpace(value)); !ok {
			entries = append(entries, value)
		}
	}
	return entries
}

func selected(options map[string]selectOption) string {
	for key, opt := range options {
		if opt.Selected == 1 {
			return key
		}
	}
	return ""
}

type aliasSetRequest struct {
	Alias aliasSetBody `json:"alias"`
}

type aliasSetBody struct {
	Enabled        string `json:"enabled"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Proto          string `json:"proto"`
	Categories     string `json:"categories"`
	UpdateFreq     string `json:"updatefreq"`
	Content        string `json:"content"` // newline separated
	PathExpression string `json:"path_expression"`
	AuthType       string `json:"authtype"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	Interface      string `json:"interface"`
	Counters       string `json:"counters"`
	Description    string `json:"description"`
}

type aliasSetResponse struct {
	Result      string         `json:"result"`
	Validations map[string]any `json:"validations,omitempty"`
}
