package firewall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"slices"
	"strings"
	"sync"
	"time"

	"blockwatch/internal/config"
)

const (
	fmtGetAliasPath  = "/api/firewall/alias/get_item/%s"
	fmtSetAliasPath  = "/api/firewall/alias/set_item/%s"
	reconfigurePath  = "/api/firewall/alias/reconfigure"
	opnsenseResultOK = "saved"
)

// OPNsense blocks addresses by keeping them in a host alias on an OPNsense
// router. The alias must be referenced by a block rule on the router.
type OPNsense struct {
	endpoint   string
	apiKey     string
	apiSecret  string
	aliasUUID  string
	httpClient *http.Client
	logger     *slog.Logger

	// alias updates are read-modify-write
	mu sync.Mutex
}

func NewOPNsense(cfg config.OPNsenseConfig, timeout time.Duration, logger *slog.Logger) *OPNsense {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OPNsense{
		endpoint:   strings.TrimRight(cfg.RouterEndpoint, "/"),
		apiKey:     cfg.RouterAPIKey,
		apiSecret:  cfg.RouterAPISecret,
		aliasUUID:  cfg.AliasUUID,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (o *OPNsense) Apply(ctx context.Context, rule Rule) error {
	if !rule.IP.IsValid() {
		return invalidAddress("", "address is not set")
	}
	ip := rule.IP.Unmap()

	o.mu.Lock()
	defer o.mu.Unlock()

	alias, err := o.getAlias(ctx, ip.String())
	if err != nil {
		return err
	}

	addrs := alias.hostAddrs()
	if slices.Contains(addrs, ip) {
		return nil
	}

	if err := o.updateAlias(ctx, ip.String(), alias, append(addrs, ip)); err != nil {
		return err
	}

	o.logger.Debug("added address to router alias", "ip", ip.String(), "alias", alias.Name)
	return nil
}

func (o *OPNsense) Revoke(ctx context.Context, ip netip.Addr) error {
	if !ip.IsValid() {
		return invalidAddress("", "address is not set")
	}
	ip = ip.Unmap()

	o.mu.Lock()
	defer o.mu.Unlock()

	alias, err := o.getAlias(ctx, ip.String())
	if err != nil {
		return err
	}

	addrs := alias.hostAddrs()
	if !slices.Contains(addrs, ip) {
		return nil
	}

	remaining := slices.DeleteFunc(addrs, func(a netip.Addr) bool { return a == ip })
	if err := o.updateAlias(ctx, ip.String(), alias, remaining); err != nil {
		return err
	}

	o.logger.Debug("removed address from router alias", "ip", ip.String(), "alias", alias.Name)
	return nil
}

func (o *OPNsense) List(ctx context.Context) ([]Rule, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	alias, err := o.getAlias(ctx, "")
	if err != nil {
		return nil, err
	}

	addrs := alias.hostAddrs()
	slices.SortFunc(addrs, func(a, b netip.Addr) int { return a.Compare(b) })

	rules := make([]Rule, 0, len(addrs))
	for _, addr := range addrs {
		rules = append(rules, Rule{IP: addr})
	}
	return rules, nil
}

func (o *OPNsense) getAlias(ctx context.Context, ip string) (*aliasDetail, error) {
	body, err := o.do(ctx, ip, http.MethodGet, fmt.Sprintf(fmtGetAliasPath, o.aliasUUID), nil)
	if err != nil {
		return nil, err
	}

	var resp aliasGetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Kind: KindCommandFailed, IP: ip, Command: "get alias", Err: fmt.Errorf("failed to decode alias: %w", err)}
	}

	return &resp.Alias, nil
}

func (o *OPNsense) updateAlias(ctx context.Context, ip string, alias *aliasDetail, addrs []netip.Addr) error {
	lines := alias.otherEntries()
	for _, addr := range addrs {
		lines = append(lines, addr.String())
	}

	req := aliasSetRequest{
		Alias: aliasSetBody{
			Enabled:        alias.Enabled,
			Name:           alias.Name,
			Type:           selected(alias.Type),
			Proto:          selected(alias.Proto),
			Categories:     selected(alias.Categories),
			UpdateFreq:     alias.UpdateFreq,
			Content:        strings.Join(lines, "\n"),
			PathExpression: alias.PathExpression,
			AuthType:       selected(alias.AuthType),
			Username:       alias.Username,
			Password:       alias.Password,
			Interface:      selected(alias.Interface),
			Counters:       alias.Counters,
			Description:    alias.Description,
		},
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return &Error{Kind: KindCommandFailed, IP: ip, Command: "set alias", Err: fmt.Errorf("failed to marshal set request: %w", err)}
	}

	body, err := o.do(ctx, ip, http.MethodPost, fmt.Sprintf(fmtSetAliasPath, o.aliasUUID), payload)
	if err != nil {
		return err
	}

	var resp aliasSetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &Error{Kind: KindCommandFailed, IP: ip, Command: "set alias", Err: fmt.Errorf("failed to decode set response: %w", err)}
	}

	if resp.Result != opnsenseResultOK {
		kind := KindCommandFailed
		if _, ok := resp.Validations["alias.content"]; ok {
			kind = KindInvalidAddress
		}
		return &Error{Kind: kind, IP: ip, Command: "set alias", Stderr: string(body), Err: fmt.Errorf("router returned result %q", resp.Result)}
	}

	_, err = o.do(ctx, ip, http.MethodPost, reconfigurePath, nil)
	return err
}

func (o *OPNsense) do(ctx context.Context, ip, method, path string, payload []byte) ([]byte, error) {
	command := method + " " + path

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, o.endpoint+path, reader)
	if err != nil {
		return nil, &Error{Kind: KindCommandFailed, IP: ip, Command: command, Err: err}
	}
	req.SetBasicAuth(o.apiKey, o.apiSecret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		kind := KindToolUnavailable
		var netErr interface{ Timeout() bool }
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			kind = KindTimeout
		}
		return nil, &Error{Kind: kind, IP: ip, Command: command, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindCommandFailed, IP: ip, Command: command, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, &Error{Kind: KindPermissionDenied, IP: ip, Command: command, Stderr: string(body), Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, &Error{Kind: KindCommandFailed, IP: ip, Command: command, Stderr: string(body), Err: fmt.Errorf("unexpected status code %d", resp.StatusCode)}
	}

	return body, nil
}
