package firewall

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"blockwatch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAliasUUID = "c5d3f1a2-0000-4000-8000-000000000001"

type fakeRouter struct {
	mu           sync.Mutex
	content      []string
	sets         int
	reconfigures int
	status       int
}

func (f *fakeRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if user, pass, ok := r.BasicAuth(); !ok || user != "key" || pass != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}

	switch r.URL.Path {
	case "/api/firewall/alias/get_item/" + testAliasUUID:
		content := map[string]selectOption{}
		for _, v := range f.content {
			content[v] = selectOption{Value: v, Selected: 1}
		}
		_ = json.NewEncoder(w).Encode(aliasGetResponse{Alias: aliasDetail{
			Enabled: "1",
			Name:    "blockwatch",
			Type:    map[string]selectOption{"host": {Value: "Host(s)", Selected: 1}},
			Content: content,
		}})
	case "/api/firewall/alias/set_item/" + testAliasUUID:
		var req aliasSetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.content = nil
		if req.Alias.Content != "" {
			f.content = strings.Split(req.Alias.Content, "\n")
		}
		f.sets++
		_ = json.NewEncoder(w).Encode(aliasSetResponse{Result: "saved"})
	case "/api/firewall/alias/reconfigure":
		f.reconfigures++
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestOPNsense(t *testing.T, router *fakeRouter) *OPNsense {
	t.Helper()
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return NewOPNsense(config.OPNsenseConfig{
		RouterEndpoint:  srv.URL + "/",
		RouterAPIKey:    "key",
		RouterAPISecret: "secret",
		AliasUUID:       testAliasUUID,
	}, time.Second, discardLogger())
}

func TestOPNsense_ApplyAndRevoke(t *testing.T) {
	router := &fakeRouter{content: []string{"192.168.0.0/24", "other_alias"}}
	fw := newTestOPNsense(t, router)
	ctx := context.Background()
	ip := netip.MustParseAddr("10.0.0.5")

	require.NoError(t, fw.Apply(ctx, Rule{IP: ip, BlockedAt: time.Now()}))
	require.NoError(t, fw.Apply(ctx, Rule{IP: ip, BlockedAt: time.Now()}))
	assert.Equal(t, 1, router.sets)
	assert.Equal(t, 1, router.reconfigures)
	assert.ElementsMatch(t, []string{"192.168.0.0/24", "other_alias", "10.0.0.5"}, router.content)

	rules, err := fw.List(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, ip, rules[0].IP)
	assert.True(t, rules[0].BlockedAt.IsZero())
	assert.Nil(t, rules[0].ExpiresAt)

	require.NoError(t, fw.Revoke(ctx, ip))
	require.NoError(t, fw.Revoke(ctx, ip))
	assert.Equal(t, 2, router.sets)
	assert.ElementsMatch(t, []string{"192.168.0.0/24", "other_alias"}, router.content)
}

func TestOPNsense_Errors(t *testing.T) {
	ctx := context.Background()
	ip := netip.MustParseAddr("10.0.0.5")

	router := &fakeRouter{status: http.StatusForbidden}
	err := newTestOPNsense(t, router).Apply(ctx, Rule{IP: ip})
	assert.True(t, IsKind(err, KindPermissionDenied))

	router = &fakeRouter{status: http.StatusInternalServerError}
	err = newTestOPNsense(t, router).Revoke(ctx, ip)
	assert.True(t, IsKind(err, KindCommandFailed))

	unreachable := NewOPNsense(config.OPNsenseConfig{
		RouterEndpoint: "http://127.0.0.1:1",
		AliasUUID:      testAliasUUID,
	}, time.Second, discardLogger())
	_, err = unreachable.List(ctx)
	assert.True(t, IsKind(err, KindToolUnavailable))
}
