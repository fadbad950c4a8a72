package server

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blockwatch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LogsRestoreOnce(t *testing.T) {
	dir := t.TempDir()
	actions := filepath.Join(dir, "actions.jsonl")
	cfg := &config.Config{
		Log:      config.LogConfig{Level: "error", ActionsFile: actions},
		Firewall: config.FirewallConfig{Backend: "memory"},
		Store: config.StoreConfig{
			Type:        "file",
			StateFile:   filepath.Join(dir, "blocklist.jsonl"),
			HistoryFile: filepath.Join(dir, "history.jsonl"),
		},
		Resolver: config.ResolverConfig{Servers: []string{"127.0.0.1:53"}},
	}

	s, err := New(cfg)
	require.NoError(t, err)
	s.close()

	data, err := os.ReadFile(actions)
	require.NoError(t, err)

	restored := 0
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		if record["msg"] == "block registry restored" {
			restored++
		}
	}
	assert.Equal(t, 1, restored)
}
