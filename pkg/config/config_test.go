package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
source_database:
  host: localhost
  database: marketplace
chat_database:
  host: localhost
  database: chatapp
`

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "chatsync_user_changes", cfg.Realtime.Channel)
	assert.Equal(t, 3, cfg.Sync.LookbackMultiplier)
	assert.Equal(t, 100, cfg.Sync.PageSize)
	assert.Equal(t, 8090, cfg.Server.Port)
}

func TestLoad_RejectsUnsafeChannelName(t *testing.T) {
	// The channel name ends up inside trigger DDL; anything beyond
	// identifier characters must be rejected up front.
	for _, channel := range []string{
		"bad'); DROP TABLE users; --",
		"has space",
		"Şebeke",
		"1leading_digit",
	} {
		path := writeConfig(t, minimalConfig+`
realtime:
  channel: "`+channel+`"
`)
		_, err := Load(path)
		require.Error(t, err, "channel %q must be rejected", channel)
		assert.Contains(t, err.Error(), "realtime.channel")
	}
}

func TestLoad_AcceptsIdentifierChannelName(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
realtime:
  channel: my_channel_2
`))
	require.NoError(t, err)
	assert.Equal(t, "my_channel_2", cfg.Realtime.Channel)
}

func TestLoad_RequiresDatabaseSettings(t *testing.T) {
	_, err := Load(writeConfig(t, `
chat_database:
  host: localhost
  database: chatapp
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_database.database")
}
