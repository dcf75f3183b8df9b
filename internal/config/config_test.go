package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spindex/spindex/internal/submission"
)

// Valid hex Ed25519 public key (32 bytes).
var testPublicKey = hex.EncodeToString(make([]byte, 32))

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:8335", cfg.ListenAddr)
	require.NotEmpty(t, cfg.DatabasePath)
	require.Equal(t, "info", cfg.DebugLevel)
	require.EqualValues(t, 30, cfg.RateLimit.Requests)
	require.Equal(t, time.Minute, cfg.RateLimit.Window)
	require.Equal(t, 2, cfg.Moderation.RequiredApprovals)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SPINDEX_LISTEN_ADDR", "0.0.0.0:9000")
	t.Setenv("SPINDEX_CHAT_BOT_TOKEN", "env-bot-token")
	t.Setenv("SPINDEX_CHAT_PUBLIC_KEY", testPublicKey)
	t.Setenv("SPINDEX_CHAT_CHANNEL_ID", "chan-1")
	t.Setenv("SPINDEX_CHAT_MODERATOR_ROLE_IDS", "role-1,role-2")
	t.Setenv("SPINDEX_CSRF_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("SPINDEX_RATE_LIMIT_WINDOW", "90s")
	t.Setenv("SPINDEX_MODERATION_REQUIRED_APPROVALS", "3")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	require.Equal(t, "env-bot-token", cfg.Chat.BotToken)
	require.Equal(t, testPublicKey, cfg.Chat.PublicKey)
	require.Equal(t, "chan-1", cfg.Chat.ChannelID)
	require.Equal(t, []string{"role-1", "role-2"},
		cfg.Chat.ModeratorRoleIDs)
	require.Equal(t, 90*time.Second, cfg.RateLimit.Window)
	require.Equal(t, 3, cfg.Moderation.RequiredApprovals)
}

func TestLoadFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spindex.yaml")
	contents := `
listen_addr: "127.0.0.1:7000"
database_path: "/tmp/spindex-test.db"
moderation:
  required_approvals: 2
  required_approvals_per_type:
    video: 1
    player_edit: 3
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:7000", cfg.ListenAddr)
	require.Equal(t, "/tmp/spindex-test.db", cfg.DatabasePath)

	overrides := cfg.ApprovalOverrides()
	require.Equal(t, 1, overrides[submission.TypeVideo])
	require.Equal(t, 3, overrides[submission.TypePlayerEdit])
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			ListenAddr:   "127.0.0.1:8335",
			DatabasePath: "/tmp/spindex.db",
			RateLimit: RateLimit{
				Requests: 30, Window: time.Minute,
			},
			Moderation: Moderation{RequiredApprovals: 2},
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.ListenAddr = ""
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Chat.PublicKey = "not-hex"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.RateLimit.Requests = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Moderation.RequiredApprovals = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Moderation.RequiredApprovalsPerType = map[string]int{
		"blog_post": 2,
	}
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Moderation.RequiredApprovalsPerType = map[string]int{
		"video": 0,
	}
	require.Error(t, cfg.Validate())
}
