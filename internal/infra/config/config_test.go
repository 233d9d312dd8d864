package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("CONVERSATIONS_POLL_INTERVAL", "")
	t.Setenv("THREAD_POLL_INTERVAL", "")
	t.Setenv("DEV_USERS", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, 10*time.Second, cfg.ConversationsInterval)
	require.Equal(t, 3*time.Second, cfg.ThreadInterval)
	require.Equal(t, 2*time.Second, cfg.NotifyDedupWindow)
	require.True(t, cfg.AltScreen)
	require.Empty(t, cfg.KafkaBrokers)
	require.Equal(t, "user_buyer", cfg.DevUsers["dev-token-buyer"].ID)
	require.Equal(t, "Mihai", cfg.DevUsers["dev-token-seller"].Name)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MARKETCHAT_API_URL", "http://example.test/api/")
	t.Setenv("THREAD_POLL_INTERVAL", "500ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("BREAKER_FAILURES", "3")
	t.Setenv("DEV_USERS", "tok:u1")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://example.test/api", cfg.APIURL)
	require.Equal(t, 500*time.Millisecond, cfg.ThreadInterval)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, uint32(3), cfg.BreakerFailures)
	require.Equal(t, DevUser{Token: "tok", ID: "u1", Name: "u1"}, cfg.DevUsers["tok"])
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("THREAD_POLL_INTERVAL", "soon")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("THREAD_POLL_INTERVAL", "")
	t.Setenv("DEV_USERS", "broken")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("DEV_USERS", "")
	t.Setenv("TUI_ALT_SCREEN", "maybe")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadStartConversationTarget(t *testing.T) {
	t.Setenv("MARKETCHAT_START_AD", " ad123 ")
	t.Setenv("MARKETCHAT_START_TO", "user456")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "ad123", cfg.StartAdID)
	require.Equal(t, "user456", cfg.StartReceiverID)

	t.Setenv("MARKETCHAT_START_TO", "")
	_, err = Load()
	require.Error(t, err)
}

func TestRequireClient(t *testing.T) {
	require.Error(t, Config{}.RequireClient())
	require.Error(t, Config{Token: "t"}.RequireClient())
	require.NoError(t, Config{Token: "t", UserID: "u"}.RequireClient())
}
