package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values loaded from environment variables.
// The terminal client and the dev backend read the same set; each uses its own part.
type Config struct {
	Env       string
	LogFile   string
	AltScreen bool

	APIURL                string
	Token                 string
	UserID                string
	UserName              string
	StartAdID             string
	StartReceiverID       string
	ConversationsInterval time.Duration
	ThreadInterval        time.Duration
	HTTPTimeout           time.Duration
	NotifyDedupWindow     time.Duration

	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
	BreakerFailures    uint32

	KafkaBrokers     []string
	KafkaTopicPrefix string

	HTTPAddr string
	MongoURI string
	MongoDB  string
	DevUsers map[string]DevUser
}

// DevUser is an entry of the dev backend's static token table.
type DevUser struct {
	ID    string
	Name  string
	Token string
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		LogFile:          getEnv("LOG_FILE", ""),
		APIURL:           strings.TrimRight(getEnv("MARKETCHAT_API_URL", "http://localhost:8080/api"), "/"),
		Token:            os.Getenv("MARKETCHAT_TOKEN"),
		UserID:           os.Getenv("MARKETCHAT_USER_ID"),
		UserName:         getEnv("MARKETCHAT_USER_NAME", ""),
		StartAdID:        strings.TrimSpace(os.Getenv("MARKETCHAT_START_AD")),
		StartReceiverID:  strings.TrimSpace(os.Getenv("MARKETCHAT_START_TO")),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "marketchat"),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		for _, raw := range strings.Split(brokers, ",") {
			if b := strings.TrimSpace(raw); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.ConversationsInterval, err = parseDurationEnv("CONVERSATIONS_POLL_INTERVAL", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ThreadInterval, err = parseDurationEnv("THREAD_POLL_INTERVAL", 3*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.HTTPTimeout, err = parseDurationEnv("HTTP_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.NotifyDedupWindow, err = parseDurationEnv("NOTIFY_DEDUP_WINDOW", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.BreakerInterval, err = parseDurationEnv("BREAKER_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.BreakerTimeout, err = parseDurationEnv("BREAKER_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.BreakerMaxRequests, err = parseUintEnv("BREAKER_MAX_REQUESTS", 1); err != nil {
		return Config{}, err
	}
	if cfg.BreakerFailures, err = parseUintEnv("BREAKER_FAILURES", 5); err != nil {
		return Config{}, err
	}
	if cfg.AltScreen, err = parseBoolEnv("TUI_ALT_SCREEN", true); err != nil {
		return Config{}, err
	}
	if cfg.DevUsers, err = parseDevUsers(getEnv("DEV_USERS", "dev-token-buyer:user_buyer:Ana,dev-token-seller:user_seller:Mihai")); err != nil {
		return Config{}, err
	}

	if (cfg.StartAdID == "") != (cfg.StartReceiverID == "") {
		return Config{}, fmt.Errorf("MARKETCHAT_START_AD and MARKETCHAT_START_TO must be set together")
	}
	if cfg.ConversationsInterval <= 0 || cfg.ThreadInterval <= 0 {
		return Config{}, fmt.Errorf("poll intervals must be positive")
	}
	return cfg, nil
}

// RequireClient checks the values the terminal client cannot run without.
func (c Config) RequireClient() error {
	if c.Token == "" {
		return fmt.Errorf("MARKETCHAT_TOKEN is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("MARKETCHAT_USER_ID is required")
	}
	return nil
}

// parseDevUsers reads "token:user_id[:name]" entries separated by commas.
func parseDevUsers(raw string) (map[string]DevUser, error) {
	users := make(map[string]DevUser)
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid DEV_USERS entry %q", item)
		}
		u := DevUser{Token: parts[0], ID: parts[1], Name: parts[1]}
		if len(parts) == 3 && parts[2] != "" {
			u.Name = parts[2]
		}
		users[u.Token] = u
	}
	return users, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseUintEnv(key string, def uint32) (uint32, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s number: %w", key, err)
	}
	return uint32(v), nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
