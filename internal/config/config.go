// Package config builds the process configuration once at startup.
// Components get their values through constructors and never read the
// environment themselves.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Vovarama1992/support-relay/internal/models"
)

const (
	DefaultPort                = "8080"
	DefaultTelegramTTLMinutes  = 30
	DefaultChatwootTTLMinutes  = 720
	DefaultThreadMaxAgeDays    = 7
	DefaultFixtureLinkBase     = "https://betaione.com/fixture/"
	DefaultTaskWorkers         = 4
	DefaultTaskQueueSize       = 256
	DefaultPushButtonLabel     = "查看更多"
	DefaultAgentAssistantName  = "query_agent"
	DefaultAgentEndpointSuffix = "/messages"
)

// AccountInbox is one allowed Chatwoot (account, inbox) pair.
type AccountInbox struct {
	AccountID int64 `json:"accounts_id"`
	InboxID   int64 `json:"inbox_id"`
}

type Config struct {
	Port        string
	DatabaseURL string
	LogMode     string

	ChatwootBaseURL string
	ChatwootToken   string
	AllowedInboxes  []AccountInbox
	TelegramToken   string
	TelegramHookURL string
	LarkWebhookURL  string
	FixtureLinkBase string
	PushButtonLabel string
	PushButtonURL   string
	CountryOffsets  map[models.Country]int
	TelegramTTL     time.Duration
	ChatwootTTL     time.Duration
	ThreadMaxAge    time.Duration
	TaskWorkers     int
	TaskQueueSize   int
	AgentURL        string
	AgentName       string
	AgentEndpoint   string
	OpenAIKey       string
	OpenAIModel     string
	Warnings        []string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from any key lookup; tests pass a map.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	cfg := Config{
		Port:            get("PORT"),
		DatabaseURL:     get("DATABASE_URL"),
		LogMode:         get("LOG_MODE"),
		ChatwootBaseURL: strings.TrimRight(get("CHATWOOT_BASE_URL"), "/"),
		ChatwootToken:   get("CHATWOOT_API_ACCESS_TOKEN"),
		TelegramToken:   get("TELEGRAM_BOT_TOKEN"),
		TelegramHookURL: get("TELEGRAM_WEBHOOK_URL"),
		LarkWebhookURL:  get("LARK_BOT_WEBHOOK_URL"),
		FixtureLinkBase: get("FIXTURE_LINK_BASE"),
		PushButtonLabel: get("PUSH_BUTTON_LABEL"),
		PushButtonURL:   get("PUSH_BUTTON_URL"),
		AgentURL:        strings.TrimRight(get("AGENT_URL", "agent_url"), "/"),
		AgentName:       get("AGENT", "agent"),
		OpenAIKey:       get("OPENAI_API_KEY"),
		OpenAIModel:     get("OPENAI_MODEL"),
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = postgresDSNFromParts(get)
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is not set")
	}
	if cfg.FixtureLinkBase == "" {
		cfg.FixtureLinkBase = DefaultFixtureLinkBase
	}
	if cfg.PushButtonLabel == "" {
		cfg.PushButtonLabel = DefaultPushButtonLabel
	}
	cfg.AgentEndpoint = agentEndpoint(get("AGENT_ENDPOINT", "agent_endpoint"), cfg.AgentName)

	cfg.TelegramTTL = time.Duration(cfg.intOr(get("THREAD_TTL_MINUTES_TELEGRAM"), DefaultTelegramTTLMinutes, "THREAD_TTL_MINUTES_TELEGRAM")) * time.Minute
	cfg.ChatwootTTL = time.Duration(cfg.intOr(get("THREAD_TTL_MINUTES_CHATWOOT"), DefaultChatwootTTLMinutes, "THREAD_TTL_MINUTES_CHATWOOT")) * time.Minute
	cfg.ThreadMaxAge = time.Duration(cfg.intOr(get("THREAD_MAX_AGE_DAYS"), DefaultThreadMaxAgeDays, "THREAD_MAX_AGE_DAYS")) * 24 * time.Hour
	cfg.TaskWorkers = cfg.intOr(get("TASK_WORKERS"), DefaultTaskWorkers, "TASK_WORKERS")
	cfg.TaskQueueSize = cfg.intOr(get("TASK_QUEUE_SIZE"), DefaultTaskQueueSize, "TASK_QUEUE_SIZE")

	cfg.AllowedInboxes = cfg.parseInboxes(get("ACCOUNTS_ID_LIST", "accounts_id_list"))
	cfg.CountryOffsets = cfg.parseOffsets(get("COUNTRY_OFFSETS"), get("COUNTRY_OFFSETS_FILE"))

	return cfg, nil
}

// ThreadTTL returns the renewal window for a platform.
func (c Config) ThreadTTL(p models.Platform) time.Duration {
	if p == models.PlatformTelegram {
		return c.TelegramTTL
	}
	return c.ChatwootTTL
}

// Offset is the UTC offset in hours for a country, 0 when unknown.
func (c Config) Offset(country models.Country) int {
	return c.CountryOffsets[country]
}

func (c *Config) intOr(raw string, def int, key string) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s=%q is not a positive integer, using %d", key, raw, def))
		return def
	}
	return v
}

func (c *Config) parseInboxes(raw string) []AccountInbox {
	if raw == "" {
		return nil
	}
	var out []AccountInbox
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("ACCOUNTS_ID_LIST is not valid JSON: %v", err))
		return nil
	}
	return out
}

func (c *Config) parseOffsets(raw, file string) map[models.Country]int {
	offsets := map[models.Country]int{
		models.CountryPH: 8,
		models.CountryUS: -5,
	}
	if raw == "" && file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			c.Warnings = append(c.Warnings, fmt.Sprintf("COUNTRY_OFFSETS_FILE unreadable: %v", err))
			return offsets
		}
		raw = string(b)
	}
	if raw == "" {
		return offsets
	}
	var m map[string]int
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("country offsets are not valid JSON: %v", err))
		return offsets
	}
	for k, v := range m {
		if country := models.ParseCountry(k); country != models.CountryUnset {
			offsets[country] = v
		}
	}
	return offsets
}

func agentEndpoint(raw, name string) string {
	if raw != "" {
		if !strings.HasPrefix(raw, "/") {
			raw = "/" + raw
		}
		return raw
	}
	if name != "" {
		return "/" + name + DefaultAgentEndpointSuffix
	}
	return DefaultAgentEndpointSuffix
}

func postgresDSNFromParts(get func(keys ...string) string) string {
	host := get("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	user := get("POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}
	port := get("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	db := get("POSTGRES_DB")
	if db == "" {
		db = user
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, get("POSTGRES_PASSWORD")),
		Host:   host + ":" + port,
		Path:   "/" + db,
	}
	return u.String()
}
