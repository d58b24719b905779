// Package config loads wavecast configuration from files, .env, environment, and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for wavecast environment variables.
const EnvPrefix = "WAVECAST"

// Generation providers.
const (
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
	ProviderDeepSeek = "deepseek"
	ProviderArk      = "ark"
)

// Config is the immutable run configuration.
type Config struct {
	Loop       LoopConfig       `mapstructure:"loop"`
	Filters    FiltersConfig    `mapstructure:"filters"`
	Gates      GatesConfig      `mapstructure:"gates"`
	Store      StoreConfig      `mapstructure:"store"`
	Generation GenerationConfig `mapstructure:"generation"`
	Render     RenderConfig     `mapstructure:"render"`
	SMS        SMSConfig        `mapstructure:"sms"`
	Signal     SignalConfig     `mapstructure:"signal"`
	Guard      GuardConfig      `mapstructure:"guard"`
	Journal    JournalConfig    `mapstructure:"journal"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// LoopConfig controls repetition.
type LoopConfig struct {
	Repeat int `mapstructure:"repeat"`

	// Wait is parsed separately: bare integers are milliseconds.
	Wait time.Duration `mapstructure:"-"`
}

// FiltersConfig restricts the roster and catalog.
type FiltersConfig struct {
	Canary           string `mapstructure:"canary"`
	RecipientCap     int    `mapstructure:"recipient_cap"`
	MaxWave          *int   `mapstructure:"-"`
	RespectSendAfter bool   `mapstructure:"respect_send_after"`
}

// GatesConfig separates dry runs from real side effects.
type GatesConfig struct {
	HotSend   bool `mapstructure:"hot_send"`
	HotUpdate bool `mapstructure:"hot_update"`
}

// StoreConfig locates the record store.
type StoreConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Tabs    TabsConfig    `mapstructure:"tabs"`
}

// TabsConfig names the record-store tabs.
type TabsConfig struct {
	Recipients string `mapstructure:"recipients"`
	Messages   string `mapstructure:"messages"`
	Variables  string `mapstructure:"variables"`
	Authors    string `mapstructure:"authors"`
	Log        string `mapstructure:"log"`
}

// GenerationConfig selects the chat model.
type GenerationConfig struct {
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RenderConfig controls content rendering.
type RenderConfig struct {
	CountdownTarget string   `mapstructure:"countdown_target"`
	Timezone        string   `mapstructure:"timezone"`
	SignWithAuthor  bool     `mapstructure:"sign_with_author"`
	UnsignedHandles []string `mapstructure:"unsigned_handles"`
}

// SMSConfig locates the SMS gateway.
type SMSConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Sender  string        `mapstructure:"sender"`
	Timeout time.Duration `mapstructure:"timeout"`
	Rate    RateConfig    `mapstructure:"rate"`
}

// RateConfig paces sends on one channel. A zero rate means unlimited.
type RateConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

// SignalConfig controls the Signal CLI invocation.
type SignalConfig struct {
	// Command is the CLI path plus fixed leading arguments, split on whitespace.
	Command string `mapstructure:"command"`

	Rate RateConfig `mapstructure:"rate"`

	// BenignStderr extends the built-in table of harmless stderr lines. Entries ending in
	// "*" match as prefixes.
	BenignStderr []string `mapstructure:"-"`
}

// GuardConfig enables the Redis duplicate-send guard.
type GuardConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// JournalConfig locates the local journal database.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// ConfigFile is an explicit config path. When empty the default search paths are used.
	ConfigFile string

	// EnvFiles are .env files loaded before reading the environment. Missing files are ignored.
	EnvFiles []string

	// Flags are bound by name using FlagKeys.
	Flags *pflag.FlagSet
}

// FlagKeys maps CLI flag names to config keys.
var FlagKeys = map[string]string{
	"repeat":     "loop.repeat",
	"wait":       "loop.wait",
	"canary":     "filters.canary",
	"cap":        "filters.recipient_cap",
	"max-wave":   "filters.max_wave",
	"hot-send":   "gates.hot_send",
	"hot-update": "gates.hot_update",
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"journal":    "journal.path",
}

// legacyEnv lists the unprefixed variable names accepted for each key.
var legacyEnv = map[string][]string{
	"loop.repeat":           {"LOOP_REPEAT"},
	"loop.wait":             {"LOOP_WAIT"},
	"filters.canary":        {"CANARY"},
	"filters.recipient_cap": {"RECIPIENT_CAP"},
	"filters.max_wave":      {"MAX_WAVE"},
	"gates.hot_send":        {"HOT_SEND"},
	"gates.hot_update":      {"HOT_UPDATE"},
	"store.url":             {"SHEET_URL"},
	"store.tabs.recipients": {"SHEET_TAB_RECIPIENTS"},
	"store.tabs.messages":   {"SHEET_TAB_MESSAGES"},
	"store.tabs.variables":  {"SHEET_TAB_VARIABLES"},
	"store.tabs.authors":    {"SHEET_TAB_AUTHORS"},
	"store.tabs.log":        {"SHEET_TAB_LOG"},
	"generation.api_key":    {"OPENAI_API_KEY"},
	"signal.command":        {"SIGNAL_CLI"},
	"sms.url":               {"SMS_GATEWAY_URL"},
	"sms.token":             {"SMS_GATEWAY_TOKEN"},
	"guard.redis_url":       {"REDIS_URL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("loop.repeat", 1)
	v.SetDefault("loop.wait", "0")
	v.SetDefault("filters.canary", "")
	v.SetDefault("filters.recipient_cap", 0)
	v.SetDefault("filters.max_wave", "")
	v.SetDefault("filters.respect_send_after", false)
	v.SetDefault("gates.hot_send", false)
	v.SetDefault("gates.hot_update", false)
	v.SetDefault("store.url", "")
	v.SetDefault("store.timeout", "30s")
	v.SetDefault("store.tabs.recipients", "recipients")
	v.SetDefault("store.tabs.messages", "messages")
	v.SetDefault("store.tabs.variables", "variables")
	v.SetDefault("store.tabs.authors", "")
	v.SetDefault("store.tabs.log", "log")
	v.SetDefault("generation.provider", ProviderOpenAI)
	v.SetDefault("generation.model", "gpt-4o-2024-08-06")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.base_url", "")
	v.SetDefault("generation.timeout", "2m")
	v.SetDefault("render.countdown_target", "2024-12-07T12:00:00")
	v.SetDefault("render.timezone", "Local")
	v.SetDefault("render.sign_with_author", false)
	v.SetDefault("render.unsigned_handles", []string{"invite", "bot-intro"})
	v.SetDefault("sms.url", "")
	v.SetDefault("sms.token", "")
	v.SetDefault("sms.sender", "")
	v.SetDefault("sms.timeout", "30s")
	v.SetDefault("sms.rate.per_second", 0)
	v.SetDefault("sms.rate.burst", 1)
	v.SetDefault("signal.command", "signal-cli")
	v.SetDefault("signal.benign_stderr", []string{})
	v.SetDefault("signal.rate.per_second", 0)
	v.SetDefault("signal.rate.burst", 1)
	v.SetDefault("guard.redis_url", "")
	v.SetDefault("guard.ttl", "720h")
	v.SetDefault("journal.path", DefaultJournalPath())
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "")
}

// DefaultJournalPath returns the default journal location.
func DefaultJournalPath() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".local", "share", "wavecast", "journal.db")
	}
	return "wavecast-journal.db"
}

// Load builds a Config. Precedence: flags, environment, config file, defaults.
func Load(opts LoadOptions) (*Config, error) {
	for _, path := range opts.EnvFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		envs := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := readConfigFile(v, opts.ConfigFile); err != nil {
		return nil, err
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			flag := opts.Flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	wait, err := ParseWait(v.GetString("loop.wait"))
	if err != nil {
		return nil, err
	}
	cfg.Loop.Wait = wait

	if raw := strings.TrimSpace(v.GetString("filters.max_wave")); raw != "" {
		maxWave, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid max wave %q: %w", raw, err)
		}
		cfg.Filters.MaxWave = &maxWave
	}

	cfg.Signal.BenignStderr = stringList(v.Get("signal.benign_stderr"))

	return cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("wavecast")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		v.AddConfigPath(filepath.Join(home, ".config", "wavecast"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// ParseWait parses the inter-iteration wait. Bare integers are milliseconds.
func ParseWait(value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	if ms, err := strconv.Atoi(trimmed); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("wait must be non-negative, got %d", ms)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid wait %q: %w", value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("wait must be non-negative, got %s", d)
	}
	return d, nil
}

// stringList accepts a YAML list or a newline-separated string. Commas are not separators
// because stderr lines contain them.
func stringList(raw any) []string {
	var out []string
	switch value := raw.(type) {
	case string:
		for _, line := range strings.Split(value, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
	case []string:
		for _, line := range value {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
	case []any:
		for _, item := range value {
			if line := strings.TrimSpace(fmt.Sprint(item)); line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}

// Validate checks option ranges.
func (c *Config) Validate() error {
	if c.Loop.Repeat < 1 {
		return fmt.Errorf("loop.repeat must be at least 1, got %d", c.Loop.Repeat)
	}
	if c.Loop.Wait < 0 {
		return fmt.Errorf("loop.wait must be non-negative")
	}
	if c.Filters.RecipientCap < 0 {
		return fmt.Errorf("filters.recipient_cap must be non-negative, got %d", c.Filters.RecipientCap)
	}
	if c.SMS.Rate.PerSecond < 0 || c.Signal.Rate.PerSecond < 0 {
		return errors.New("rate.per_second must be non-negative")
	}
	if strings.TrimSpace(c.Store.URL) == "" {
		return errors.New("store.url is required (SHEET_URL)")
	}
	switch c.Generation.Provider {
	case ProviderOpenAI, ProviderOllama, ProviderDeepSeek, ProviderArk:
	default:
		return fmt.Errorf("unknown generation provider %q", c.Generation.Provider)
	}
	if _, err := c.CountdownTarget(); err != nil {
		return err
	}
	return nil
}

// CountdownTarget parses the render countdown target in the configured timezone.
func (c *Config) CountdownTarget() (time.Time, error) {
	loc := time.Local
	if tz := strings.TrimSpace(c.Render.Timezone); tz != "" && tz != "Local" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid render.timezone %q: %w", tz, err)
		}
		loc = parsed
	}
	target, err := time.ParseInLocation("2006-01-02T15:04:05", c.Render.CountdownTarget, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid render.countdown_target %q: %w", c.Render.CountdownTarget, err)
	}
	return target, nil
}

// SignalArgs splits the Signal command into executable and leading arguments.
func (c *Config) SignalArgs() (string, []string, error) {
	fields := strings.Fields(c.Signal.Command)
	if len(fields) == 0 {
		return "", nil, errors.New("signal.command is empty")
	}
	return fields[0], fields[1:], nil
}
