package common

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Queue       QueueConfig     `toml:"queue"`
	Browser     BrowserConfig   `toml:"browser"`
	Extraction  ExtractionConfig `toml:"extraction"`
	Outreach    OutreachConfig  `toml:"outreach"`
	Display     DisplayConfig   `toml:"display"`
	Proxy       ProxyConfig     `toml:"proxy"`
	Vault       VaultConfig     `toml:"vault"`
	Sessions    SessionsConfig  `toml:"sessions"`
	LLM         LLMConfig       `toml:"llm"`
	IMAP        IMAPConfig      `toml:"imap"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// QueueConfig controls the run-job queue and worker pool
type QueueConfig struct {
	Concurrency       int     `toml:"concurrency" validate:"gte=1"` // Number of concurrent account workers
	PollInterval      string  `toml:"poll_interval"`                // e.g. "1s" - how often workers poll for jobs
	MaxAttempts       int     `toml:"max_attempts"`                 // Max attempts per job before it is failed
	InitialBackoff    string  `toml:"initial_backoff"`              // Backoff before the first retry
	MaxBackoff        string  `toml:"max_backoff"`                  // Backoff ceiling
	BackoffMultiplier float64 `toml:"backoff_multiplier"`           // Exponential backoff multiplier
	StartsPerMinute   int     `toml:"starts_per_minute"`            // Rate limit on job starts, independent of concurrency
	CompletedRetention string `toml:"completed_retention"`          // How long completed jobs are kept for inspection
	FailedRetention    string `toml:"failed_retention"`             // How long failed jobs are kept for inspection
	PruneInterval      string `toml:"prune_interval"`               // How often terminal jobs are pruned
}

// BrowserConfig controls the chromedp browser sessions
type BrowserConfig struct {
	Headless    bool   `toml:"headless"`     // Run without a visible window (display manager disabled)
	UserAgent   string `toml:"user_agent"`   // Browser user agent
	NoSandbox   bool   `toml:"no_sandbox"`   // Disable Chrome sandbox (required in most containers)
	DisableGPU  bool   `toml:"disable_gpu"`  // Disable GPU rendering
	NavTimeout  string `toml:"nav_timeout"`  // Timeout per navigation
	WaitTimeout string `toml:"wait_timeout"` // Timeout per element wait
}

// ExtractionConfig controls the reel extraction and advance loop
type ExtractionConfig struct {
	LikeThreshold       int    `toml:"like_threshold"`        // Minimum like count before identity extraction runs
	MaxItemsPerRun      int    `toml:"max_items_per_run"`     // Reels inspected per account run
	MaxAncestorDepth    int    `toml:"max_ancestor_depth"`    // Container search depth from the focused media element
	AdvanceTimeout      string `toml:"advance_timeout"`       // Poll window after the first advance keypress
	AdvanceRetryTimeout string `toml:"advance_retry_timeout"` // Shorter poll window after the second keypress
	AdvancePollInterval string `toml:"advance_poll_interval"` // Poll interval while verifying an advance
	MaxStuckAdvances    int    `toml:"max_stuck_advances"`    // Consecutive failed advances before the run aborts
}

// OutreachConfig controls message delivery
type OutreachConfig struct {
	Enabled         bool   `toml:"enabled"`           // Send messages; false = discovery only
	MaxPerRun       int    `toml:"max_per_run"`       // Cap on messages sent in one account run
	DefaultTemplate string `toml:"default_template"`  // Prompt reference used when the account has none
}

// DisplayConfig controls the virtual display / VNC slot pool
type DisplayConfig struct {
	Enabled     bool   `toml:"enabled"`       // Provision Xvfb/x11vnc per slot; false = headless only
	PoolSize    int    `toml:"pool_size"`     // Number of display slots shared by all accounts
	DisplayBase int    `toml:"display_base"`  // First X display number (slot 0 = :<display_base>)
	VNCBasePort int    `toml:"vnc_base_port"` // First VNC port (slot 0 = vnc_base_port)
	Resolution  string `toml:"resolution"`    // Xvfb screen geometry, e.g. "1280x900x24"
}

type ProxyConfig struct {
	List []string `toml:"list"` // Outbound proxy URLs; empty disables proxying
}

// VaultConfig holds the credential encryption key
type VaultConfig struct {
	Key string `toml:"key"` // Hex-encoded 32-byte AES key; empty = ephemeral per-process key
}

type SessionsConfig struct {
	Dir string `toml:"dir"` // Directory holding per-account cookie files
}

// LLMConfig selects and configures the message generation provider
type LLMConfig struct {
	Provider    string  `toml:"provider"`    // "claude" or "gemini"
	APIKey      string  `toml:"api_key"`     // Provider API key
	Model       string  `toml:"model"`       // Model name
	Temperature float32 `toml:"temperature"` // Completion temperature
	Timeout     string  `toml:"timeout"`     // Per-request timeout
}

// IMAPConfig enables login-challenge code retrieval from a mailbox
type IMAPConfig struct {
	Server   string `toml:"server"`   // host:port, e.g. "imap.gmail.com:993"
	Username string `toml:"username"`
	Password string `toml:"password"`
	Mailbox  string `toml:"mailbox"`  // Defaults to INBOX
	Timeout  string `toml:"timeout"`  // How long to wait for the challenge mail to arrive
}

// SchedulerConfig enables cron-triggered account runs
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron expression, e.g. "0 */4 * * *"
}

// LoadConfig loads configuration from TOML files with environment overrides.
// Later files override earlier ones; a missing file is a hard error.
func LoadConfig(paths ...string) (*Config, error) {
	// .env is optional and only feeds os.Getenv below
	_ = godotenv.Load()

	config := defaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides lets secrets come from the environment instead of TOML
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("SCRAPPER_VAULT_KEY"); v != "" {
		config.Vault.Key = v
	}
	if v := os.Getenv("SCRAPPER_LLM_API_KEY"); v != "" {
		config.LLM.APIKey = v
	}
	if v := os.Getenv("SCRAPPER_IMAP_PASSWORD"); v != "" {
		config.IMAP.Password = v
	}
}

func defaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{Path: "./data/scrapper"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Queue: QueueConfig{
			Concurrency:        3,
			PollInterval:       "1s",
			MaxAttempts:        3,
			InitialBackoff:     "30s",
			MaxBackoff:         "10m",
			BackoffMultiplier:  2.0,
			StartsPerMinute:    6,
			CompletedRetention: "24h",
			FailedRetention:    "72h",
			PruneInterval:      "1h",
		},
		Browser: BrowserConfig{
			Headless:    false,
			UserAgent:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			NoSandbox:   true,
			DisableGPU:  true,
			NavTimeout:  "45s",
			WaitTimeout: "15s",
		},
		Extraction: ExtractionConfig{
			LikeThreshold:       100000,
			MaxItemsPerRun:      50,
			MaxAncestorDepth:    20,
			AdvanceTimeout:      "6s",
			AdvanceRetryTimeout: "3s",
			AdvancePollInterval: "250ms",
			MaxStuckAdvances:    3,
		},
		Outreach: OutreachConfig{
			Enabled:   true,
			MaxPerRun: 10,
		},
		Display: DisplayConfig{
			Enabled:     true,
			PoolSize:    10,
			DisplayBase: 100,
			VNCBasePort: 5900,
			Resolution:  "1280x900x24",
		},
		Vault:    VaultConfig{},
		Sessions: SessionsConfig{Dir: "./data/sessions"},
		LLM: LLMConfig{
			Provider:    "claude",
			Model:       "claude-haiku-4-5",
			Temperature: 0.7,
			Timeout:     "60s",
		},
		IMAP: IMAPConfig{
			Mailbox: "INBOX",
			Timeout: "90s",
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: "0 */4 * * *",
		},
	}
}

// ParseDuration parses a duration string, falling back to a default when
// the value is empty or malformed.
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
