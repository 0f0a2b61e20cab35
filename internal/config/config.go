// Package config loads runtime settings in three layers: built-in defaults,
// an optional YAML file, then GIDDY_* environment overrides. Validation runs
// once at startup so the session loop never sees a half-formed config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	clierr "github.com/OFiDCrypt/giddy-swaps/internal/errors"
	"github.com/OFiDCrypt/giddy-swaps/internal/logging"
)

type Settings struct {
	Logging logging.Config

	RPC struct {
		URL            string
		RequestTimeout time.Duration
		ConfirmTimeout time.Duration
		PollInterval   time.Duration
	}

	Wallet struct {
		KeypairPath string
	}

	Telegram struct {
		Enabled  bool
		BotToken string
		ChatID   int64
		APIBase  string
	}

	Providers struct {
		UltraBaseURL string
		QuoteBaseURL string
		HTTPTimeout  time.Duration
		HTTPRetries  int
	}

	Swap struct {
		SlippageBps      int
		MinSOLReserve    float64
		MinSwapAmount    string
		MaxBuy           string
		Interval         time.Duration
		SkipDelay        time.Duration
		RetryDelay       time.Duration
		InitialDirection string
		UseDLMMFallback  bool
	}

	Audit struct {
		Dir      string
		DBPath   string
		LockPath string
	}
}

type fileConfig struct {
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	RPC struct {
		URL            string `yaml:"url"`
		RequestTimeout string `yaml:"request_timeout"`
		ConfirmTimeout string `yaml:"confirm_timeout"`
		PollInterval   string `yaml:"poll_interval"`
	} `yaml:"rpc"`
	Wallet struct {
		KeypairPath string `yaml:"keypair_path"`
	} `yaml:"wallet"`
	Telegram struct {
		Enabled     *bool  `yaml:"enabled"`
		BotToken    string `yaml:"bot_token"`
		BotTokenEnv string `yaml:"bot_token_env"`
		ChatID      *int64 `yaml:"chat_id"`
		APIBase     string `yaml:"api_base"`
	} `yaml:"telegram"`
	Providers struct {
		UltraBaseURL string `yaml:"ultra_base_url"`
		QuoteBaseURL string `yaml:"quote_base_url"`
		HTTPTimeout  string `yaml:"http_timeout"`
		HTTPRetries  *int   `yaml:"http_retries"`
	} `yaml:"providers"`
	Swap struct {
		SlippageBps      *int     `yaml:"slippage_bps"`
		MinSOLReserve    *float64 `yaml:"min_sol_reserve"`
		MinSwapAmount    string   `yaml:"min_swap_amount"`
		MaxBuy           string   `yaml:"max_buy"`
		Interval         string   `yaml:"interval"`
		SkipDelay        string   `yaml:"skip_delay"`
		RetryDelay       string   `yaml:"retry_delay"`
		InitialDirection string   `yaml:"initial_direction"`
		UseDLMMFallback  *bool    `yaml:"use_dlmm_fallback"`
	} `yaml:"swap"`
	Audit struct {
		Dir      string `yaml:"dir"`
		DBPath   string `yaml:"db_path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"audit"`
}

// Load builds Settings for the given config file path. An empty path falls
// back to $XDG_CONFIG_HOME/giddy/config.yaml; a missing file is not an error.
func Load(path string) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(path)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := validate(settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	auditDir, err := defaultAuditDir()
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	s.Logging = logging.Config{Level: "info", Format: "console"}
	s.RPC.URL = "https://api.mainnet-beta.solana.com"
	s.RPC.RequestTimeout = 30 * time.Second
	s.RPC.ConfirmTimeout = 60 * time.Second
	s.RPC.PollInterval = 2 * time.Second
	s.Wallet.KeypairPath = defaultKeypairPath()
	s.Telegram.APIBase = "https://api.telegram.org"
	s.Providers.UltraBaseURL = "https://lite-api.jup.ag/ultra/v1"
	s.Providers.QuoteBaseURL = "https://lite-api.jup.ag/swap/v1"
	s.Providers.HTTPTimeout = 20 * time.Second
	s.Providers.HTTPRetries = 2
	s.Swap.SlippageBps = 300
	s.Swap.MinSOLReserve = 0.02
	s.Swap.MinSwapAmount = "1"
	s.Swap.MaxBuy = "10"
	s.Swap.Interval = 5 * time.Minute
	s.Swap.SkipDelay = 10 * time.Second
	s.Swap.RetryDelay = 5 * time.Second
	s.Swap.InitialDirection = "buy"
	s.Audit.Dir = auditDir
	s.Audit.DBPath = filepath.Join(auditDir, "outcomes.db")
	s.Audit.LockPath = filepath.Join(auditDir, "outcomes.lock")
	return s, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "giddy", "config.yaml"), nil
}

func defaultAuditDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "giddy", "swaps"), nil
}

func defaultKeypairPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "wallet.json"
	}
	return filepath.Join(home, ".config", "solana", "id.json")
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Logging.Level != "" {
		settings.Logging.Level = cfg.Logging.Level
	}
	if cfg.Logging.Format != "" {
		settings.Logging.Format = cfg.Logging.Format
	}
	if cfg.RPC.URL != "" {
		settings.RPC.URL = cfg.RPC.URL
	}
	if err := setDuration(&settings.RPC.RequestTimeout, cfg.RPC.RequestTimeout, "rpc.request_timeout"); err != nil {
		return err
	}
	if err := setDuration(&settings.RPC.ConfirmTimeout, cfg.RPC.ConfirmTimeout, "rpc.confirm_timeout"); err != nil {
		return err
	}
	if err := setDuration(&settings.RPC.PollInterval, cfg.RPC.PollInterval, "rpc.poll_interval"); err != nil {
		return err
	}
	if cfg.Wallet.KeypairPath != "" {
		settings.Wallet.KeypairPath = cfg.Wallet.KeypairPath
	}
	if cfg.Telegram.Enabled != nil {
		settings.Telegram.Enabled = *cfg.Telegram.Enabled
	}
	if cfg.Telegram.BotToken != "" {
		settings.Telegram.BotToken = cfg.Telegram.BotToken
	}
	if cfg.Telegram.BotTokenEnv != "" {
		settings.Telegram.BotToken = os.Getenv(cfg.Telegram.BotTokenEnv)
	}
	if cfg.Telegram.ChatID != nil {
		settings.Telegram.ChatID = *cfg.Telegram.ChatID
	}
	if cfg.Telegram.APIBase != "" {
		settings.Telegram.APIBase = cfg.Telegram.APIBase
	}
	if cfg.Providers.UltraBaseURL != "" {
		settings.Providers.UltraBaseURL = cfg.Providers.UltraBaseURL
	}
	if cfg.Providers.QuoteBaseURL != "" {
		settings.Providers.QuoteBaseURL = cfg.Providers.QuoteBaseURL
	}
	if err := setDuration(&settings.Providers.HTTPTimeout, cfg.Providers.HTTPTimeout, "providers.http_timeout"); err != nil {
		return err
	}
	if cfg.Providers.HTTPRetries != nil {
		settings.Providers.HTTPRetries = *cfg.Providers.HTTPRetries
	}
	if cfg.Swap.SlippageBps != nil {
		settings.Swap.SlippageBps = *cfg.Swap.SlippageBps
	}
	if cfg.Swap.MinSOLReserve != nil {
		settings.Swap.MinSOLReserve = *cfg.Swap.MinSOLReserve
	}
	if cfg.Swap.MinSwapAmount != "" {
		settings.Swap.MinSwapAmount = cfg.Swap.MinSwapAmount
	}
	if cfg.Swap.MaxBuy != "" {
		settings.Swap.MaxBuy = cfg.Swap.MaxBuy
	}
	if err := setDuration(&settings.Swap.Interval, cfg.Swap.Interval, "swap.interval"); err != nil {
		return err
	}
	if err := setDuration(&settings.Swap.SkipDelay, cfg.Swap.SkipDelay, "swap.skip_delay"); err != nil {
		return err
	}
	if err := setDuration(&settings.Swap.RetryDelay, cfg.Swap.RetryDelay, "swap.retry_delay"); err != nil {
		return err
	}
	if cfg.Swap.InitialDirection != "" {
		settings.Swap.InitialDirection = strings.ToLower(cfg.Swap.InitialDirection)
	}
	if cfg.Swap.UseDLMMFallback != nil {
		settings.Swap.UseDLMMFallback = *cfg.Swap.UseDLMMFallback
	}
	if cfg.Audit.Dir != "" {
		settings.Audit.Dir = cfg.Audit.Dir
		settings.Audit.DBPath = filepath.Join(cfg.Audit.Dir, "outcomes.db")
		settings.Audit.LockPath = filepath.Join(cfg.Audit.Dir, "outcomes.lock")
	}
	if cfg.Audit.DBPath != "" {
		settings.Audit.DBPath = cfg.Audit.DBPath
	}
	if cfg.Audit.LockPath != "" {
		settings.Audit.LockPath = cfg.Audit.LockPath
	}
	return nil
}

func setDuration(dst *time.Duration, raw, field string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config %s: %w", field, err)
	}
	*dst = d
	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("GIDDY_LOG_LEVEL"); v != "" {
		settings.Logging.Level = v
	}
	if v := os.Getenv("GIDDY_RPC_URL"); v != "" {
		settings.RPC.URL = v
	}
	if v := os.Getenv("GIDDY_KEYPAIR_PATH"); v != "" {
		settings.Wallet.KeypairPath = v
	}
	if v := os.Getenv("GIDDY_TELEGRAM_BOT_TOKEN"); v != "" {
		settings.Telegram.BotToken = v
	}
	if v := os.Getenv("GIDDY_TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			settings.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("GIDDY_TELEGRAM_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Telegram.Enabled = b
		}
	}
	if v := os.Getenv("GIDDY_ULTRA_BASE_URL"); v != "" {
		settings.Providers.UltraBaseURL = v
	}
	if v := os.Getenv("GIDDY_QUOTE_BASE_URL"); v != "" {
		settings.Providers.QuoteBaseURL = v
	}
	if v := os.Getenv("GIDDY_SLIPPAGE_BPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Swap.SlippageBps = n
		}
	}
	if v := os.Getenv("GIDDY_MAX_BUY"); v != "" {
		settings.Swap.MaxBuy = v
	}
	if v := os.Getenv("GIDDY_MIN_SWAP_AMOUNT"); v != "" {
		settings.Swap.MinSwapAmount = v
	}
	if v := os.Getenv("GIDDY_SWAP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Swap.Interval = d
		}
	}
	if v := os.Getenv("GIDDY_USE_DLMM_FALLBACK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Swap.UseDLMMFallback = b
		}
	}
	if v := os.Getenv("GIDDY_AUDIT_DIR"); v != "" {
		settings.Audit.Dir = v
		settings.Audit.DBPath = filepath.Join(v, "outcomes.db")
		settings.Audit.LockPath = filepath.Join(v, "outcomes.lock")
	}
}

func validate(s Settings) error {
	if s.RPC.URL == "" {
		return clierr.New(clierr.CodeUsage, "rpc.url must be set")
	}
	if s.Swap.SlippageBps <= 0 || s.Swap.SlippageBps > 10_000 {
		return clierr.New(clierr.CodeUsage, "swap.slippage_bps must be in (0, 10000]")
	}
	if s.Swap.MinSOLReserve < 0 {
		return clierr.New(clierr.CodeUsage, "swap.min_sol_reserve must be non-negative")
	}
	if s.Swap.InitialDirection != "buy" && s.Swap.InitialDirection != "sell" {
		return clierr.New(clierr.CodeUsage, "swap.initial_direction must be buy or sell")
	}
	minSwap, err := strconv.ParseFloat(s.Swap.MinSwapAmount, 64)
	if err != nil || minSwap < 0 {
		return clierr.New(clierr.CodeUsage, "swap.min_swap_amount must be a non-negative decimal")
	}
	maxBuy, err := strconv.ParseFloat(s.Swap.MaxBuy, 64)
	if err != nil || maxBuy <= 0 {
		return clierr.New(clierr.CodeUsage, "swap.max_buy must be a positive decimal")
	}
	if maxBuy < minSwap {
		return clierr.New(clierr.CodeUsage, "swap.max_buy must be at least swap.min_swap_amount")
	}
	if s.Swap.Interval <= 0 {
		return clierr.New(clierr.CodeUsage, "swap.interval must be positive")
	}
	if s.Telegram.Enabled {
		if s.Telegram.BotToken == "" {
			return clierr.New(clierr.CodeUsage, "telegram.bot_token required when telegram.enabled")
		}
		if s.Telegram.ChatID == 0 {
			return clierr.New(clierr.CodeUsage, "telegram.chat_id required when telegram.enabled")
		}
	}
	return nil
}
