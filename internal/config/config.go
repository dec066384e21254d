package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Source struct {
		BaseURL        string `yaml:"base_url"`
		ListingPath    string `yaml:"listing_path"`
		Panel          string `yaml:"panel"`
		Heading        string `yaml:"heading"`
		PageSizeOption string `yaml:"page_size_option"`
		DataURL        string `yaml:"data_url"`
		ChartSelector  string `yaml:"chart_selector"`
		MaxInstruments int    `yaml:"max_instruments"`
	} `yaml:"source"`
	Paths struct {
		Watchlist   string `yaml:"watchlist"`
		ArchiveRoot string `yaml:"archive_root"`
	} `yaml:"paths"`
	Browser struct {
		Headless    *bool         `yaml:"headless"`
		ExecPath    string        `yaml:"exec_path"`
		UserAgent   string        `yaml:"user_agent"`
		WaitTimeout time.Duration `yaml:"wait_timeout"`
	} `yaml:"browser"`
	Feed struct {
		Timeout           time.Duration `yaml:"timeout"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
	} `yaml:"feed"`
	Schedule struct {
		Cron string `yaml:"cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
		Disabled   bool   `yaml:"disabled"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SOURCE_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("WATCHLIST_PATH"); v != "" {
		cfg.Paths.Watchlist = v
	}
	if v := os.Getenv("ARCHIVE_ROOT"); v != "" {
		cfg.Paths.ArchiveRoot = v
	}
	if v := os.Getenv("CHROME_PATH"); v != "" {
		cfg.Browser.ExecPath = v
	}
	if v := os.Getenv("HEADLESS"); v != "" {
		headless := v != "false" && v != "0"
		cfg.Browser.Headless = &headless
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SCHEDULE_CRON"); v != "" {
		cfg.Schedule.Cron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}

	// Defaults
	if cfg.Source.BaseURL == "" {
		cfg.Source.BaseURL = "https://www.invertironline.com/"
	}
	if cfg.Source.ListingPath == "" {
		cfg.Source.ListingPath = "Mercado/Cotizaciones"
	}
	if cfg.Source.Panel == "" {
		cfg.Source.Panel = "CEDEARs"
	}
	if cfg.Source.Heading == "" {
		cfg.Source.Heading = "Acciones Argentina - Panel CEDEARs"
	}
	if cfg.Source.PageSizeOption == "" {
		cfg.Source.PageSizeOption = "Todo"
	}
	if cfg.Source.DataURL == "" {
		cfg.Source.DataURL = strings.TrimSuffix(cfg.Source.BaseURL, "/") +
			"/Titulo/GraficoIntradiario?idTitulo={id}&idTipo=2&idMercado=1"
	}
	if cfg.Source.ChartSelector == "" {
		cfg.Source.ChartSelector = ".highcharts-container"
	}
	if cfg.Source.MaxInstruments == 0 {
		cfg.Source.MaxInstruments = 15
	}
	if cfg.Paths.Watchlist == "" {
		cfg.Paths.Watchlist = "stocks.json"
	}
	if cfg.Paths.ArchiveRoot == "" {
		cfg.Paths.ArchiveRoot = "data"
	}
	if cfg.Browser.Headless == nil {
		headless := true
		cfg.Browser.Headless = &headless
	}
	if cfg.Browser.WaitTimeout == 0 {
		cfg.Browser.WaitTimeout = 10 * time.Second
	}
	if cfg.Feed.Timeout == 0 {
		cfg.Feed.Timeout = 5 * time.Second
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "0 0 18 * * 1-5"
	}
	if cfg.Database.SQLitePath == "" && !cfg.Database.Disabled {
		cfg.Database.SQLitePath = "harvest.db"
	}

	return cfg, nil
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.Source.BaseURL); err != nil {
		return fmt.Errorf("source.base_url is invalid: %w", err)
	}
	if !strings.Contains(c.Source.DataURL, "{id}") {
		return fmt.Errorf("source.data_url must contain {id}")
	}
	if c.Source.MaxInstruments <= 0 {
		return fmt.Errorf("source.max_instruments must be positive")
	}
	if c.Browser.WaitTimeout <= 0 {
		return fmt.Errorf("browser.wait_timeout must be positive")
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be positive")
	}
	if c.Feed.RequestsPerSecond < 0 {
		return fmt.Errorf("feed.requests_per_second must not be negative")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// ListingURL is the page the watchlist is selected from.
func (c *Config) ListingURL() string {
	return strings.TrimSuffix(c.Source.BaseURL, "/") + "/" + strings.TrimPrefix(c.Source.ListingPath, "/")
}

// HeadlessBrowser reports whether the browser runs without a window.
func (c *Config) HeadlessBrowser() bool {
	return c.Browser.Headless == nil || *c.Browser.Headless
}
