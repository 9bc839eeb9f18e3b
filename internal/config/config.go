package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from flags, files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	FeedPath         string        `mapstructure:"feed"`
	Author           string        `mapstructure:"author"`
	CreateAuthor     bool          `mapstructure:"create_author"`
	SiteURL          string        `mapstructure:"site_url"`
	SourcesFile      string        `mapstructure:"sources_file"`
	PublishersFile   string        `mapstructure:"publishers_file"`
	FeedFetchSeconds int64         `mapstructure:"feed_fetch_timeout_seconds"`
	FeedFetchTimeout time.Duration `mapstructure:"-"`

	StoreType string `mapstructure:"store_type"`
	StorePath string `mapstructure:"store_path"`

	AssetBackend      string        `mapstructure:"asset_backend"`
	AssetRoot         string        `mapstructure:"asset_root"`
	AssetBasePath     string        `mapstructure:"asset_base_path"`
	AssetPublicURL    string        `mapstructure:"asset_public_url"`
	AssetS3Bucket     string        `mapstructure:"asset_s3_bucket"`
	AssetS3Region     string        `mapstructure:"asset_s3_region"`
	AssetS3Endpoint   string        `mapstructure:"asset_s3_endpoint"`
	AssetUserAgent    string        `mapstructure:"asset_user_agent"`
	AssetMaxBytes     int64         `mapstructure:"asset_max_bytes"`
	AssetConcurrency  int           `mapstructure:"asset_concurrency"`
	AssetFetchSeconds int64         `mapstructure:"asset_fetch_timeout_seconds"`
	AssetFetchRetries int           `mapstructure:"asset_fetch_retries"`
	AssetFetchTimeout time.Duration `mapstructure:"-"`

	ImportAttachments    bool     `mapstructure:"import_attachments"`
	AttachmentExtensions string   `mapstructure:"attachment_extensions"`
	AttachmentExts       []string `mapstructure:"-"`
	SanitizeHTML         bool     `mapstructure:"sanitize_html"`
	SummaryMaxRunes      int      `mapstructure:"summary_max_runes"`

	NotifyTimeoutSeconds int64         `mapstructure:"notify_timeout_seconds"`
	NotifyTimeout        time.Duration `mapstructure:"-"`
}

// Flags declares the command line flags understood by Load.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("feed", "", "path or http(s) URL of the feed document to import")
	fs.String("author", "", "username of the author owning imported content")
	fs.Bool("create-author", false, "create the author if it does not exist yet")
	fs.String("site-url", "", "site base URL used to resolve relative asset references")
	fs.String("sources-file", "", "YAML/JSON file listing feed sources to import")
	fs.Bool("import-attachments", false, "rehost linked attachments in addition to images")
	return fs
}

// Load reads configuration from environment variables, config files and the given arguments.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-feed-importer")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("feed", "")
	v.SetDefault("author", "")
	v.SetDefault("create_author", false)
	v.SetDefault("site_url", "")
	v.SetDefault("sources_file", "")
	v.SetDefault("publishers_file", "")
	v.SetDefault("feed_fetch_timeout_seconds", 30)
	v.SetDefault("store_type", "bbolt")
	v.SetDefault("store_path", "./data/content.db")
	v.SetDefault("asset_backend", "filesystem")
	v.SetDefault("asset_root", "./data/assets")
	v.SetDefault("asset_base_path", "data")
	v.SetDefault("asset_public_url", "/")
	v.SetDefault("asset_s3_bucket", "")
	v.SetDefault("asset_s3_region", "")
	v.SetDefault("asset_s3_endpoint", "")
	v.SetDefault("asset_fetch_timeout_seconds", 30)
	v.SetDefault("asset_fetch_retries", 2)
	v.SetDefault("asset_max_bytes", int64(25<<20))
	v.SetDefault("asset_concurrency", 4)
	v.SetDefault("import_attachments", false)
	v.SetDefault("attachment_extensions", "pdf,zip,doc,docx,xls,xlsx,ppt,pptx,mp3,mp4,epub")
	v.SetDefault("sanitize_html", true)
	v.SetDefault("asset_user_agent", "samvad-feed-importer/1.0")
	v.SetDefault("summary_max_runes", 300)
	v.SetDefault("notify_timeout_seconds", 5)

	v.AutomaticEnv()

	fs := Flags("importer")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	// flag names use dashes, config keys use underscores
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.FeedFetchSeconds <= 0 {
		return fmt.Errorf("invalid feed_fetch_timeout_seconds (must be positive seconds)")
	}
	if cfg.AssetFetchSeconds <= 0 {
		return fmt.Errorf("invalid asset_fetch_timeout_seconds (must be positive seconds)")
	}
	if cfg.NotifyTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid notify_timeout_seconds (must be positive seconds)")
	}
	if cfg.AssetFetchRetries < 0 {
		return fmt.Errorf("invalid asset_fetch_retries (must not be negative)")
	}
	if cfg.AssetMaxBytes <= 0 {
		return fmt.Errorf("invalid asset_max_bytes (must be positive)")
	}
	if cfg.AssetConcurrency <= 0 {
		return fmt.Errorf("invalid asset_concurrency (must be positive)")
	}
	if cfg.SummaryMaxRunes <= 0 {
		return fmt.Errorf("invalid summary_max_runes (must be positive)")
	}
	if strings.TrimSpace(cfg.FeedPath) == "" && strings.TrimSpace(cfg.SourcesFile) == "" {
		return fmt.Errorf("either feed or sources_file must be set")
	}

	cfg.FeedFetchTimeout = time.Duration(cfg.FeedFetchSeconds) * time.Second
	cfg.AssetFetchTimeout = time.Duration(cfg.AssetFetchSeconds) * time.Second
	cfg.NotifyTimeout = time.Duration(cfg.NotifyTimeoutSeconds) * time.Second
	cfg.AttachmentExts = splitList(cfg.AttachmentExtensions)
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(p), "."))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
