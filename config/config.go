package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the video generation system
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Server     ServerConfig     `mapstructure:"server"`
	LMStudio   LMStudioConfig   `mapstructure:"lmstudio"`
	Voicevox   VoicevoxConfig   `mapstructure:"voicevox"`
	Generation GenerationConfig `mapstructure:"generation"`
	Video      VideoConfig      `mapstructure:"video"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	WorkDir        string        `mapstructure:"work_dir"`
}

// ServerConfig contains ops HTTP server and auth settings
type ServerConfig struct {
	Address           string `mapstructure:"address"`
	JWTSecret         string `mapstructure:"jwt_secret"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
}

// LMStudioConfig configures the OpenAI-compatible model server
type LMStudioConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"` // empty: resolve from /models
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout"`
	StartupPoll    time.Duration `mapstructure:"startup_poll"`
}

// VoicevoxConfig configures the speech-synthesis server
type VoicevoxConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	DefaultSpeaker string        `mapstructure:"default_speaker"`
	DefaultStyleID int           `mapstructure:"default_style_id"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RequestDelay   time.Duration `mapstructure:"request_delay"`
}

// GenerationConfig tunes the script text pipeline
type GenerationConfig struct {
	MaxChunkChars     int     `mapstructure:"max_chunk_chars"`
	MaxUtteranceChars int     `mapstructure:"max_utterance_chars"`
	MaxRetries        int     `mapstructure:"max_retries"`
	RewriteBatchSize  int     `mapstructure:"rewrite_batch_size"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
}

// VideoConfig tunes video assembly
type VideoConfig struct {
	Width           int    `mapstructure:"width"`
	Height          int    `mapstructure:"height"`
	CaptionWidth    int    `mapstructure:"caption_width"` // wrap column in characters
	FontPath        string `mapstructure:"font_path"`
	FFmpegPath      string `mapstructure:"ffmpeg_path"`
	RequireCaptions bool   `mapstructure:"require_captions"` // abort on sync mismatch instead of degrading
}

// SourcesConfig configures the content fetchers
type SourcesConfig struct {
	WikiBaseURL     string `mapstructure:"wiki_base_url"`
	WikiRecentPath  string `mapstructure:"wiki_recent_path"`
	PaperQuery      string `mapstructure:"paper_query"`
	PaperMaxResults int    `mapstructure:"paper_max_results"`
	GithubRepo      string `mapstructure:"github_repo"` // owner/repo
	GithubToken     string `mapstructure:"github_token"`
}

// StorageConfig contains database and cache connections
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PipelineConfig drives scheduled runs
type PipelineConfig struct {
	Schedule string   `mapstructure:"schedule"` // cron expression or @daily
	Sources  []string `mapstructure:"sources"`  // source kinds the scheduler cycles through
	TestMode bool     `mapstructure:"test_mode"`
}

// DSN builds a postgres connection string from the configured fields.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// LoadConfig reads configuration from the given file (or the default search
// paths), after loading a .env file if one is present, with SCRIPTCAST_
// environment variables overriding file values.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SCRIPTCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".scriptcast"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file is fine; defaults + env carry a full run.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.default_timeout", "10m")
	v.SetDefault("general.work_dir", ".")

	v.SetDefault("server.address", ":8091")

	v.SetDefault("lmstudio.base_url", "http://localhost:1234/v1")
	v.SetDefault("lmstudio.api_key", "lm-studio")
	v.SetDefault("lmstudio.temperature", 0.7)
	v.SetDefault("lmstudio.max_tokens", 4000)
	v.SetDefault("lmstudio.timeout", "10m")
	v.SetDefault("lmstudio.startup_timeout", "30s")
	v.SetDefault("lmstudio.startup_poll", "500ms")

	v.SetDefault("voicevox.base_url", "http://127.0.0.1:50021")
	v.SetDefault("voicevox.default_speaker", "ずんだもん")
	v.SetDefault("voicevox.default_style_id", 3)
	v.SetDefault("voicevox.timeout", "60s")
	v.SetDefault("voicevox.request_delay", "100ms")

	v.SetDefault("generation.max_chunk_chars", 1500)
	v.SetDefault("generation.max_utterance_chars", 100)
	v.SetDefault("generation.max_retries", 3)
	v.SetDefault("generation.rewrite_batch_size", 8)
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.max_tokens", 4000)

	v.SetDefault("video.width", 1280)
	v.SetDefault("video.height", 720)
	v.SetDefault("video.caption_width", 30)
	v.SetDefault("video.ffmpeg_path", "ffmpeg")
	v.SetDefault("video.require_captions", false)

	v.SetDefault("sources.wiki_base_url", "https://bsd.neuroinf.jp")
	v.SetDefault("sources.wiki_recent_path", "/wiki/")
	v.SetDefault("sources.paper_query", `EEG OR "brain waves" OR "brain-computer interface"`)
	v.SetDefault("sources.paper_max_results", 5)

	v.SetDefault("storage.redis.timeout", "5s")

	v.SetDefault("pipeline.schedule", "@daily")
	v.SetDefault("pipeline.sources", []string{"wiki"})
	v.SetDefault("pipeline.test_mode", false)
}

// Validate sanity-checks values a run cannot proceed without.
func (c *Config) Validate() error {
	if c.Generation.MaxChunkChars < 1 {
		return fmt.Errorf("generation.max_chunk_chars must be >= 1")
	}
	if c.Generation.MaxUtteranceChars < 1 {
		return fmt.Errorf("generation.max_utterance_chars must be >= 1")
	}
	if c.Generation.MaxRetries < 1 {
		return fmt.Errorf("generation.max_retries must be >= 1")
	}
	if c.Voicevox.DefaultSpeaker == "" {
		return fmt.Errorf("voicevox.default_speaker must not be empty")
	}
	return nil
}
