package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all sparkcoach configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Vault    VaultConfig    `yaml:"vault"`
	Quiz     QuizConfig     `yaml:"quiz"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Stats    StatsConfig    `yaml:"stats"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
	URL  string `yaml:"url"` // base URL used by CLI client commands
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LLMConfig struct {
	Provider     string        `yaml:"provider"` // "anthropic", "openai", "gemini", "ollama", "claude-cli", "mock"
	Model        string        `yaml:"model"`
	AnthropicKey string        `yaml:"anthropic_key"`
	OpenAIKey    string        `yaml:"openai_key"`
	OpenAIURL    string        `yaml:"openai_url"`
	GeminiKey    string        `yaml:"gemini_key"`
	OllamaURL    string        `yaml:"ollama_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

type VaultConfig struct {
	Provider        string        `yaml:"provider"` // "mcp" or "dir"
	URL             string        `yaml:"url"`
	APIKey          string        `yaml:"api_key"`
	Root            string        `yaml:"root"`
	ResourcesFolder string        `yaml:"resources_folder"`
	Timeout         time.Duration `yaml:"timeout"`
}

type QuizConfig struct {
	DefaultQuestions int           `yaml:"default_questions"`
	MaxQuestions     int           `yaml:"max_questions"`
	CacheBackend     string        `yaml:"cache_backend"` // "memory" or "redis"
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	RedisAddr        string        `yaml:"redis_addr"`
}

type SweepConfig struct {
	Schedule       string `yaml:"schedule"` // 6-field cron spec, empty disables
	Concurrency    int    `yaml:"concurrency"`
	UnreviewedRisk string `yaml:"unreviewed_risk"`
}

type StatsConfig struct {
	WeeklyTargetHours float64 `yaml:"weekly_target_hours"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"` // empty disables auth
	Subject   string        `yaml:"subject"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type LogConfig struct {
	Mode string `yaml:"mode"` // "dev" or "prod"
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			OllamaURL:   "http://localhost:11434",
			Timeout:     30 * time.Second,
			MaxAttempts: 3,
		},
		Vault: VaultConfig{
			Provider:        "mcp",
			URL:             "http://localhost:3000",
			ResourcesFolder: "04_resources",
			Timeout:         60 * time.Second,
		},
		Quiz: QuizConfig{
			DefaultQuestions: 3,
			MaxQuestions:     10,
			CacheBackend:     "memory",
			CacheTTL:         24 * time.Hour,
		},
		Sweep: SweepConfig{
			Schedule:       "0 0 20 * * *",
			Concurrency:    4,
			UnreviewedRisk: "low",
		},
		Stats: StatsConfig{WeeklyTargetHours: 5},
		Auth: AuthConfig{
			Subject:  "spark",
			TokenTTL: 7 * 24 * time.Hour,
		},
		Log: LogConfig{Mode: "dev"},
	}
}

// DefaultPath returns ~/.sparkcoach/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".sparkcoach", "config.yaml"), nil
}

// Load builds a Config from defaults, then the YAML file at path (skipped
// when it does not exist), then a .env file, then the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	_ = godotenv.Load()
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Bind, "SPARK_BIND")
	setInt(&cfg.Server.Port, "SPARK_PORT")
	setString(&cfg.Server.URL, "SPARK_URL")
	setString(&cfg.Database.Path, "SPARK_DB_PATH")

	setString(&cfg.LLM.Provider, "SPARK_LLM_PROVIDER")
	setString(&cfg.LLM.Model, "SPARK_LLM_MODEL")
	setString(&cfg.LLM.AnthropicKey, "ANTHROPIC_API_KEY")
	setString(&cfg.LLM.OpenAIKey, "OPENAI_API_KEY")
	setString(&cfg.LLM.OpenAIURL, "OPENAI_BASE_URL")
	setString(&cfg.LLM.GeminiKey, "GEMINI_API_KEY")
	setString(&cfg.LLM.OllamaURL, "OLLAMA_URL")

	setString(&cfg.Vault.Provider, "SPARK_VAULT_PROVIDER")
	setString(&cfg.Vault.URL, "MCP_SERVER_URL")
	setString(&cfg.Vault.APIKey, "MCP_API_KEY")
	setString(&cfg.Vault.Root, "SPARK_VAULT_ROOT")

	setString(&cfg.Quiz.CacheBackend, "SPARK_CACHE_BACKEND")
	setString(&cfg.Quiz.RedisAddr, "REDIS_ADDR")

	setString(&cfg.Sweep.Schedule, "SPARK_SWEEP_SCHEDULE")
	setString(&cfg.Auth.JWTSecret, "SPARK_JWT_SECRET")
	setString(&cfg.Log.Mode, "SPARK_LOG_MODE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Quiz.MaxQuestions < 1 {
		return fmt.Errorf("quiz.max_questions must be at least 1")
	}
	if c.Quiz.DefaultQuestions < 1 || c.Quiz.DefaultQuestions > c.Quiz.MaxQuestions {
		return fmt.Errorf("quiz.default_questions must be in [1, %d]", c.Quiz.MaxQuestions)
	}
	switch c.Quiz.CacheBackend {
	case "memory":
	case "redis":
		if c.Quiz.RedisAddr == "" {
			return fmt.Errorf("quiz.redis_addr is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("unknown quiz.cache_backend %q", c.Quiz.CacheBackend)
	}
	if c.Stats.WeeklyTargetHours <= 0 {
		return fmt.Errorf("stats.weekly_target_hours must be positive")
	}
	switch c.Sweep.UnreviewedRisk {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("sweep.unreviewed_risk must be low, medium or high")
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// ClientURL returns the base URL CLI commands use to reach the server.
func (c *Config) ClientURL() string {
	if c.Server.URL != "" {
		return c.Server.URL
	}
	return fmt.Sprintf("http://%s:%d", c.Server.Bind, c.Server.Port)
}
