package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// 支持的后端名称
const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
	BackendClaude = "claude"
	BackendOllama = "ollama"
)

var knownBackends = map[string]bool{
	BackendGemini: true,
	BackendOpenAI: true,
	BackendClaude: true,
	BackendOllama: true,
}

type Config struct {
	Port         int    `env:"INSIGHTS_PORT" envDefault:"8080"`
	LogLevel     string `env:"INSIGHTS_LOG_LEVEL" envDefault:"info"`
	LogFile      string `env:"INSIGHTS_LOG_FILE"`
	DBPath       string `env:"INSIGHTS_DB_PATH" envDefault:"insights.db"`
	GatewayToken string `env:"INSIGHTS_GATEWAY_TOKEN"`
	SecretKey    string `env:"INSIGHTS_SECRET_KEY"`

	// 按优先级排列的后端链
	Backends []string `env:"INSIGHTS_BACKENDS" envSeparator:"," envDefault:"gemini,ollama"`

	GeminiURL     string   `env:"GEMINI_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"`
	GeminiAPIKeys []string `env:"GEMINI_API_KEYS" envSeparator:","`

	OpenAIURL     string   `env:"OPENAI_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel   string   `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIAPIKeys []string `env:"OPENAI_API_KEYS" envSeparator:","`

	ClaudeURL       string   `env:"CLAUDE_URL" envDefault:"https://api.anthropic.com"`
	ClaudeModel     string   `env:"CLAUDE_MODEL" envDefault:"claude-3-5-haiku-latest"`
	ClaudeMaxTokens int      `env:"CLAUDE_MAX_TOKENS" envDefault:"4096"`
	ClaudeAPIKeys   []string `env:"CLAUDE_API_KEYS" envSeparator:","`

	OllamaURL   string `env:"OLLAMA_URL" envDefault:"http://localhost:11434/api/generate"`
	OllamaModel string `env:"OLLAMA_MODEL" envDefault:"gemma3"`

	ConnectTimeout        time.Duration `env:"INSIGHTS_CONNECT_TIMEOUT" envDefault:"200s"`
	ReadTimeoutMultiplier int           `env:"INSIGHTS_READ_TIMEOUT_MULTIPLIER" envDefault:"6"`

	Workers       int           `env:"INSIGHTS_WORKERS" envDefault:"10"`
	QueueCapacity int           `env:"INSIGHTS_QUEUE_CAPACITY" envDefault:"50"`
	Deadline      time.Duration `env:"INSIGHTS_DEADLINE" envDefault:"0s"`
	TimeoutText   string        `env:"INSIGHTS_TIMEOUT_TEXT" envDefault:"The request took too long to complete. Please try again."`

	RateLimitRPS   float64 `env:"INSIGHTS_RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int     `env:"INSIGHTS_RATE_LIMIT_BURST" envDefault:"20"`
}

// Load 读取 .env (可选) 和环境变量并校验
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Backends = cleanList(c.Backends, true)
	c.GeminiAPIKeys = cleanList(c.GeminiAPIKeys, false)
	c.OpenAIAPIKeys = cleanList(c.OpenAIAPIKeys, false)
	c.ClaudeAPIKeys = cleanList(c.ClaudeAPIKeys, false)
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("INSIGHTS_PORT must be between 1 and 65535")
	}

	if len(c.Backends) == 0 {
		return fmt.Errorf("INSIGHTS_BACKENDS must name at least one backend")
	}
	seen := make(map[string]bool, len(c.Backends))
	for _, name := range c.Backends {
		if !knownBackends[name] {
			return fmt.Errorf("INSIGHTS_BACKENDS: unknown backend %q", name)
		}
		if seen[name] {
			return fmt.Errorf("INSIGHTS_BACKENDS: backend %q listed twice", name)
		}
		seen[name] = true
	}

	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("INSIGHTS_CONNECT_TIMEOUT must be positive")
	}
	if c.ReadTimeoutMultiplier < 1 {
		return fmt.Errorf("INSIGHTS_READ_TIMEOUT_MULTIPLIER must be at least 1")
	}

	if c.Workers < 1 {
		return fmt.Errorf("INSIGHTS_WORKERS must be at least 1")
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("INSIGHTS_QUEUE_CAPACITY must be at least 1")
	}
	if c.Deadline < 0 {
		return fmt.Errorf("INSIGHTS_DEADLINE cannot be negative")
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("INSIGHTS_RATE_LIMIT_RPS and INSIGHTS_RATE_LIMIT_BURST must be positive")
	}

	switch len(c.SecretKey) {
	case 0, 16, 24, 32:
	default:
		return fmt.Errorf("INSIGHTS_SECRET_KEY must be 16, 24 or 32 bytes")
	}

	return nil
}

// BackendKeys 返回环境中配置的后端凭证 (可能为空，由注册表回退到数据库)
func (c *Config) BackendKeys(backend string) []string {
	switch backend {
	case BackendGemini:
		return c.GeminiAPIKeys
	case BackendOpenAI:
		return c.OpenAIAPIKeys
	case BackendClaude:
		return c.ClaudeAPIKeys
	default:
		return nil
	}
}

// BackendURL 返回后端地址
func (c *Config) BackendURL(backend string) string {
	switch backend {
	case BackendGemini:
		return c.GeminiURL
	case BackendOpenAI:
		return c.OpenAIURL
	case BackendClaude:
		return c.ClaudeURL
	case BackendOllama:
		return c.OllamaURL
	default:
		return ""
	}
}

// ResponseTimeout 单次请求的响应超时，云端后端按倍数放宽
func (c *Config) ResponseTimeout(backend string) time.Duration {
	if backend == BackendOllama {
		return c.ConnectTimeout
	}
	return c.ConnectTimeout * time.Duration(c.ReadTimeoutMultiplier)
}

func cleanList(items []string, lower bool) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if lower {
			item = strings.ToLower(item)
		}
		out = append(out, item)
	}
	return out
}
