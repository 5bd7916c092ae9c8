package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ai_art_description/access"
	"ai_art_description/generator"
)

// ContextKey is the prompts entry holding the context template.
const ContextKey = "context"

const (
	defaultModel       = "gpt-4o-mini"
	defaultMaxTokens   = 1000
	defaultTimeoutSecs = 120
	defaultImageDetail = "high"
	defaultPostType    = "product"
	defaultTaxonomy    = "product_cat"
	defaultServerAddr  = ":8080"
	defaultWorkers     = 4
	defaultMaxAttempts = 3
)

// Config holds everything the service needs. It is loaded once and passed
// into constructors; nothing reads it from ambient state afterwards.
type Config struct {
	OpenAI           OpenAIConfig      `json:"openai"`
	WordPress        WordPressConfig   `json:"wordpress"`
	Prompts          map[string]string `json:"prompts,omitempty"`
	FallbackCategory string            `json:"fallback_category,omitempty"`
	RequireCategory  bool              `json:"require_category,omitempty"`
	Access           AccessConfig      `json:"access"`
	RawResponseKey   string            `json:"raw_response_key,omitempty"`
	ServerAddr       string            `json:"server_addr,omitempty"`
	RedisURL         string            `json:"redis_url,omitempty"`
	Workers          int               `json:"workers,omitempty"`
	MaxAttempts      int               `json:"max_attempts,omitempty"`
	LogLevel         string            `json:"log_level,omitempty"`
}

// OpenAIConfig is the model provider configuration.
type OpenAIConfig struct {
	APIKey         string `json:"api_key,omitempty"`
	Model          string `json:"model,omitempty"`
	BaseURL        string `json:"base_url,omitempty"`
	MaxTokens      int    `json:"max_tokens,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	ImageDetail    string `json:"image_detail,omitempty"`
}

// WordPressConfig points at the shop's REST API. AppPassword is a WordPress
// application password for Username.
type WordPressConfig struct {
	BaseURL          string `json:"base_url,omitempty"`
	Username         string `json:"username,omitempty"`
	AppPassword      string `json:"app_password,omitempty"`
	PostType         string `json:"post_type,omitempty"`
	CategoryTaxonomy string `json:"category_taxonomy,omitempty"`
}

// AccessConfig lists the caller roles or capabilities allowed to generate, and
// the author roles that allow generation for an item.
type AccessConfig struct {
	AllowedGrants []string `json:"allowed_grants,omitempty"`
	AuthorRoles   []string `json:"author_roles,omitempty"`
}

// Load reads the JSON config at path (skipped when path is empty or the file
// does not exist), applies .env and environment overrides, then defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, err
		}
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.OpenAI.APIKey = firstNonEmpty(env("OPENAI_API_KEY"), c.OpenAI.APIKey)
	c.OpenAI.Model = firstNonEmpty(env("OPENAI_MODEL"), c.OpenAI.Model)
	c.OpenAI.BaseURL = firstNonEmpty(env("OPENAI_BASE_URL"), c.OpenAI.BaseURL)
	c.WordPress.BaseURL = firstNonEmpty(env("WP_BASE_URL"), c.WordPress.BaseURL)
	c.WordPress.Username = firstNonEmpty(env("WP_USERNAME"), c.WordPress.Username)
	c.WordPress.AppPassword = firstNonEmpty(env("WP_APP_PASSWORD"), c.WordPress.AppPassword)
	c.RedisURL = firstNonEmpty(env("REDIS_URL"), c.RedisURL)
	c.ServerAddr = firstNonEmpty(env("SERVER_ADDR"), c.ServerAddr)
	c.LogLevel = firstNonEmpty(env("LOG_LEVEL"), c.LogLevel)

	if raw := env("OPENAI_MAX_TOKENS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("OPENAI_MAX_TOKENS: %w", err)
		}
		c.OpenAI.MaxTokens = n
	}
	if raw := env("OPENAI_TIMEOUT_SECONDS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("OPENAI_TIMEOUT_SECONDS: %w", err)
		}
		c.OpenAI.TimeoutSeconds = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.OpenAI.Model = firstNonEmpty(c.OpenAI.Model, defaultModel)
	c.OpenAI.ImageDetail = firstNonEmpty(c.OpenAI.ImageDetail, defaultImageDetail)
	if c.OpenAI.MaxTokens <= 0 {
		c.OpenAI.MaxTokens = defaultMaxTokens
	}
	if c.OpenAI.TimeoutSeconds <= 0 {
		c.OpenAI.TimeoutSeconds = defaultTimeoutSecs
	}
	c.WordPress.BaseURL = strings.TrimRight(c.WordPress.BaseURL, "/")
	c.WordPress.PostType = firstNonEmpty(c.WordPress.PostType, defaultPostType)
	c.WordPress.CategoryTaxonomy = firstNonEmpty(c.WordPress.CategoryTaxonomy, defaultTaxonomy)
	c.FallbackCategory = firstNonEmpty(c.FallbackCategory, generator.DefaultFallbackCategory)
	c.RawResponseKey = firstNonEmpty(c.RawResponseKey, generator.DefaultRawResponseKey)
	c.ServerAddr = firstNonEmpty(c.ServerAddr, defaultServerAddr)
	if len(c.Access.AllowedGrants) == 0 {
		c.Access.AllowedGrants = access.DefaultPolicy().Allowed
	}
	if len(c.Access.AuthorRoles) == 0 {
		c.Access.AuthorRoles = access.DefaultPolicy().AuthorRoles
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
}

// Validate reports settings without which the WordPress store cannot work.
func (c Config) Validate() error {
	var missing []string
	if c.WordPress.BaseURL == "" {
		missing = append(missing, "wordpress.base_url")
	}
	if c.WordPress.Username == "" {
		missing = append(missing, "wordpress.username")
	}
	if c.WordPress.AppPassword == "" {
		missing = append(missing, "wordpress.app_password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Timeout is the per-call provider timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.OpenAI.TimeoutSeconds) * time.Second
}

// Templates converts the prompts map into generator templates.
func (c Config) Templates() generator.Templates {
	t := generator.Templates{Fields: make(map[string]string, len(c.Prompts))}
	for k, v := range c.Prompts {
		if k == ContextKey {
			t.Context = v
			continue
		}
		t.Fields[k] = v
	}
	return t
}

// Policy builds the access policy.
func (c Config) Policy() access.Policy {
	return access.Policy{Allowed: c.Access.AllowedGrants, AuthorRoles: c.Access.AuthorRoles}
}

// LLMSettings returns the model client settings.
func (c Config) LLMSettings() generator.LLMSettings {
	return generator.LLMSettings{
		APIKey:  c.OpenAI.APIKey,
		BaseURL: c.OpenAI.BaseURL,
		Timeout: c.Timeout(),
	}
}

// AgentOptions returns the generator agent options.
func (c Config) AgentOptions() generator.AgentOptions {
	return generator.AgentOptions{
		Fields:    generator.DefaultFields(),
		Templates: c.Templates(),
		Compose: generator.ComposeOptions{
			Model:       c.OpenAI.Model,
			MaxTokens:   c.OpenAI.MaxTokens,
			ImageDetail: c.OpenAI.ImageDetail,
			SchemaName:  generator.DefaultSchemaName,
		},
		FallbackCategory: c.FallbackCategory,
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
