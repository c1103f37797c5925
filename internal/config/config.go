package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DatabaseConfig 数据库配置
// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `json:"path"`
}

// ProviderConfig 模型服务配置
// ProviderConfig holds chat-completion provider settings
type ProviderConfig struct {
	BaseURL    string `json:"base_url"`
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`
	TimeoutMS  int    `json:"timeout_ms"`
	MaxRetries int    `json:"max_retries"`
}

// AssistantConfig 助手会话配置
// AssistantConfig holds assistant session settings
type AssistantConfig struct {
	// MaxRounds 限制单次请求内工具调用循环的轮数，防止无限循环
	// MaxRounds bounds the tool-call loop per user request
	MaxRounds         int  `json:"max_rounds"`
	IncludeContext    bool `json:"include_context"`
	ContextTokenLimit int  `json:"context_token_limit"`
}

// GradingConfig 成绩录入配置
// GradingConfig holds grading settings
type GradingConfig struct {
	DefaultGrade string `json:"default_grade"`
}

// RosterConfig 花名册配置
// RosterConfig holds roster settings
type RosterConfig struct {
	// IDLength 学号位数，输入路由据此识别学号
	// IDLength is the fixed student-id width the input router matches
	IDLength int `json:"id_length"`
}

type Config struct {
	Database  DatabaseConfig  `json:"database"`
	Provider  ProviderConfig  `json:"provider"`
	Assistant AssistantConfig `json:"assistant"`
	Grading   GradingConfig   `json:"grading"`
	Roster    RosterConfig    `json:"roster"`
}

type fileAssistantConfig struct {
	MaxRounds         *int  `json:"max_rounds"`
	IncludeContext    *bool `json:"include_context"`
	ContextTokenLimit *int  `json:"context_token_limit"`
}

type fileConfig struct {
	Database  *DatabaseConfig      `json:"database"`
	Provider  *ProviderConfig      `json:"provider"`
	Assistant *fileAssistantConfig `json:"assistant"`
	Grading   *GradingConfig       `json:"grading"`
	Roster    *RosterConfig        `json:"roster"`
}

func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Path: "~/.assignflow/student_data.db",
		},
		Provider: ProviderConfig{
			BaseURL:    "https://api.deepseek.com",
			Model:      "deepseek-chat",
			TimeoutMS:  120000,
			MaxRetries: 3,
		},
		Assistant: AssistantConfig{
			MaxRounds:         8,
			IncludeContext:    true,
			ContextTokenLimit: 24000,
		},
		Grading: GradingConfig{
			DefaultGrade: "A",
		},
		Roster: RosterConfig{
			IDLength: 6,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	for _, globalPath := range globalConfigPaths() {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("ASSIGNFLOW_CONFIG_PATH")); envPath != "" {
		resolvedPath = envPath
	}
	if resolvedPath == "" {
		resolvedPath = findProjectConfigPath()
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return applyEnv(cfg)
}

func globalConfigPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(home, ".assignflow", "config.json")}
}

func findProjectConfigPath() string {
	candidates := []string{
		"assignflow.json",
		".assignflow/config.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	cleaned := stripJSONComments(data)
	var fileCfg fileConfig
	if err := json.Unmarshal(cleaned, &fileCfg); err != nil {
		return fmt.Errorf("parse config %q: %w", resolved, err)
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Database != nil {
		if strings.TrimSpace(fc.Database.Path) != "" {
			cfg.Database.Path = fc.Database.Path
		}
	}
	if fc.Provider != nil {
		cfg.Provider = mergeProvider(cfg.Provider, *fc.Provider)
	}
	if fc.Assistant != nil {
		if fc.Assistant.MaxRounds != nil {
			cfg.Assistant.MaxRounds = *fc.Assistant.MaxRounds
		}
		if fc.Assistant.IncludeContext != nil {
			cfg.Assistant.IncludeContext = *fc.Assistant.IncludeContext
		}
		if fc.Assistant.ContextTokenLimit != nil {
			cfg.Assistant.ContextTokenLimit = *fc.Assistant.ContextTokenLimit
		}
	}
	if fc.Grading != nil {
		if strings.TrimSpace(fc.Grading.DefaultGrade) != "" {
			cfg.Grading.DefaultGrade = fc.Grading.DefaultGrade
		}
	}
	if fc.Roster != nil {
		if fc.Roster.IDLength > 0 {
			cfg.Roster.IDLength = fc.Roster.IDLength
		}
	}
}

func mergeProvider(base ProviderConfig, override ProviderConfig) ProviderConfig {
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = override.BaseURL
	}
	if strings.TrimSpace(override.APIKey) != "" {
		base.APIKey = override.APIKey
	}
	if strings.TrimSpace(override.Model) != "" {
		base.Model = override.Model
	}
	if override.TimeoutMS > 0 {
		base.TimeoutMS = override.TimeoutMS
	}
	if override.MaxRetries > 0 {
		base.MaxRetries = override.MaxRetries
	}
	return base
}

func normalize(cfg *Config) error {
	def := Default()
	if strings.TrimSpace(cfg.Database.Path) == "" {
		cfg.Database.Path = def.Database.Path
	}
	dbPath, err := expandPath(cfg.Database.Path)
	if err != nil {
		return err
	}
	cfg.Database.Path = dbPath

	if strings.TrimSpace(cfg.Provider.BaseURL) == "" {
		cfg.Provider.BaseURL = def.Provider.BaseURL
	}
	if strings.TrimSpace(cfg.Provider.Model) == "" {
		cfg.Provider.Model = def.Provider.Model
	}
	if cfg.Provider.TimeoutMS <= 0 {
		cfg.Provider.TimeoutMS = def.Provider.TimeoutMS
	}
	if cfg.Provider.MaxRetries <= 0 {
		cfg.Provider.MaxRetries = def.Provider.MaxRetries
	}

	if cfg.Assistant.MaxRounds <= 0 {
		cfg.Assistant.MaxRounds = def.Assistant.MaxRounds
	}
	if cfg.Assistant.ContextTokenLimit <= 0 {
		cfg.Assistant.ContextTokenLimit = def.Assistant.ContextTokenLimit
	}

	if strings.TrimSpace(cfg.Grading.DefaultGrade) == "" {
		cfg.Grading.DefaultGrade = def.Grading.DefaultGrade
	}
	if cfg.Roster.IDLength <= 0 {
		cfg.Roster.IDLength = def.Roster.IDLength
	}
	return nil
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("ASSIGNFLOW_BASE_URL")); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ASSIGNFLOW_MODEL")); v != "" {
		cfg.Provider.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("ASSIGNFLOW_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	} else if v := strings.TrimSpace(os.Getenv("DEEPSEEK_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ASSIGNFLOW_DB_PATH")); v != "" {
		cfg.Database.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("ASSIGNFLOW_MAX_ROUNDS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid ASSIGNFLOW_MAX_ROUNDS: %q", v)
		}
		cfg.Assistant.MaxRounds = n
	}
	return cfg, normalize(&cfg)
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}

func stripJSONComments(data []byte) []byte {
	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	out := bytes.Buffer{}

	for i := 0; i < len(data); i++ {
		c := data[i]
		next := byte(0)
		if i+1 < len(data) {
			next = data[i+1]
		}

		switch state {
		case stateNormal:
			if c == '"' {
				state = stateString
				out.WriteByte(c)
				continue
			}
			if c == '/' && next == '/' {
				state = stateLineComment
				i++
				continue
			}
			if c == '/' && next == '*' {
				state = stateBlockComment
				i++
				continue
			}
			out.WriteByte(c)
		case stateString:
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				out.WriteByte(c)
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return out.Bytes()
}
