// Package config loads sidekick's TOML configuration and layers environment
// overrides on top of it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"sidekick/internal/appctx"
	"sidekick/internal/llm"
)

const Version = "0.1.0"

type Config struct {
	DBPath   string `toml:"db_path"`
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`

	LLM       LLMConfig       `toml:"llm"`
	Assistant AssistantConfig `toml:"assistant"`
	Context   ContextConfig   `toml:"context"`

	// Resolved at runtime (not in TOML).
	BaseDir string `toml:"-"`
	Path    string `toml:"-"`
}

type LLMConfig struct {
	Provider   string         `toml:"provider"`
	TimeoutSec int            `toml:"timeout_sec"`
	Unsafe     bool           `toml:"unsafe"`
	Codex      ProviderConfig `toml:"codex"`
	Gemini     ProviderConfig `toml:"gemini"`
}

type ProviderConfig struct {
	Path      string `toml:"path"`
	ExtraArgs string `toml:"extra_args"`
}

type AssistantConfig struct {
	Tools            bool `toml:"tools"`
	IncludeDataset   bool `toml:"include_dataset"`
	IncludeLastError bool `toml:"include_last_error"`
	IncludeScript    bool `toml:"include_script"`
	Workers          int  `toml:"workers"`
}

// ContextConfig names the files the host application keeps its state in.
type ContextConfig struct {
	Dataset         string `toml:"dataset"`
	LastError       string `toml:"last_error"`
	Script          string `toml:"script"`
	ScriptSelection string `toml:"script_selection"`
	CommandLog      string `toml:"command_log"`
	ModelSimple     string `toml:"model_simple"`
	ModelFull       string `toml:"model_full"`
}

// Locate picks the config file: the explicit path if given, else
// ./sidekick.toml, else the per-user config. It returns "" when none exists.
func Locate(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config %s: %w", explicit, err)
		}
		return explicit, nil
	}
	if _, err := os.Stat(LocalConfigName); err == nil {
		return LocalConfigName, nil
	}
	global, err := GlobalConfigPath()
	if err != nil {
		return "", nil
	}
	if _, err := os.Stat(global); err == nil {
		return global, nil
	}
	return "", nil
}

// LoadDefault locates and loads the config. With no config file anywhere it
// returns the defaults plus environment overrides.
func LoadDefault(explicit string) (*Config, error) {
	path, err := Locate(explicit)
	if err != nil {
		return nil, err
	}
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working dir: %w", err)
		}
		return finish(&Config{BaseDir: wd}, toml.MetaData{})
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	cfg := &Config{}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		slog.Warn("unknown config keys ignored", "path", path, "keys", fmt.Sprint(undecoded))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	cfg.Path = abs
	cfg.BaseDir = filepath.Dir(abs)
	return finish(cfg, md)
}

func finish(cfg *Config, md toml.MetaData) (*Config, error) {
	applyDefaults(cfg, md)
	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	resolvePaths(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config, md toml.MetaData) {
	if cfg.DBPath == "" {
		if d, err := DataDir(); err == nil {
			cfg.DBPath = filepath.Join(d, "sidekick.db")
		} else {
			cfg.DBPath = "sidekick.db"
		}
	}
	if cfg.LogFile == "" {
		if d, err := StateDir(); err == nil {
			cfg.LogFile = filepath.Join(d, "sidekick.log")
		} else {
			cfg.LogFile = "sidekick.log"
		}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "codex"
	}
	if cfg.LLM.TimeoutSec == 0 {
		cfg.LLM.TimeoutSec = int(llm.DefaultTimeout / time.Second)
	}
	// Booleans default to on only when the file leaves them unset.
	if !md.IsDefined("assistant", "tools") {
		cfg.Assistant.Tools = true
	}
	if !md.IsDefined("assistant", "include_last_error") {
		cfg.Assistant.IncludeLastError = true
	}
	if cfg.Assistant.Workers == 0 {
		cfg.Assistant.Workers = 1
	}
}

// applyEnv layers environment variables over file values. Env wins.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(llm.EnvProvider)); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv(llm.EnvTimeoutSec); v != "" {
		if d, ok := llm.ParseTimeoutSec(v); ok {
			cfg.LLM.TimeoutSec = int(d / time.Second)
		} else {
			slog.Warn("ignoring invalid timeout override", "var", llm.EnvTimeoutSec, "value", v)
		}
	}
	for _, name := range []string{llm.EnvUnsafe, llm.EnvCodexDangerous} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" && v != "0" {
			cfg.LLM.Unsafe = true
		}
	}
	if v := os.Getenv(llm.EnvCodexBin); v != "" {
		cfg.LLM.Codex.Path = v
	}
	if v := os.Getenv(llm.EnvGeminiBin); v != "" {
		cfg.LLM.Gemini.Path = v
	}
}

func validate(cfg *Config) error {
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if _, err := llm.ParseProvider(cfg.LLM.Provider); err != nil {
		return fmt.Errorf("unsupported llm.provider: %q (must be codex or gemini)", cfg.LLM.Provider)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log_level: %q", cfg.LogLevel)
	}
	if cfg.LLM.TimeoutSec <= 0 || time.Duration(cfg.LLM.TimeoutSec)*time.Second > llm.MaxTimeout {
		return fmt.Errorf("invalid llm.timeout_sec %d (must be 1-%d)", cfg.LLM.TimeoutSec, int(llm.MaxTimeout/time.Second))
	}
	if cfg.Assistant.Workers < 1 {
		return fmt.Errorf("invalid assistant.workers %d (must be at least 1)", cfg.Assistant.Workers)
	}
	if _, err := llm.SplitArgs(cfg.LLM.Codex.ExtraArgs); err != nil {
		return fmt.Errorf("llm.codex: %w", err)
	}
	if _, err := llm.SplitArgs(cfg.LLM.Gemini.ExtraArgs); err != nil {
		return fmt.Errorf("llm.gemini: %w", err)
	}
	if _, err := appctx.ParseLineRange(cfg.Context.ScriptSelection); err != nil {
		return fmt.Errorf("context.script_selection: %w", err)
	}
	return nil
}

func resolvePaths(cfg *Config) {
	cfg.DBPath = absPath(cfg.BaseDir, cfg.DBPath)
	cfg.LogFile = absPath(cfg.BaseDir, cfg.LogFile)
	for _, p := range []*string{
		&cfg.Context.Dataset,
		&cfg.Context.LastError,
		&cfg.Context.Script,
		&cfg.Context.CommandLog,
		&cfg.Context.ModelSimple,
		&cfg.Context.ModelFull,
	} {
		if *p != "" {
			*p = absPath(cfg.BaseDir, *p)
		}
	}
	// Executable paths are left alone unless they look like paths, so that
	// a bare name still goes through PATH lookup.
	for _, p := range []*string{&cfg.LLM.Codex.Path, &cfg.LLM.Gemini.Path} {
		if strings.ContainsRune(*p, filepath.Separator) || strings.HasPrefix(*p, ".") {
			*p = absPath(cfg.BaseDir, *p)
		}
	}
}

func absPath(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func (cfg *Config) SlogLevel() slog.Level {
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultProvider returns the validated llm.provider. "none" selects codex.
func (cfg *Config) DefaultProvider() llm.Provider {
	p, _ := llm.ParseProvider(cfg.LLM.Provider)
	if p == llm.ProviderNone {
		return llm.ProviderCodex
	}
	return p
}

// InvokerOptions converts the [llm] section for llm.NewInvoker.
func (cfg *Config) InvokerOptions() llm.Options {
	codexArgs, _ := llm.SplitArgs(cfg.LLM.Codex.ExtraArgs)
	geminiArgs, _ := llm.SplitArgs(cfg.LLM.Gemini.ExtraArgs)
	return llm.Options{
		Paths: map[llm.Provider]string{
			llm.ProviderCodex:  cfg.LLM.Codex.Path,
			llm.ProviderGemini: cfg.LLM.Gemini.Path,
		},
		ExtraArgs: map[llm.Provider][]string{
			llm.ProviderCodex:  codexArgs,
			llm.ProviderGemini: geminiArgs,
		},
		Timeout: time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		Unsafe:  cfg.LLM.Unsafe,
		Default: cfg.DefaultProvider(),
	}
}

// ContextSource builds the file-backed snapshot source from [context].
func (cfg *Config) ContextSource() *appctx.FileSource {
	sel, _ := appctx.ParseLineRange(cfg.Context.ScriptSelection)
	return &appctx.FileSource{
		Paths: appctx.Paths{
			Dataset:     cfg.Context.Dataset,
			LastError:   cfg.Context.LastError,
			Script:      cfg.Context.Script,
			CommandLog:  cfg.Context.CommandLog,
			ModelSimple: cfg.Context.ModelSimple,
			ModelFull:   cfg.Context.ModelFull,
		},
		Selection: sel,
	}
}

// WriteTemplate writes a starter config to path. It refuses to overwrite an
// existing file.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmpl := Config{
		LogLevel: "info",
		LLM: LLMConfig{
			Provider:   "codex",
			TimeoutSec: int(llm.DefaultTimeout / time.Second),
		},
		Assistant: AssistantConfig{Tools: true, IncludeLastError: true, Workers: 1},
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(tmpl); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), fs.FileMode(0o644)); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Encode renders cfg as TOML, for `sk config show`.
func (cfg *Config) Encode() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return buf.String(), nil
}
