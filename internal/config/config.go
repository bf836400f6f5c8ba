// Package config assembles run settings of both tools from env (.env) and flags
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	wbfconfig "github.com/wb-go/wbf/config"
)

// Env keys
const (
	EnvInputRoot  = "EXTRACT_INPUT_ROOT"
	EnvOutputRoot = "EXTRACT_OUTPUT_ROOT"
	EnvExtension  = "EXTRACT_EXTENSION"
	EnvLogLevel   = "LOG_LEVEL"
)

// DefaultEnvFile - читается, только если существует
const DefaultEnvFile = "./.env"

// Getter is the part of wbf config used here.
type Getter interface {
	GetString(key string) string
}

// ExtractConfig - настройки экстрактора
type ExtractConfig struct {
	InputRoot  string
	OutputRoot string
	Extension  string // with leading dot, lower-case
	LogLevel   string
}

func DefaultExtractConfig() ExtractConfig {
	return ExtractConfig{
		InputRoot:  "user/default/workflows",
		OutputRoot: "extracted",
		Extension:  ".png",
		LogLevel:   "info",
	}
}

// SanitizeConfig - настройки санитайзера, заполняются флагами cobra
type SanitizeConfig struct {
	Input     string
	Output    string
	Preserve  bool
	Recursive bool
	Verbose   bool
	Exclude   []string
	LogLevel  string
}

func DefaultSanitizeConfig() SanitizeConfig {
	return SanitizeConfig{
		Preserve:  true,
		Recursive: true,
		LogLevel:  "info",
	}
}

// Load reads env (and envFile when it exists) through wbf config.
func Load(envFile string) (*wbfconfig.Config, error) {
	cfg := wbfconfig.New()
	cfg.EnableEnv("")

	if envFile == "" {
		return cfg, nil
	}
	if _, err := os.Stat(envFile); err != nil {
		return cfg, nil
	}
	if err := cfg.LoadEnvFiles(envFile); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return cfg, nil
}

// ExtractFrom overlays non-empty values of g on the defaults.
func ExtractFrom(g Getter) (ExtractConfig, error) {
	c := DefaultExtractConfig()
	override(&c.InputRoot, g, EnvInputRoot)
	override(&c.OutputRoot, g, EnvOutputRoot)
	override(&c.Extension, g, EnvExtension)
	override(&c.LogLevel, g, EnvLogLevel)

	if err := c.Validate(); err != nil {
		return ExtractConfig{}, err
	}
	return c, nil
}

// SanitizeFrom returns sanitizer defaults with the log level taken from g.
func SanitizeFrom(g Getter) SanitizeConfig {
	c := DefaultSanitizeConfig()
	override(&c.LogLevel, g, EnvLogLevel)
	return c
}

func override(dst *string, g Getter, key string) {
	if v := strings.TrimSpace(g.GetString(key)); v != "" {
		*dst = v
	}
}

// Validate normalises the extension and checks required fields.
func (c *ExtractConfig) Validate() error {
	if c.InputRoot == "" || c.OutputRoot == "" {
		return errors.New("input and output roots must be set")
	}

	ext, err := NormalizeExtension(c.Extension)
	if err != nil {
		return err
	}
	c.Extension = ext

	return validateLevel(c.LogLevel)
}

// Validate requires an input path, drops blank exclude patterns and checks the log level.
func (c *SanitizeConfig) Validate() error {
	if c.Input == "" {
		return errors.New("input path is required")
	}

	exclude := c.Exclude[:0]
	for _, p := range c.Exclude {
		if p = strings.TrimSpace(p); p != "" {
			exclude = append(exclude, p)
		}
	}
	c.Exclude = exclude

	return validateLevel(c.LogLevel)
}

// EffectiveLogLevel - при -v всегда debug
func (c SanitizeConfig) EffectiveLogLevel() string {
	if c.Verbose {
		return zerolog.DebugLevel.String()
	}
	return c.LogLevel
}

// NormalizeExtension turns "PNG", "png" or ".Png" into ".png".
func NormalizeExtension(ext string) (string, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return "", errors.New("extension must not be empty")
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext, nil
}

func validateLevel(level string) error {
	if _, err := zerolog.ParseLevel(level); err != nil || level == "" {
		return fmt.Errorf("invalid log level %q", level)
	}
	return nil
}
