package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	// ErrSettingsNotFound is returned when the settings file does not exist
	ErrSettingsNotFound = errors.New("settings file not found")
	// ErrStageNotFound is returned when a stage-keyed settings file has no
	// section for the requested stage
	ErrStageNotFound = errors.New("stage not found in settings")
)

// settingsKeys are the top-level keys of a flat settings document
var settingsKeys = map[string]bool{
	"api_stage":               true,
	"project_name":            true,
	"app_function":            true,
	"exception_handler":       true,
	"framework_settings":      true,
	"django_settings":         true,
	"debug":                   true,
	"log_level":               true,
	"domain":                  true,
	"base_path":               true,
	"binary_support":          true,
	"environment_variables":   true,
	"context_header_mappings": true,
}

// EnvPrefix is the prefix for environment variables overriding settings
const EnvPrefix = "ADAPTER"

// Settings holds the adapter configuration for one deployment stage.
// It is populated once by LoadSettings and treated as read-only afterwards.
type Settings struct {
	Stage       string `mapstructure:"api_stage"`
	ProjectName string `mapstructure:"project_name"`

	// AppFunction locates the application, e.g. "apps.gin_app".
	AppFunction      string `mapstructure:"app_function" validate:"omitempty,locator"`
	ExceptionHandler string `mapstructure:"exception_handler" validate:"omitempty,locator"`

	// FrameworkSettings references a registered framework configuration.
	FrameworkSettings string `mapstructure:"framework_settings"`

	Debug         bool   `mapstructure:"debug"`
	LogLevel      string `mapstructure:"log_level" validate:"omitempty,oneof=TRACE DEBUG INFO WARN WARNING ERROR CRITICAL FATAL PANIC"`
	Domain        string `mapstructure:"domain" validate:"omitempty,hostname_rfc1123"`
	BasePath      string `mapstructure:"base_path" validate:"omitempty,excludesall=?#"`
	BinarySupport bool   `mapstructure:"binary_support"`

	EnvironmentVariables  map[string]string `mapstructure:"-"`
	ContextHeaderMappings map[string]string `mapstructure:"-" validate:"dive,keys,required,endkeys,required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("locator", func(fl validator.FieldLevel) bool {
		return IsValidLocator(fl.Field().String())
	})
	return v
}

// IsValidLocator reports whether s has the "module.attribute" shape.
// The registry applies the same rule to registered names.
func IsValidLocator(s string) bool {
	idx := strings.LastIndex(s, ".")
	return idx > 0 && idx < len(s)-1
}

// DefaultSettings returns the settings used when a key is absent from the file
func DefaultSettings() *Settings {
	return &Settings{
		Debug:                 true,
		LogLevel:              "DEBUG",
		BinarySupport:         true,
		EnvironmentVariables:  map[string]string{},
		ContextHeaderMappings: map[string]string{},
	}
}

// LoadSettings loads the settings file at path. When the file is keyed by
// stage name the section for stage is used. Values can be overridden with
// ADAPTER_* environment variables.
func LoadSettings(path, stage string) (*Settings, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	section := doc
	if isStageKeyed(doc) {
		nested, ok := doc[stage].(map[string]interface{})
		if stage == "" || !ok {
			return nil, fmt.Errorf("%w: %q in %s (available: %s)", ErrStageNotFound, stage, path, strings.Join(stageNames(doc), ", "))
		}
		section = nested
	}

	// django_settings is accepted for settings files written for the Python tooling.
	if legacy, ok := section["django_settings"]; ok {
		if _, set := section["framework_settings"]; !set {
			section["framework_settings"] = legacy
		}
	}

	// MergeConfigMap lowercases keys in place, so case-sensitive maps are read first.
	envVars, err := stringMap(section, "environment_variables")
	if err != nil {
		return nil, err
	}
	headerMappings, err := stringMap(section, "context_header_mappings")
	if err != nil {
		return nil, err
	}

	defaults := DefaultSettings()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetDefault("api_stage", stage)
	v.SetDefault("project_name", "")
	v.SetDefault("app_function", "")
	v.SetDefault("exception_handler", "")
	v.SetDefault("framework_settings", "")
	v.SetDefault("debug", defaults.Debug)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("domain", "")
	v.SetDefault("base_path", "")
	v.SetDefault("binary_support", defaults.BinarySupport)

	if err := v.MergeConfigMap(section); err != nil {
		return nil, fmt.Errorf("failed to merge settings from %s: %w", path, err)
	}

	settings := defaults
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings from %s: %w", path, err)
	}
	settings.EnvironmentVariables = envVars
	settings.ContextHeaderMappings = headerMappings

	settings.LogLevel = strings.ToUpper(settings.LogLevel)
	settings.BasePath = strings.Trim(settings.BasePath, "/")

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return settings, nil
}

// Validate checks the settings for malformed values
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// isStageKeyed reports whether every top-level entry of doc is a mapping
// that is not itself a settings key.
func isStageKeyed(doc map[string]interface{}) bool {
	if len(doc) == 0 {
		return false
	}
	for key, value := range doc {
		if settingsKeys[key] {
			return false
		}
		if _, ok := value.(map[string]interface{}); !ok {
			return false
		}
	}
	return true
}

func stageNames(doc map[string]interface{}) []string {
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func readDocument(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSettingsNotFound, path)
		}
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	doc := map[string]interface{}{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("malformed settings file %s: %w", path, err)
	}

	return doc, nil
}

func stringMap(section map[string]interface{}, key string) (map[string]string, error) {
	out := map[string]string{}
	raw, ok := section[key]
	if !ok || raw == nil {
		return out, nil
	}

	values, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid settings: %s must be a mapping, got %T", key, raw)
	}

	for k, value := range values {
		switch typed := value.(type) {
		case string:
			out[k] = typed
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprint(typed)
		}
	}

	return out, nil
}

// GetEnv gets an environment variable with a fallback value
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// GetEnvAsInt gets an environment variable as integer with a fallback value
func GetEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// GetEnvAsBool gets an environment variable as boolean with a fallback value
func GetEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}
