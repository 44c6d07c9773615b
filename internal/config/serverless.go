package config

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultSettingsFile is the settings file looked up next to the function binary
const DefaultSettingsFile = "adapter_settings.json"

// ServerlessConfig holds serverless-specific configuration
type ServerlessConfig struct {
	IsLambda     bool
	FunctionName string
	Region       string
	Stage        string
	SettingsFile string
}

// Global serverless configuration
var (
	serverlessConfig *ServerlessConfig
	serverlessOnce   sync.Once
)

// GetServerlessConfig returns the serverless configuration
func GetServerlessConfig() *ServerlessConfig {
	serverlessOnce.Do(func() {
		serverlessConfig = &ServerlessConfig{
			IsLambda:     isRunningInLambda(),
			FunctionName: os.Getenv("AWS_LAMBDA_FUNCTION_NAME"),
			Region:       os.Getenv("AWS_REGION"),
			Stage:        GetEnv("STAGE", ""),
			SettingsFile: GetEnv(EnvPrefix+"_SETTINGS_FILE", DefaultSettingsFile),
		}
	})
	return serverlessConfig
}

// isRunningInLambda detects if the application is running in AWS Lambda
func isRunningInLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// IsServerlessMode returns true if running in serverless mode
func IsServerlessMode() bool {
	return GetServerlessConfig().IsLambda
}

// GetDeploymentMode returns the current deployment mode
func GetDeploymentMode() string {
	if IsServerlessMode() {
		return "serverless"
	}
	return "server"
}

// LoadFromEnvironment loads the settings file named by the environment
func LoadFromEnvironment() (*Settings, error) {
	sc := GetServerlessConfig()
	return LoadSettings(sc.SettingsFile, sc.Stage)
}

// LogFormatter returns the logrus formatter for the current deployment mode.
// CloudWatch ingests one JSON object per line; local runs get readable text.
func LogFormatter() logrus.Formatter {
	if IsServerlessMode() {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{FullTimestamp: true}
}

// ParseLogLevel maps a settings log level name to a logrus level
func ParseLogLevel(name string) (logrus.Level, error) {
	switch name {
	case "":
		return logrus.InfoLevel, nil
	case "CRITICAL":
		return logrus.FatalLevel, nil
	default:
		return logrus.ParseLevel(name)
	}
}
