package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const configPathEnv = "COACH_CONFIG"

// Config holds application configuration.
type Config struct {
	Port                   string   `yaml:"port"`
	Env                    string   `yaml:"env"`
	DatabaseURL            string   `yaml:"databaseUrl"`
	CORSAllowOrigin        []string `yaml:"corsAllowOrigins"`
	OpenAIAPIKey           string   `yaml:"openaiApiKey"`
	OpenAIModel            string   `yaml:"openaiModel"`
	GeminiAPIKey           string   `yaml:"geminiApiKey"`
	GeminiModel            string   `yaml:"geminiModel"`
	PreferredProvider      string   `yaml:"preferredProvider"`
	ProviderTimeoutSeconds int      `yaml:"providerTimeoutSeconds"`
	ObjectStoreType        string   `yaml:"objectStore"`
	LocalStoreDir          string   `yaml:"localStoreDir"`
	AWSRegion              string   `yaml:"awsRegion"`
	S3Bucket               string   `yaml:"s3Bucket"`
	S3Prefix               string   `yaml:"s3Prefix"`
	SSEKMSKeyID            string   `yaml:"sseKmsKeyId"`
	DataAPIURL             string   `yaml:"dataApiUrl"`
	DataAPIKey             string   `yaml:"dataApiKey"`
	SyncQueueURL           string   `yaml:"syncQueueUrl"`
}

// Load reads defaults, then the YAML file named by COACH_CONFIG (if any), then
// environment overrides.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	cfg := defaultConfig()
	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (using defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (using defaults)", path, err)
			} else {
				cfg = merge(cfg, fileCfg)
			}
		}
	}
	cfg.applyEnvOverrides()

	cfg.Env = normalizeEnv(cfg.Env)
	cfg.ObjectStoreType = normalizeStoreType(cfg.ObjectStoreType)
	cfg.PreferredProvider = normalizeProvider(cfg.PreferredProvider)
	if cfg.ProviderTimeoutSeconds <= 0 {
		cfg.ProviderTimeoutSeconds = 120
	}
	if cfg.Env == "production" && cfg.DatabaseURL == "" && cfg.DataAPIURL == "" {
		log.Printf("DATABASE_URL or DATA_API_URL is required in production")
	}
	return cfg
}

func defaultConfig() Config {
	return Config{
		Port:                   "8080",
		Env:                    "dev",
		CORSAllowOrigin:        []string{"http://localhost:5173"},
		OpenAIModel:            "gpt-4o",
		GeminiModel:            "gemini-1.5-pro",
		PreferredProvider:      "openai",
		ProviderTimeoutSeconds: 120,
		ObjectStoreType:        "local",
		LocalStoreDir:          "./data",
	}
}

func merge(base, file Config) Config {
	setString(&base.Port, file.Port)
	setString(&base.Env, file.Env)
	setString(&base.DatabaseURL, file.DatabaseURL)
	if len(file.CORSAllowOrigin) > 0 {
		base.CORSAllowOrigin = file.CORSAllowOrigin
	}
	setString(&base.OpenAIAPIKey, file.OpenAIAPIKey)
	setString(&base.OpenAIModel, file.OpenAIModel)
	setString(&base.GeminiAPIKey, file.GeminiAPIKey)
	setString(&base.GeminiModel, file.GeminiModel)
	setString(&base.PreferredProvider, file.PreferredProvider)
	if file.ProviderTimeoutSeconds > 0 {
		base.ProviderTimeoutSeconds = file.ProviderTimeoutSeconds
	}
	setString(&base.ObjectStoreType, file.ObjectStoreType)
	setString(&base.LocalStoreDir, file.LocalStoreDir)
	setString(&base.AWSRegion, file.AWSRegion)
	setString(&base.S3Bucket, file.S3Bucket)
	setString(&base.S3Prefix, file.S3Prefix)
	setString(&base.SSEKMSKeyID, file.SSEKMSKeyID)
	setString(&base.DataAPIURL, file.DataAPIURL)
	setString(&base.DataAPIKey, file.DataAPIKey)
	setString(&base.SyncQueueURL, file.SyncQueueURL)
	return base
}

func (c *Config) applyEnvOverrides() {
	c.Port = getEnv("PORT", c.Port)
	c.Env = getEnv("ENV", c.Env)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	if raw := os.Getenv("CORS_ALLOW_ORIGINS"); raw != "" {
		c.CORSAllowOrigin = splitAndTrim(raw)
	}
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIModel = getEnv("OPENAI_MODEL", c.OpenAIModel)
	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = getEnv("GEMINI_MODEL", c.GeminiModel)
	c.PreferredProvider = getEnv("PREFERRED_PROVIDER", c.PreferredProvider)
	if raw := strings.TrimSpace(os.Getenv("PROVIDER_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			c.ProviderTimeoutSeconds = parsed
		}
	}
	c.ObjectStoreType = getEnv("OBJECT_STORE", c.ObjectStoreType)
	c.LocalStoreDir = getEnv("LOCAL_STORE_DIR", c.LocalStoreDir)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.S3Bucket = getEnv("S3_BUCKET", c.S3Bucket)
	c.S3Prefix = getEnv("S3_PREFIX", c.S3Prefix)
	c.SSEKMSKeyID = getEnv("SSE_KMS_KEY_ID", c.SSEKMSKeyID)
	c.DataAPIURL = getEnv("DATA_API_URL", c.DataAPIURL)
	c.DataAPIKey = getEnv("DATA_API_KEY", c.DataAPIKey)
	c.SyncQueueURL = getEnv("SYNC_QUEUE_URL", c.SyncQueueURL)
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gemini", "google":
		return "gemini"
	default:
		return "openai"
	}
}
