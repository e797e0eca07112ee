package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Officer      OfficerConfig
	Certificates CertificateConfig
	Provider     ProviderConfig
	Storage      StorageConfig
	AI           AIConfig
	Mail         MailConfig
	Timeouts     TimeoutConfig
	Cache        CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// OfficerConfig holds the single shared dashboard credential.
type OfficerConfig struct {
	Email        string
	Name         string
	PasswordHash string
}

// CertificateConfig governs certificate numbering and the verification link.
type CertificateConfig struct {
	Prefix              string
	Strategy            string
	MaxMintAttempts     int
	VerifyBaseURL       string
	Timezone            string
	DefaultValidityDays int
	MaxValidityDays     int
}

// ProviderConfig is printed on the certificate masthead and signature block.
type ProviderConfig struct {
	Name       string
	Address    string
	Contact    string
	City       string
	SignerName string
}

// StorageConfig controls where rendered documents live and how download links are signed.
type StorageConfig struct {
	Dir             string
	PublicBaseURL   string
	DownloadBaseURL string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// AIConfig configures the chat-completion API used to draft clinical notes.
type AIConfig struct {
	Enabled     bool
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// MailConfig configures approval notifications.
type MailConfig struct {
	SendGridAPIKey string
	SendGridHost   string
	FromAddress    string
	FromName       string
}

// TimeoutConfig bounds each external call made by the approval workflow.
type TimeoutConfig struct {
	Render time.Duration
	Upload time.Duration
	Notify time.Duration
}

// CacheConfig governs the verification cache.
type CacheConfig struct {
	Enabled         bool
	VerificationTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Officer = OfficerConfig{
		Email:        strings.ToLower(strings.TrimSpace(v.GetString("OFFICER_EMAIL"))),
		Name:         v.GetString("OFFICER_NAME"),
		PasswordHash: v.GetString("OFFICER_PASSWORD_HASH"),
	}

	cfg.Certificates = CertificateConfig{
		Prefix:              strings.ToUpper(v.GetString("CERT_PREFIX")),
		Strategy:            strings.ToLower(v.GetString("CERT_MINT_STRATEGY")),
		MaxMintAttempts:     v.GetInt("CERT_MINT_MAX_ATTEMPTS"),
		VerifyBaseURL:       v.GetString("VERIFY_BASE_URL"),
		Timezone:            v.GetString("CERT_TIMEZONE"),
		DefaultValidityDays: v.GetInt("CERT_DEFAULT_VALIDITY_DAYS"),
		MaxValidityDays:     v.GetInt("CERT_MAX_VALIDITY_DAYS"),
	}

	cfg.Provider = ProviderConfig{
		Name:       v.GetString("PROVIDER_NAME"),
		Address:    v.GetString("PROVIDER_ADDRESS"),
		Contact:    v.GetString("PROVIDER_CONTACT"),
		City:       v.GetString("PROVIDER_CITY"),
		SignerName: v.GetString("PROVIDER_SIGNER"),
	}

	cfg.Storage = StorageConfig{
		Dir:             v.GetString("DOCUMENTS_STORAGE_DIR"),
		PublicBaseURL:   v.GetString("DOCUMENTS_PUBLIC_BASE_URL"),
		DownloadBaseURL: v.GetString("DOCUMENTS_DOWNLOAD_BASE_URL"),
		SignedURLSecret: v.GetString("DOCUMENTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("DOCUMENTS_SIGNED_URL_TTL"), 30*time.Minute),
	}

	cfg.AI = AIConfig{
		Enabled:     v.GetBool("ENABLE_AI_DRAFTING"),
		BaseURL:     v.GetString("AI_BASE_URL"),
		APIKey:      v.GetString("AI_API_KEY"),
		Model:       v.GetString("AI_MODEL"),
		Temperature: v.GetFloat64("AI_TEMPERATURE"),
		MaxTokens:   v.GetInt("AI_MAX_TOKENS"),
		Timeout:     parseDuration(v.GetString("AI_TIMEOUT"), 30*time.Second),
	}

	cfg.Mail = MailConfig{
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		SendGridHost:   v.GetString("SENDGRID_HOST"),
		FromAddress:    v.GetString("MAIL_FROM_ADDRESS"),
		FromName:       v.GetString("MAIL_FROM_NAME"),
	}

	cfg.Timeouts = TimeoutConfig{
		Render: parseDuration(v.GetString("RENDER_TIMEOUT"), 10*time.Second),
		Upload: parseDuration(v.GetString("UPLOAD_TIMEOUT"), 10*time.Second),
		Notify: parseDuration(v.GetString("NOTIFY_TIMEOUT"), 10*time.Second),
	}

	cfg.Cache = CacheConfig{
		Enabled:         v.GetBool("ENABLE_VERIFICATION_CACHE"),
		VerificationTTL: parseDuration(v.GetString("VERIFICATION_CACHE_TTL"), 10*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "medsurat")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "medsurat-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("OFFICER_EMAIL", "officer@medsurat.local")
	v.SetDefault("OFFICER_NAME", "Petugas MedSurat")
	v.SetDefault("OFFICER_PASSWORD_HASH", "")

	v.SetDefault("CERT_PREFIX", "MC")
	v.SetDefault("CERT_MINT_STRATEGY", "random")
	v.SetDefault("CERT_MINT_MAX_ATTEMPTS", 32)
	v.SetDefault("VERIFY_BASE_URL", "http://localhost:8080/api/v1/verify")
	v.SetDefault("CERT_TIMEZONE", "Asia/Jakarta")
	v.SetDefault("CERT_DEFAULT_VALIDITY_DAYS", 3)
	v.SetDefault("CERT_MAX_VALIDITY_DAYS", 14)

	v.SetDefault("PROVIDER_NAME", "MedSurat Health Center")
	v.SetDefault("PROVIDER_ADDRESS", "Jl. Digital No. 123, Jakarta Selatan, Indonesia")
	v.SetDefault("PROVIDER_CONTACT", "Tel: (021) 555-0199 | Email: info@medsurat.com")
	v.SetDefault("PROVIDER_CITY", "Jakarta")
	v.SetDefault("PROVIDER_SIGNER", "dr. MedSurat")

	v.SetDefault("DOCUMENTS_STORAGE_DIR", "./certificates")
	v.SetDefault("DOCUMENTS_PUBLIC_BASE_URL", "http://localhost:8080/certificates")
	v.SetDefault("DOCUMENTS_DOWNLOAD_BASE_URL", "http://localhost:8080/api/v1/documents")
	v.SetDefault("DOCUMENTS_SIGNED_URL_SECRET", "dev_documents_secret")
	v.SetDefault("DOCUMENTS_SIGNED_URL_TTL", "30m")

	v.SetDefault("ENABLE_AI_DRAFTING", false)
	v.SetDefault("AI_BASE_URL", "https://api.deepseek.com")
	v.SetDefault("AI_API_KEY", "")
	v.SetDefault("AI_MODEL", "deepseek-chat")
	v.SetDefault("AI_TEMPERATURE", 0.7)
	v.SetDefault("AI_MAX_TOKENS", 1000)
	v.SetDefault("AI_TIMEOUT", "30s")

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("SENDGRID_HOST", "")
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@medsurat.com")
	v.SetDefault("MAIL_FROM_NAME", "Tim MedSurat")

	v.SetDefault("RENDER_TIMEOUT", "10s")
	v.SetDefault("UPLOAD_TIMEOUT", "10s")
	v.SetDefault("NOTIFY_TIMEOUT", "10s")

	v.SetDefault("ENABLE_VERIFICATION_CACHE", true)
	v.SetDefault("VERIFICATION_CACHE_TTL", "10m")
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
