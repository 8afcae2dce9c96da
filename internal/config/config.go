package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds process configuration. Merchant secrets live here rather than
// in the settings file so they never land on disk next to the track catalog.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr     string
	PublicURL    string
	SettingsFile string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Gateway GatewayConfig
	SMTP    SMTPConfig
}

// GatewayConfig carries hosted-payment-page credentials per currency and the
// test/live switch. Sandbox is derived from GATEWAY_ENV.
type GatewayConfig struct {
	Env            string
	Merchants      map[string]MerchantAccount
	SessionTimeout int
}

type MerchantAccount struct {
	MerchantID string
	SecretKey  string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

const (
	GatewayEnvTest = "test"
	GatewayEnvLive = "live"
)

func (g GatewayConfig) Sandbox() bool {
	return strings.ToLower(strings.TrimSpace(g.Env)) != GatewayEnvLive
}

// Account returns the merchant account for a currency code, if configured.
func (g GatewayConfig) Account(currency string) (MerchantAccount, bool) {
	acct, ok := g.Merchants[strings.ToUpper(strings.TrimSpace(currency))]
	if !ok || acct.MerchantID == "" || acct.SecretKey == "" {
		return MerchantAccount{}, false
	}
	return acct, true
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "camppay"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		PublicURL:    strings.TrimRight(getenv("PUBLIC_URL", "http://localhost:8080"), "/"),
		SettingsFile: getenv("SETTINGS_FILE", "settings.yaml"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "camppay"),
		DBUser:            getenv("DATABASE_USER", "camppay"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),

		Gateway: GatewayConfig{
			Env: strings.ToLower(getenv("GATEWAY_ENV", GatewayEnvTest)),
			Merchants: map[string]MerchantAccount{
				"HUF": {
					MerchantID: strings.TrimSpace(os.Getenv("GATEWAY_HUF_MERCHANT")),
					SecretKey:  strings.TrimSpace(os.Getenv("GATEWAY_HUF_SECRET_KEY")),
				},
				"EUR": {
					MerchantID: strings.TrimSpace(os.Getenv("GATEWAY_EUR_MERCHANT")),
					SecretKey:  strings.TrimSpace(os.Getenv("GATEWAY_EUR_SECRET_KEY")),
				},
				"USD": {
					MerchantID: strings.TrimSpace(os.Getenv("GATEWAY_USD_MERCHANT")),
					SecretKey:  strings.TrimSpace(os.Getenv("GATEWAY_USD_SECRET_KEY")),
				},
			},
			SessionTimeout: getenvInt("GATEWAY_SESSION_TIMEOUT", 600),
		},
		SMTP: SMTPConfig{
			Host:     getenv("SMTP_HOST", ""),
			Port:     getenvInt("SMTP_PORT", 587),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", "noreply@camppay.local"),
		},
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
