/**
 * @description
 * This file handles the configuration management for the back-office service.
 * It uses the Viper library to read settings from environment variables or a .env file.
 *
 * @notes
 * - The loaded Config is passed explicitly to every component that needs it;
 *   nothing reads configuration from package-level state after startup.
 *
 * @dependencies
 * - github.com/spf13/viper: For configuration management.
 */
package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort         string `mapstructure:"SERVER_PORT"`
	DatabaseURL        string `mapstructure:"DATABASE_URL"`
	RabbitMQURL        string `mapstructure:"RABBITMQ_URL"`
	RedisURL           string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix     string `mapstructure:"REDIS_KEY_PREFIX"`
	JWTSecret          string `mapstructure:"JWT_SECRET"`
	JWTIssuer          string `mapstructure:"JWT_ISSUER"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RateLimitPerMinute int    `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	TrustedProxies     string `mapstructure:"TRUSTED_PROXIES"`

	SortCodePrefix string `mapstructure:"SORT_CODE_PREFIX"`
	BankCodeGB     string `mapstructure:"BANK_CODE_GB"`
	BankCodeDE     string `mapstructure:"BANK_CODE_DE"`
	SwiftBICGBP    string `mapstructure:"SWIFT_BIC_GBP"`
	SwiftBICEUR    string `mapstructure:"SWIFT_BIC_EUR"`
	SwiftBICUSD    string `mapstructure:"SWIFT_BIC_USD"`
	CardBIN        string `mapstructure:"CARD_BIN"`

	PINMaxAttempts        int    `mapstructure:"PIN_MAX_ATTEMPTS"`
	PINLockoutSeconds     int    `mapstructure:"PIN_LOCKOUT_SECONDS"`
	DepositExpiryDays     int    `mapstructure:"DEPOSIT_EXPIRY_DAYS"`
	DepositExpirySchedule string `mapstructure:"DEPOSIT_EXPIRY_SCHEDULE"`
	CardExpirySchedule    string `mapstructure:"CARD_EXPIRY_SCHEDULE"`
}

// MinJWTSecretLength is the shortest HS256 signing key accepted at boot.
const MinJWTSecretLength = 32

// LoadConfig reads configuration from an optional .env file in path and from
// environment variables, which take precedence.
func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8082")
	viper.SetDefault("REDIS_KEY_PREFIX", "backoffice")
	viper.SetDefault("JWT_ISSUER", "hometown-backoffice")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "https://*,http://*")
	viper.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
	viper.SetDefault("SORT_CODE_PREFIX", "90")
	viper.SetDefault("BANK_CODE_GB", "HOMT")
	viper.SetDefault("BANK_CODE_DE", "50070010")
	viper.SetDefault("SWIFT_BIC_GBP", "HOMTGB2LXXX")
	viper.SetDefault("SWIFT_BIC_EUR", "HOMTDEFFXXX")
	viper.SetDefault("SWIFT_BIC_USD", "HOMTUS33XXX")
	viper.SetDefault("CARD_BIN", "453987")
	viper.SetDefault("PIN_MAX_ATTEMPTS", 3)
	viper.SetDefault("PIN_LOCKOUT_SECONDS", 900)
	viper.SetDefault("DEPOSIT_EXPIRY_DAYS", 14)
	viper.SetDefault("DEPOSIT_EXPIRY_SCHEDULE", "0 3 * * *") // At 03:00 every day.
	viper.SetDefault("CARD_EXPIRY_SCHEDULE", "30 3 * * *")   // At 03:30 every day.

	// Bind envs explicitly so containers pick them up reliably
	for _, key := range []string{
		"SERVER_PORT", "DATABASE_URL", "RABBITMQ_URL", "REDIS_URL", "REDIS_KEY_PREFIX",
		"JWT_SECRET", "JWT_ISSUER", "CORS_ALLOWED_ORIGINS", "RATE_LIMIT_PER_MINUTE", "TRUSTED_PROXIES",
		"SORT_CODE_PREFIX", "BANK_CODE_GB", "BANK_CODE_DE",
		"SWIFT_BIC_GBP", "SWIFT_BIC_EUR", "SWIFT_BIC_USD", "CARD_BIN",
		"PIN_MAX_ATTEMPTS", "PIN_LOCKOUT_SECONDS",
		"DEPOSIT_EXPIRY_DAYS", "DEPOSIT_EXPIRY_SCHEDULE", "CARD_EXPIRY_SCHEDULE",
	} {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: Error reading config file: %s", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.BankCodeGB = strings.ToUpper(strings.TrimSpace(config.BankCodeGB))
	config.RedisKeyPrefix = strings.TrimSuffix(strings.TrimSpace(config.RedisKeyPrefix), ":")

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings that would leave the API open to forged tokens or
// could never produce well-formed identifiers.
func (c *Config) Validate() error {
	if len(strings.TrimSpace(c.JWTSecret)) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	}
	if len(c.SortCodePrefix) != 2 || !allDigits(c.SortCodePrefix) {
		return fmt.Errorf("SORT_CODE_PREFIX must be two digits, got %q", c.SortCodePrefix)
	}
	if len(c.BankCodeGB) != 4 || !allLetters(c.BankCodeGB) {
		return fmt.Errorf("BANK_CODE_GB must be four letters, got %q", c.BankCodeGB)
	}
	if len(c.BankCodeDE) != 8 || !allDigits(c.BankCodeDE) {
		return fmt.Errorf("BANK_CODE_DE must be eight digits, got %q", c.BankCodeDE)
	}
	for name, bic := range map[string]string{"SWIFT_BIC_GBP": c.SwiftBICGBP, "SWIFT_BIC_EUR": c.SwiftBICEUR, "SWIFT_BIC_USD": c.SwiftBICUSD} {
		if len(bic) != 11 {
			return fmt.Errorf("%s must be 11 characters, got %q", name, bic)
		}
	}
	if len(c.CardBIN) != 6 || !allDigits(c.CardBIN) {
		return fmt.Errorf("CARD_BIN must be six digits, got %q", c.CardBIN)
	}
	if c.PINMaxAttempts <= 0 || c.PINLockoutSeconds <= 0 {
		return fmt.Errorf("PIN_MAX_ATTEMPTS and PIN_LOCKOUT_SECONDS must be positive")
	}
	if c.DepositExpiryDays <= 0 {
		return fmt.Errorf("DEPOSIT_EXPIRY_DAYS must be positive")
	}
	return nil
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// TrustedProxyList splits TRUSTED_PROXIES (IPs or CIDRs) on commas. Forwarding
// headers are only honored from these peers.
func (c *Config) TrustedProxyList() []string {
	return splitList(c.TrustedProxies)
}

func splitList(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func allLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return s != ""
}
