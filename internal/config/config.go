package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Bot      BotConfig
	API      APIConfig
	Payment  PaymentConfig
	Referral ReferralConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type BotConfig struct {
	Token      string
	WebhookURL string
	UpdateMode string // "polling", "webhook", "auto"
	Username   string
	AdminChat  string
}

type APIConfig struct {
	Key string
}

// PaymentConfig holds the card requisites shown for course purchases.
// Referral-bonus payments use the beneficiary's own card instead.
type PaymentConfig struct {
	CardNumber string
	CardHolder string
}

// ReferralConfig holds the funnel policy knobs.
type ReferralConfig struct {
	// BonusAmount is the fixed upward payment owed after a course
	// purchase, in so'm.
	BonusAmount int
	// GraceWindow is how long an under-leveled referrer gets before the
	// sweep auto-assigns a replacement.
	GraceWindow time.Duration
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("BOT_UPDATE_MODE", "auto")
	viper.SetDefault("REFERRAL_BONUS_AMOUNT", 200000)
	viper.SetDefault("REFERRAL_GRACE_WINDOW", "24h")

	grace, err := time.ParseDuration(viper.GetString("REFERRAL_GRACE_WINDOW"))
	if err != nil {
		grace = 24 * time.Hour
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Bot: BotConfig{
			Token:      viper.GetString("BOT_TOKEN"),
			WebhookURL: viper.GetString("BOT_WEBHOOK_URL"),
			UpdateMode: viper.GetString("BOT_UPDATE_MODE"),
			Username:   viper.GetString("BOT_USERNAME"),
			AdminChat:  viper.GetString("BOT_ADMIN_CHAT"),
		},
		API: APIConfig{
			Key: viper.GetString("API_KEY"),
		},
		Payment: PaymentConfig{
			CardNumber: viper.GetString("PAYMENT_CARD_NUMBER"),
			CardHolder: viper.GetString("PAYMENT_CARD_HOLDER"),
		},
		Referral: ReferralConfig{
			BonusAmount: viper.GetInt("REFERRAL_BONUS_AMOUNT"),
			GraceWindow: grace,
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.Bot.Token == "" {
		log.Println("WARNING: BOT_TOKEN is not set")
	}

	return cfg, nil
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
