package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var loadEnvOnce sync.Once

// Config returns the value of key, reading .env into the process
// environment the first time it is called. Existing variables win.
func Config(key string) string {
	loadEnvOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})
	return os.Getenv(key)
}

type Settings struct {
	Env            string
	Port           string
	SecretKey      string
	DatabaseURL    string
	RequestTimeout time.Duration
	SessionTTL     time.Duration
	CORSOrigins    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	RabbitMQURL string

	BrevoAPIKey     string
	EmailSender     string
	EmailSenderName string

	CloudinaryURL string

	AdminEmail    string
	AdminPassword string
	AdminFullName string

	ReminderSchedule string
}

// Load builds Settings from the environment. It fails when a required
// variable is missing or a typed variable does not parse.
func Load() (Settings, error) {
	s := Settings{
		Env:              getenv("APP_ENV", "development"),
		Port:             getenv("PORT", "5000"),
		SecretKey:        Config("SECRET_KEY"),
		DatabaseURL:      Config("DATABASE_URL"),
		CORSOrigins:      getenv("CORS_ORIGINS", "http://localhost:3000"),
		RedisAddr:        Config("REDIS_ADDR"),
		RedisPassword:    Config("REDIS_PASSWORD"),
		RedisChannel:     getenv("REDIS_CHANNEL", "realtime"),
		RabbitMQURL:      Config("RABBITMQ_URL"),
		BrevoAPIKey:      Config("BREVO_API_KEY"),
		EmailSender:      Config("EMAIL_SENDER"),
		EmailSenderName:  Config("EMAIL_SENDER_NAME"),
		CloudinaryURL:    Config("CLOUDINARY_URL"),
		AdminEmail:       Config("ADMIN_EMAIL"),
		AdminPassword:    Config("ADMIN_PASSWORD"),
		AdminFullName:    getenv("ADMIN_FULL_NAME", "Administrator"),
		ReminderSchedule: getenv("REMINDER_SCHEDULE", "*/5 * * * *"),
	}

	var missing []string
	if s.SecretKey == "" {
		missing = append(missing, "SECRET_KEY")
	}
	if s.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return Settings{}, fmt.Errorf("missing required env var(s): %s", strings.Join(missing, ", "))
	}

	var err error
	if s.RequestTimeout, err = parseDuration("REQUEST_TIMEOUT", "10s"); err != nil {
		return Settings{}, err
	}
	if s.SessionTTL, err = parseDuration("SESSION_TTL", "72h"); err != nil {
		return Settings{}, err
	}
	if v := Config("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid int for REDIS_DB: %q", v)
		}
		s.RedisDB = n
	}
	return s, nil
}

func getenv(key, def string) string {
	if v := Config(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	raw := getenv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration for %s: %q", key, raw)
	}
	return d, nil
}
