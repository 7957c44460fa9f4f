package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost              string
	DBUser              string
	DBPassword          string
	DBName              string
	DBPort              string
	AppPort             string
	AppEnv              string
	JWTSecret           string
	StripeSecretKey     string
	StripeWebhookSecret string
	SuccessURL          string
	CancelURL           string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:              os.Getenv("DB_HOST"),
		DBUser:              os.Getenv("DB_USER"),
		DBPassword:          os.Getenv("DB_PASSWORD"),
		DBName:              os.Getenv("DB_NAME"),
		DBPort:              os.Getenv("DB_PORT"),
		AppPort:             os.Getenv("APP_PORT"),
		AppEnv:              os.Getenv("APP_ENV"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		SuccessURL:          os.Getenv("SUCCESS_URL"),
		CancelURL:           os.Getenv("CANCEL_URL"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	if cfg.AppPort == "" {
		cfg.AppPort = "8080"
	}

	return cfg
}
