package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

const (
	// MaxUploadBytes caps text/document uploads at ingress
	MaxUploadBytes = 16 * 1024 * 1024
	// MaxVideoUploadBytes caps video uploads (videos are archived, never parsed)
	MaxVideoUploadBytes = 500 * 1024 * 1024
)

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL      string
	REDIS_PASSWORD string
	REDIS_DB       string
	// LLM Configuration
	LLM_API_KEY  string
	LLM_BASE_URL string
	LLM_MODEL    string
	// Alipay gateway
	ALIPAY_APP_ID      string
	ALIPAY_PRIVATE_KEY string
	ALIPAY_PUBLIC_KEY  string
	ALIPAY_PRODUCTION  bool
	ALIPAY_RETURN_URL  string
	ALIPAY_NOTIFY_URL  string
	// Object storage for uploaded videos (S3-compatible)
	SPACES_ACCESS_KEY string
	SPACES_SECRET_KEY string
	SPACES_BUCKET     string
	SPACES_REGION     string
	SPACES_ENDPOINT   string
	// Local upload staging
	UPLOAD_FOLDER string
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	uploadFolder := os.Getenv("UPLOAD_FOLDER")
	if uploadFolder == "" {
		uploadFolder = "uploads"
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: os.Getenv("JWT_ISSUER"),
		// Redis
		REDIS_URL:      os.Getenv("REDIS_URL"),
		REDIS_PASSWORD: os.Getenv("REDIS_PASSWORD"),
		REDIS_DB:       os.Getenv("REDIS_DB"),
		// LLM
		LLM_API_KEY:  os.Getenv("LLM_API_KEY"),
		LLM_BASE_URL: os.Getenv("LLM_BASE_URL"),
		LLM_MODEL:    os.Getenv("LLM_MODEL"),
		// Alipay
		ALIPAY_APP_ID:      os.Getenv("ALIPAY_APP_ID"),
		ALIPAY_PRIVATE_KEY: os.Getenv("ALIPAY_PRIVATE_KEY"),
		ALIPAY_PUBLIC_KEY:  os.Getenv("ALIPAY_PUBLIC_KEY"),
		ALIPAY_PRODUCTION:  os.Getenv("ALIPAY_PRODUCTION") == "true",
		ALIPAY_RETURN_URL:  os.Getenv("ALIPAY_RETURN_URL"),
		ALIPAY_NOTIFY_URL:  os.Getenv("ALIPAY_NOTIFY_URL"),
		// Object storage
		SPACES_ACCESS_KEY: os.Getenv("SPACES_ACCESS_KEY"),
		SPACES_SECRET_KEY: os.Getenv("SPACES_SECRET_KEY"),
		SPACES_BUCKET:     os.Getenv("SPACES_BUCKET"),
		SPACES_REGION:     os.Getenv("SPACES_REGION"),
		SPACES_ENDPOINT:   os.Getenv("SPACES_ENDPOINT"),
		// Uploads
		UPLOAD_FOLDER: uploadFolder,
	}

	return envVariables, nil
}
