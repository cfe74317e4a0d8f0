package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey string
	LakePath     string
	StorePath    string
	DataDir      string
	ExamplesPath string
	HTTPPort     string
	LogLevel     string
	JWTSecret    string
	MaxAttempts  int
	RetrieveTopK int
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		LakePath:     getEnv("LAKE_PATH", "telecom_data.duckdb"),
		StorePath:    getEnv("STORE_PATH", "net_insight.db"),
		DataDir:      getEnv("DATA_DIR", "data"),
		ExamplesPath: getEnv("EXAMPLES_PATH", "golden_sqls.yaml"),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		MaxAttempts:  getEnvAsInt("MAX_ATTEMPTS", 3),
		RetrieveTopK: getEnvAsInt("RETRIEVE_TOP_K", 2),
	}

	if AppConfig.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
