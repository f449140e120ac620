package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr  string
	LogLevel    string
	CORSOrigins []string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	VisionSidecarURL       string
	VisionTimeout          time.Duration
	MinDetectionConfidence float64
	MinTrackingConfidence  float64
	ResultTTL              time.Duration
	MaxFrameBytes          int

	FrameRateLimit float64
	FrameBurst     int
	MaxFrameAge    time.Duration

	APIRateLimit float64
	APIRateBurst int
}

// LoadConfig reads the environment, after loading an optional .env file.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerAddr:  getEnv("SERVER_ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: parseList(getEnv("CORS_ORIGINS", "*")),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		VisionSidecarURL:       getEnv("VISION_SIDECAR_URL", "http://localhost:8500"),
		VisionTimeout:          getEnvDuration("VISION_TIMEOUT", 5*time.Second),
		MinDetectionConfidence: getEnvFloat("VISION_MIN_DETECTION_CONFIDENCE", 0.5),
		MinTrackingConfidence:  getEnvFloat("VISION_MIN_TRACKING_CONFIDENCE", 0.5),
		ResultTTL:              getEnvDuration("RESULT_TTL", 24*time.Hour),
		MaxFrameBytes:          getEnvInt("MAX_FRAME_BYTES", 4<<20),

		FrameRateLimit: getEnvFloat("FRAME_RATE_LIMIT", 5),
		FrameBurst:     getEnvInt("FRAME_BURST", 2),
		MaxFrameAge:    getEnvDuration("MAX_FRAME_AGE", 2*time.Second),

		APIRateLimit: getEnvFloat("API_RATE_LIMIT", 10),
		APIRateBurst: getEnvInt("API_RATE_BURST", 20),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
