package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config represents runtime configuration for the service. Every field has
// a safe local-development default so the server starts with an empty
// environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Gemini    GeminiConfig
	Speech    SpeechConfig
	Worker    WorkerConfig
	Retrieval RetrievalConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	Driver string // sqlite3 or mysql
	DSN    string
}

type RedisConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	DB       int
}

type GeminiConfig struct {
	// APIKeys is the rotation pool, collected from GEMINI_API_KEY and
	// GEMINI_API_KEY1..GEMINI_API_KEY14. Empty slots are dropped.
	APIKeys         []string
	Model           string
	EmbeddingModel  string
	CooldownSeconds int
}

type SpeechConfig struct {
	STTBaseURL   string
	WhisperModel string // model size selector passed to the STT service
	TTSBaseURL   string
}

type WorkerConfig struct {
	Enabled   bool
	PoolSize  int
	BatchSize int
}

type RetrievalConfig struct {
	QuestionBankPath string
}

const maxNumberedKeys = 14

// Load reads .env (when present) and assembles the configuration from the
// environment.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments configure the environment
	// directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8090"),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite3"),
			DSN:    getEnv("DB_DSN", "./data/prepstage.db"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "127.0.0.1"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Username: getEnv("REDIS_USERNAME", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Gemini: GeminiConfig{
			APIKeys:         collectAPIKeys(),
			Model:           getEnv("GEMINI_MODEL", "gemini-2.0-flash-lite"),
			EmbeddingModel:  getEnv("GEMINI_EMBEDDING_MODEL", "gemini-embedding-001"),
			CooldownSeconds: getEnvInt("GEMINI_KEY_COOLDOWN", 3600),
		},
		Speech: SpeechConfig{
			STTBaseURL:   getEnv("STT_BASE_URL", "http://127.0.0.1:9000"),
			WhisperModel: getEnv("WHISPER_MODEL", "base"),
			TTSBaseURL:   getEnv("TTS_BASE_URL", "http://127.0.0.1:9100"),
		},
		Worker: WorkerConfig{
			Enabled:   getEnv("SPEECH_WORKERS_ENABLED", "") == "1",
			PoolSize:  getEnvInt("SPEECH_WORKERS", 4),
			BatchSize: getEnvInt("SPEECH_WORKER_BATCH", 5),
		},
		Retrieval: RetrievalConfig{
			QuestionBankPath: getEnv("QUESTION_BANK_PATH", "./data/question_bank.json"),
		},
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("DB_DSN must be configured")
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = 4
	}
	if cfg.Worker.BatchSize <= 0 {
		cfg.Worker.BatchSize = 5
	}
	return cfg, nil
}

func collectAPIKeys() []string {
	var keys []string
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		keys = append(keys, k)
	}
	for i := 1; i <= maxNumberedKeys; i++ {
		if k := os.Getenv(fmt.Sprintf("GEMINI_API_KEY%d", i)); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}
