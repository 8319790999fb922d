package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI       string
	DBName         string
	GeminiAPIKey   string
	Port           string
	GinMode        string
	CORSOrigins    []string
	MaxFileSize    int64
	AllowedTypes   []string
	RateLimitReqs  int
	RateLimitWindow int
	FileStorageDir string
	SyncProcessingLimit int64

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Qdrant Configuration
	QdrantHost       string
	QdrantPort       int
	QdrantUseTLS     bool
	QdrantCollection string

	// Chunking configuration
	ChunkSize    int
	ChunkOverlap int

	// Retrieval configuration
	SearchLimit       int
	RerankTopN        int
	MaxContextChunks  int
	MaxChunksPerDoc   int
	RelevanceFloor    float64

	// Generation configuration
	GenerationModel     string
	Temperature         float64
	MaxOutputTokens     int
	EmbeddingsModel     string
	EmbeddingDimensions int

	// Reranker Service Configuration
	RerankerURL     string
	RerankerAPIKey  string
	RerankerModel   string
	RerankerEnabled bool
	RerankerTimeout int

	// OCR Service Configuration
	OCRServiceURL          string
	OCRServiceEnabled      bool
	OCRTimeout             int
	OCRConfidenceThreshold float64

	// Query response cache
	QueryCacheEnabled bool
	QueryCacheTTL     int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017/contract_qa"),
		DBName:              getEnv("DB_NAME", "contract_qa"),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		Port:                getEnv("PORT", "8080"),
		GinMode:             getEnv("GIN_MODE", "debug"),
		CORSOrigins:         strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		MaxFileSize:         getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB
		AllowedTypes:        strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf,application/vnd.openxmlformats-officedocument.wordprocessingml.document"), ","),
		RateLimitReqs:       getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:     getEnvInt("RATE_LIMIT_WINDOW", 60),
		FileStorageDir:      getEnv("FILE_STORAGE_DIR", "./storage"),
		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 20971520), // 20MB sync processing limit

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// Qdrant Configuration
		QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:       getEnvInt("QDRANT_PORT", 6334),
		QdrantUseTLS:     getEnvBool("QDRANT_USE_TLS", false),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "contract_documents"),

		// Chunking
		ChunkSize:    getEnvInt("CHUNK_SIZE", 512),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 50),

		// Retrieval
		SearchLimit:      getEnvInt("SEARCH_LIMIT", 100),
		RerankTopN:       getEnvInt("RERANK_TOP_N", 30),
		MaxContextChunks: getEnvInt("MAX_CONTEXT_CHUNKS", 15),
		MaxChunksPerDoc:  getEnvInt("MAX_CHUNKS_PER_DOC", 2),
		RelevanceFloor:   getEnvFloat64("RELEVANCE_FLOOR", 0.01),

		// Generation
		GenerationModel:     getEnv("GENERATION_MODEL", "gemini-2.0-flash"),
		Temperature:         getEnvFloat64("GENERATION_TEMPERATURE", 0.1),
		MaxOutputTokens:     getEnvInt("GENERATION_MAX_TOKENS", 1500),
		// text-embedding-004 emits 768-dimension vectors; EMBEDDING_DIM
		// must match the model or every upsert is rejected
		EmbeddingsModel:     getEnv("EMBEDDINGS_MODEL", "text-embedding-004"),
		EmbeddingDimensions: getEnvInt("EMBEDDING_DIM", 768),

		// Reranker Service
		RerankerURL:     getEnv("RERANKER_URL", "https://api.cohere.com/v2/rerank"),
		RerankerAPIKey:  getEnv("RERANKER_API_KEY", ""),
		RerankerModel:   getEnv("RERANKER_MODEL", "rerank-v3.5"),
		RerankerEnabled: getEnvBool("RERANKER_ENABLED", true),
		RerankerTimeout: getEnvInt("RERANKER_TIMEOUT", 30),

		// OCR Service
		OCRServiceURL:          getEnv("OCR_SERVICE_URL", "http://localhost:8001"),
		OCRServiceEnabled:      getEnvBool("OCR_SERVICE_ENABLED", true),
		OCRTimeout:             getEnvInt("OCR_TIMEOUT", 300), // 5 minutes
		OCRConfidenceThreshold: getEnvFloat64("OCR_CONFIDENCE_THRESHOLD", 0.7),

		// Query cache
		QueryCacheEnabled: getEnvBool("QUERY_CACHE_ENABLED", true),
		QueryCacheTTL:     getEnvInt("QUERY_CACHE_TTL", 300),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be smaller than CHUNK_SIZE")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
