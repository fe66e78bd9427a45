// =============================================================================
// 📦 TutorFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Cache:     DefaultCacheConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Vector:    DefaultVectorConfig(),
		LLM:       DefaultLLMConfig(),
		RAG:       DefaultRAGConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9090,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    90 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:           time.Hour,
		MaxSize:       1000,
		SweepInterval: 10 * time.Minute,
	}
}

// DefaultEmbeddingConfig 返回默认嵌入服务配置
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		Timeout:    30 * time.Second,
	}
}

// DefaultVectorConfig 返回默认向量索引配置
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Backend: "memory",
		Pinecone: PineconeConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// DefaultLLMConfig 返回默认生成模型配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:         "https://api.openai.com/v1",
		Model:           "gpt-4o-mini",
		Timeout:         30 * time.Second,
		MaxRetries:      1,
		MaxAnswerTokens: 1024,
	}
}

// DefaultRAGConfig 返回默认检索配置
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		TopK:            4,
		MaxPromptTokens: 3000,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "tutorflow",
		SampleRate:   1.0,
	}
}
