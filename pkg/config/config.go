package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider          string  `yaml:"provider"`
		BaseURL           string  `yaml:"base_url"`
		Model             string  `yaml:"model"`
		APIKey            string  `yaml:"api_key"`
		MaxTokens         int     `yaml:"max_tokens"`
		Temperature       float64 `yaml:"temperature"`
		TopP              float64 `yaml:"top_p"`
		TopK              int     `yaml:"top_k"`
		Workers           int     `yaml:"workers"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"llm"`

	Embedder struct {
		Provider  string `yaml:"provider"`
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		BatchSize int    `yaml:"batch_size"`
		Dimension int    `yaml:"dimension"`
	} `yaml:"embedder"`

	Index struct {
		Backend     string `yaml:"backend"`
		Directory   string `yaml:"directory"`
		DatabaseURL string `yaml:"database_url"`
		TableName   string `yaml:"table_name"`
	} `yaml:"index"`

	Processor struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"processor"`

	Retrieval struct {
		TopK int `yaml:"top_k"`
	} `yaml:"retrieval"`

	Ingest struct {
		Timeout     time.Duration `yaml:"timeout"`
		RateLimit   float64       `yaml:"rate_limit"`
		Concurrency int           `yaml:"concurrency"`
		UserAgent   string        `yaml:"user_agent"`
	} `yaml:"ingest"`

	Usage struct {
		Tokenizer string `yaml:"tokenizer"`
	} `yaml:"usage"`

	Pipeline struct {
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"pipeline"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/documind/config.yaml"),
			"/etc/documind/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

// Default returns a config with every default applied and no environment
// overrides.
func Default() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = ProviderOllama
	}
	if config.LLM.Model == "" {
		if config.LLM.Provider == ProviderGoogleAI {
			config.LLM.Model = "gemini-1.5-flash"
		} else {
			config.LLM.Model = "mistral"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2048
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.1
	}
	if config.LLM.TopP == 0 {
		config.LLM.TopP = 0.8
	}
	if config.LLM.TopK == 0 {
		config.LLM.TopK = 40
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Workers == 0 {
		config.LLM.Workers = 4
	}
	if config.LLM.RequestsPerSecond == 0 {
		config.LLM.RequestsPerSecond = 2.0
	}

	if config.Embedder.Provider == "" {
		config.Embedder.Provider = ProviderOllama
	}
	if config.Embedder.Model == "" && config.Embedder.Provider == ProviderOllama {
		config.Embedder.Model = "nomic-embed-text:latest"
	}
	if config.Embedder.BaseURL == "" {
		config.Embedder.BaseURL = config.LLM.BaseURL
	}
	if config.Embedder.BatchSize == 0 {
		config.Embedder.BatchSize = 32
	}
	if config.Embedder.Dimension == 0 {
		config.Embedder.Dimension = 256
	}

	if config.Index.Backend == "" {
		config.Index.Backend = BackendMemory
	}
	if config.Index.Directory == "" {
		config.Index.Directory = "./vector_store"
	}
	if config.Index.TableName == "" {
		config.Index.TableName = "documind_chunks"
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 7
	}

	if config.Ingest.Timeout == 0 {
		config.Ingest.Timeout = 30 * time.Second
	}
	if config.Ingest.RateLimit == 0 {
		config.Ingest.RateLimit = 2.0
	}
	if config.Ingest.Concurrency == 0 {
		config.Ingest.Concurrency = 4
	}
	if config.Ingest.UserAgent == "" {
		config.Ingest.UserAgent = "documind/1.0"
	}

	if config.Usage.Tokenizer == "" {
		config.Usage.Tokenizer = TokenizerWhitespace
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
		config.Embedder.BaseURL = baseURL
	}
	if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Index.DatabaseURL = dbURL
	}
	if dir := os.Getenv("DOCUMIND_INDEX_DIR"); dir != "" {
		config.Index.Directory = dir
	}
	if backend := os.Getenv("DOCUMIND_INDEX_BACKEND"); backend != "" {
		config.Index.Backend = backend
	}
}
