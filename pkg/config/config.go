package config

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ProviderConfig holds credentials and model selection for one hosted LLM
// endpoint. Both providers speak the OpenAI-compatible chat API.
type ProviderConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type Config struct {
	Sources struct {
		Web  []string `yaml:"web"`
		PDFs []string `yaml:"pdfs"`
	} `yaml:"sources"`

	Evaluator ProviderConfig `yaml:"evaluator"`
	Generator ProviderConfig `yaml:"generator"`

	Processor struct {
		MaxWords     int `yaml:"max_words"`
		OverlapWords int `yaml:"overlap_words"`
	} `yaml:"processor"`

	Params struct {
		NumQuestions       int     `yaml:"num_questions"`
		RetryAttempts      int     `yaml:"retry_attempts"`
		MinCoherence       int     `yaml:"min_coherence"`
		FuzzyThreshold     float64 `yaml:"fuzzy_threshold"`
		RateLimit          float64 `yaml:"rate_limit"`
		RequestTimeoutSecs int     `yaml:"request_timeout_secs"`
	} `yaml:"params"`

	Files struct {
		OutputDir       string `yaml:"output_dir"`
		ChunksCSV       string `yaml:"chunks_csv"`
		ChunkMetricsCSV string `yaml:"chunk_metrics_csv"`
		QAPairsCSV      string `yaml:"qa_pairs_csv"`
		DeduplicatedCSV string `yaml:"deduplicated_qa_csv"`
	} `yaml:"files"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// LoadConfig reads the YAML config from path, falling back to the default
// locations when path is empty. Environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/chargepipe/config.yaml"),
			"/etc/chargepipe/config.yaml",
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
		return nil, eris.Wrap(err, "config: read file")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, eris.Wrap(err, "config: parse file")
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

func applyDefaults(config *Config) {
	if config.Evaluator.BaseURL == "" {
		config.Evaluator.BaseURL = "https://openrouter.ai/api/v1"
	}
	if config.Evaluator.Model == "" {
		config.Evaluator.Model = "deepseek/deepseek-r1-0528:free"
	}
	if config.Evaluator.MaxTokens == 0 {
		config.Evaluator.MaxTokens = 1024
	}

	if config.Generator.BaseURL == "" {
		config.Generator.BaseURL = "https://api.groq.com/openai/v1"
	}
	if config.Generator.Model == "" {
		config.Generator.Model = "gemma2-9b-it"
	}
	if config.Generator.Temperature == 0 {
		config.Generator.Temperature = 0.7
	}
	if config.Generator.MaxTokens == 0 {
		config.Generator.MaxTokens = 2048
	}

	if config.Processor.MaxWords == 0 {
		config.Processor.MaxWords = 500
	}
	if config.Processor.OverlapWords == 0 {
		config.Processor.OverlapWords = 50
	}

	if config.Params.NumQuestions == 0 {
		config.Params.NumQuestions = 3
	}
	if config.Params.RetryAttempts == 0 {
		config.Params.RetryAttempts = 3
	}
	if config.Params.MinCoherence == 0 {
		config.Params.MinCoherence = 3
	}
	if config.Params.FuzzyThreshold == 0 {
		config.Params.FuzzyThreshold = 0.9
	}
	if config.Params.RateLimit == 0 {
		config.Params.RateLimit = 2.0
	}
	if config.Params.RequestTimeoutSecs == 0 {
		config.Params.RequestTimeoutSecs = 30
	}

	if config.Files.OutputDir == "" {
		config.Files.OutputDir = "data"
	}
	if config.Files.ChunksCSV == "" {
		config.Files.ChunksCSV = "chunks.csv"
	}
	if config.Files.ChunkMetricsCSV == "" {
		config.Files.ChunkMetricsCSV = "chunk_metrics.csv"
	}
	if config.Files.QAPairsCSV == "" {
		config.Files.QAPairsCSV = "qa_pairs.csv"
	}
	if config.Files.DeduplicatedCSV == "" {
		config.Files.DeduplicatedCSV = "qa_pairs_deduplicated.csv"
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "console"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		config.Evaluator.APIKey = key
	}
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		config.Generator.APIKey = key
	}
	if dir := os.Getenv("CHARGEPIPE_OUTPUT_DIR"); dir != "" {
		config.Files.OutputDir = dir
	}
}
