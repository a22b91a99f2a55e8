package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultTopK          = 10
	DefaultFirstStageK   = 50
	DefaultThreshold     = 0.3
	DefaultClusterCount  = 5
	DefaultPerGroupLimit = 10
	DefaultTotalLimit    = 20
	DefaultMinConfidence = 0.3
	DefaultDecayDays     = 90.0
)

// Config holds the application configuration.
type Config struct {
	LogLevel    string
	LogFile     string
	DBPath      string
	DeepmemoDir string
	ConfigPath  string

	// Deep search defaults
	TopK             int
	FirstStageK      int
	Threshold        float64
	EnableClustering bool
	ClusterCount     int

	// Rerank tunables
	RecencyDecayDays float64
	FocusOriginal    float64
	FocusLexical     float64
	FrequencyDamping float64

	// Group search defaults
	PerGroupLimit int
	TotalLimit    int
	MinConfidence float64
}

type fileConfig struct {
	Logging struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"logging"`
	Storage struct {
		DBPath string `toml:"db_path"`
	} `toml:"storage"`
	Search struct {
		TopK             int     `toml:"top_k"`
		FirstStageK      int     `toml:"first_stage_k"`
		Threshold        float64 `toml:"threshold"`
		EnableClustering bool    `toml:"enable_clustering"`
		ClusterCount     int     `toml:"cluster_count"`
	} `toml:"search"`
	Rerank struct {
		DecayDays        float64 `toml:"decay_days"`
		FocusOriginal    float64 `toml:"focus_original"`
		FocusLexical     float64 `toml:"focus_lexical"`
		FrequencyDamping float64 `toml:"frequency_damping"`
	} `toml:"rerank"`
	Groups struct {
		PerGroupLimit int     `toml:"per_group_limit"`
		TotalLimit    int     `toml:"total_limit"`
		MinConfidence float64 `toml:"min_confidence"`
	} `toml:"groups"`
}

// LoadConfig loads configuration from file, environment variables, and
// defaults, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	dir, err := deepmemoDir()
	if err != nil {
		return nil, err
	}
	configPath := filepath.Join(dir, "config.toml")

	if err := os.MkdirAll(filepath.Join(dir, "logs"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create deepmemo directory: %w", err)
	}

	cfg := &Config{
		LogLevel:         "info",
		LogFile:          filepath.Join(dir, "logs", "deepmemo.log"),
		DBPath:           filepath.Join(dir, "store.sqlite3"),
		DeepmemoDir:      dir,
		ConfigPath:       configPath,
		TopK:             DefaultTopK,
		FirstStageK:      DefaultFirstStageK,
		Threshold:        DefaultThreshold,
		ClusterCount:     DefaultClusterCount,
		RecencyDecayDays: DefaultDecayDays,
		FocusOriginal:    0.6,
		FocusLexical:     0.4,
		FrequencyDamping: 10,
		PerGroupLimit:    DefaultPerGroupLimit,
		TotalLimit:       DefaultTotalLimit,
		MinConfidence:    DefaultMinConfidence,
	}

	// Config file overrides defaults when present.
	if _, err := os.Stat(configPath); err == nil {
		fileData, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		var parsed fileConfig
		if err := toml.Unmarshal(fileData, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
		applyFileConfig(cfg, &parsed)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyFileConfig(cfg *Config, parsed *fileConfig) {
	if parsed.Logging.Level != "" {
		cfg.LogLevel = parsed.Logging.Level
	}
	if parsed.Logging.File != "" {
		cfg.LogFile = parsed.Logging.File
	}
	if parsed.Storage.DBPath != "" {
		cfg.DBPath = parsed.Storage.DBPath
	}
	if parsed.Search.TopK != 0 {
		cfg.TopK = parsed.Search.TopK
	}
	if parsed.Search.FirstStageK != 0 {
		cfg.FirstStageK = parsed.Search.FirstStageK
	}
	if parsed.Search.Threshold != 0 {
		cfg.Threshold = parsed.Search.Threshold
	}
	cfg.EnableClustering = parsed.Search.EnableClustering
	if parsed.Search.ClusterCount != 0 {
		cfg.ClusterCount = parsed.Search.ClusterCount
	}
	if parsed.Rerank.DecayDays != 0 {
		cfg.RecencyDecayDays = parsed.Rerank.DecayDays
	}
	if parsed.Rerank.FocusOriginal != 0 {
		cfg.FocusOriginal = parsed.Rerank.FocusOriginal
	}
	if parsed.Rerank.FocusLexical != 0 {
		cfg.FocusLexical = parsed.Rerank.FocusLexical
	}
	if parsed.Rerank.FrequencyDamping != 0 {
		cfg.FrequencyDamping = parsed.Rerank.FrequencyDamping
	}
	if parsed.Groups.PerGroupLimit != 0 {
		cfg.PerGroupLimit = parsed.Groups.PerGroupLimit
	}
	if parsed.Groups.TotalLimit != 0 {
		cfg.TotalLimit = parsed.Groups.TotalLimit
	}
	if parsed.Groups.MinConfidence != 0 {
		cfg.MinConfidence = parsed.Groups.MinConfidence
	}
}

func applyEnvOverrides(cfg *Config) {
	if level := os.Getenv("DEEPMEMO_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if logFile := os.Getenv("DEEPMEMO_LOG_FILE"); logFile != "" {
		cfg.LogFile = logFile
	}
	if dbPath := os.Getenv("DEEPMEMO_DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if topK := os.Getenv("DEEPMEMO_TOP_K"); topK != "" {
		if n, err := strconv.Atoi(topK); err == nil {
			cfg.TopK = n
		}
	}
	if firstStageK := os.Getenv("DEEPMEMO_FIRST_STAGE_K"); firstStageK != "" {
		if n, err := strconv.Atoi(firstStageK); err == nil {
			cfg.FirstStageK = n
		}
	}
	if threshold := os.Getenv("DEEPMEMO_THRESHOLD"); threshold != "" {
		if f, err := strconv.ParseFloat(threshold, 64); err == nil {
			cfg.Threshold = f
		}
	}
	if clustering := os.Getenv("DEEPMEMO_ENABLE_CLUSTERING"); clustering != "" {
		cfg.EnableClustering = clustering == "true" || clustering == "1"
	}
	if clusterCount := os.Getenv("DEEPMEMO_CLUSTER_COUNT"); clusterCount != "" {
		if n, err := strconv.Atoi(clusterCount); err == nil {
			cfg.ClusterCount = n
		}
	}
	if decayDays := os.Getenv("DEEPMEMO_RERANK_DECAY_DAYS"); decayDays != "" {
		if f, err := strconv.ParseFloat(decayDays, 64); err == nil {
			cfg.RecencyDecayDays = f
		}
	}
	if minConfidence := os.Getenv("DEEPMEMO_MIN_CONFIDENCE"); minConfidence != "" {
		if f, err := strconv.ParseFloat(minConfidence, 64); err == nil {
			cfg.MinConfidence = f
		}
	}
}

// deepmemoDir resolves the data directory: $DEEPMEMO_DIR if set, else
// ~/.deepmemo.
func deepmemoDir() (string, error) {
	if dir := os.Getenv("DEEPMEMO_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".deepmemo"), nil
}

// Validate verifies the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db path is empty")
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive")
	}
	if c.FirstStageK <= 0 {
		return fmt.Errorf("first_stage_k must be positive")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1")
	}
	if c.ClusterCount <= 0 {
		return fmt.Errorf("cluster_count must be positive")
	}
	if c.RecencyDecayDays <= 0 {
		return fmt.Errorf("rerank decay_days must be positive")
	}
	if c.FocusOriginal < 0 || c.FocusLexical < 0 {
		return fmt.Errorf("focus weights cannot be negative")
	}
	if c.FrequencyDamping <= 0 {
		return fmt.Errorf("frequency_damping must be positive")
	}
	if c.PerGroupLimit <= 0 || c.TotalLimit <= 0 {
		return fmt.Errorf("group limits must be positive")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be between 0 and 1")
	}
	return nil
}
