package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/kolipakulaharsha/guardian/internal/core"
)

// FileConfig is the on-disk configuration schema (YAML or JSON), a
// nested-sections shape narrowed to Guardian's knobs.
type FileConfig struct {
	LLM struct {
		BaseURL string `yaml:"base" json:"base"`
		Model   string `yaml:"model" json:"model"`
		APIKey  string `yaml:"key" json:"key"`
	} `yaml:"llm" json:"llm"`

	Cache struct {
		Dir         string `yaml:"dir" json:"dir"`
		Clear       bool   `yaml:"clear" json:"clear"`
		StrictPerms bool   `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	Scan struct {
		Workers           int           `yaml:"workers" json:"workers"`
		BaseBackoff       time.Duration `yaml:"baseBackoff" json:"baseBackoff"`
		MaxAttempts       int           `yaml:"maxAttempts" json:"maxAttempts"`
		ChunkSize         int           `yaml:"chunkSize" json:"chunkSize"`
		Overlap           int           `yaml:"overlap" json:"overlap"`
		IndexChunkChars   int           `yaml:"indexChunkChars" json:"indexChunkChars"`
		IndexOverlapChars int           `yaml:"indexOverlapChars" json:"indexOverlapChars"`
		MaxCandidates     int           `yaml:"maxCandidates" json:"maxCandidates"`
		CloneTimeout      time.Duration `yaml:"cloneTimeout" json:"cloneTimeout"`
	} `yaml:"scan" json:"scan"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into a FileConfig, trying YAML first for
// an unrecognized extension.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays fc into cfg for fields still at their default or
// zero value, so file config supplies defaults while preserving flags/env
// already applied (§6 precedence contract: flag > env > file > default).
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	def := defaults()

	if cfg.APIKey == "" && fc.LLM.APIKey != "" {
		cfg.APIKey = fc.LLM.APIKey
	}
	if (cfg.Model == "" || cfg.Model == def.Model) && fc.LLM.Model != "" {
		cfg.Model = fc.LLM.Model
	}
	if cfg.BaseURL == "" && fc.LLM.BaseURL != "" {
		cfg.BaseURL = fc.LLM.BaseURL
	}

	if (cfg.CacheDir == "" || cfg.CacheDir == def.CacheDir) && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}

	if (cfg.Workers == 0 || cfg.Workers == def.Workers) && fc.Scan.Workers > 0 {
		cfg.Workers = fc.Scan.Workers
	}
	if (cfg.BaseBackoff == 0 || cfg.BaseBackoff == def.BaseBackoff) && fc.Scan.BaseBackoff > 0 {
		cfg.BaseBackoff = fc.Scan.BaseBackoff
	}
	if (cfg.MaxAttempts == 0 || cfg.MaxAttempts == def.MaxAttempts) && fc.Scan.MaxAttempts > 0 {
		cfg.MaxAttempts = fc.Scan.MaxAttempts
	}
	if (cfg.ChunkSize == 0 || cfg.ChunkSize == def.ChunkSize) && fc.Scan.ChunkSize > 0 {
		cfg.ChunkSize = fc.Scan.ChunkSize
	}
	if (cfg.Overlap == 0 || cfg.Overlap == def.Overlap) && fc.Scan.Overlap > 0 {
		cfg.Overlap = fc.Scan.Overlap
	}
	if (cfg.IndexChunkChars == 0 || cfg.IndexChunkChars == def.IndexChunkChars) && fc.Scan.IndexChunkChars > 0 {
		cfg.IndexChunkChars = fc.Scan.IndexChunkChars
	}
	if (cfg.IndexOverlapChars == 0 || cfg.IndexOverlapChars == def.IndexOverlapChars) && fc.Scan.IndexOverlapChars > 0 {
		cfg.IndexOverlapChars = fc.Scan.IndexOverlapChars
	}
	if (cfg.MaxCandidates == 0 || cfg.MaxCandidates == def.MaxCandidates) && fc.Scan.MaxCandidates > 0 {
		cfg.MaxCandidates = fc.Scan.MaxCandidates
	}
	if (cfg.CloneTimeout == 0 || cfg.CloneTimeout == def.CloneTimeout) && fc.Scan.CloneTimeout > 0 {
		cfg.CloneTimeout = fc.Scan.CloneTimeout
	}

	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}

// Validate reports a configuration error for anything that would make a run
// impossible, mirroring ValidateConfig's minimal-schema-check shape.
func Validate(cfg Config) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("%w: missing API key (set GOOGLE_API_KEY or --api-key)", core.ErrConfiguration)
	}
	if cfg.Workers < 0 || cfg.MaxCandidates < 0 || cfg.ChunkSize < 0 {
		return fmt.Errorf("%w: negative limits are not allowed", core.ErrConfiguration)
	}
	return nil
}
