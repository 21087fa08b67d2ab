package orchestrator

import "time"

// Config holds the runtime configuration assembled from flags, environment,
// and an optional config file, in that precedence order (flags highest),
// narrowed to Guardian's knobs (§6 "Environment inputs").
type Config struct {
	// LLM
	APIKey  string
	BaseURL string
	Model   string

	// Cache
	CacheDir         string
	CacheClear       bool
	CacheStrictPerms bool

	// Scan tuning (§4.3, §5)
	Workers           int
	BaseBackoff       time.Duration
	MaxAttempts       int
	ChunkSize         int
	Overlap           int
	IndexChunkChars   int
	IndexOverlapChars int
	MaxCandidates     int
	CloneTimeout      time.Duration

	// Behavior
	Verbose bool
}

// defaults mirrors the flag-default idiom of cmd/goresearch/main.go: every
// default lives in one place so env/file overlay can compare against it.
func defaults() Config {
	return Config{
		Model:             "gpt-4o-mini",
		Workers:           3,
		BaseBackoff:       time.Second,
		MaxAttempts:       3,
		ChunkSize:         30,
		Overlap:           2,
		IndexChunkChars:   1000,
		IndexOverlapChars: 200,
		MaxCandidates:     50,
		CloneTimeout:      10 * time.Minute,
		CacheDir:          ".guardian-cache",
	}
}
