package orchestrator

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables
// (§6 "Environment inputs"): explicit (flag-set) values always win.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.Model == "" {
		if v := os.Getenv("GUARDIAN_MODEL"); v != "" {
			cfg.Model = v
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("GUARDIAN_LLM_BASE_URL")
	}
	if cfg.CacheDir == "" {
		if v := os.Getenv("GUARDIAN_CACHE_DIR"); v != "" {
			cfg.CacheDir = v
		}
	}

	setBool := func(dst *bool, envKey string) {
		if *dst {
			return
		}
		if truthy(os.Getenv(envKey)) {
			*dst = true
		}
	}
	setBool(&cfg.Verbose, "GUARDIAN_VERBOSE")
	setBool(&cfg.CacheClear, "GUARDIAN_CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "GUARDIAN_CACHE_STRICT_PERMS")

	if cfg.Workers == 0 {
		if n, ok := envInt("GUARDIAN_WORKERS"); ok {
			cfg.Workers = n
		}
	}
	if cfg.MaxCandidates == 0 {
		if n, ok := envInt("GUARDIAN_MAX_CANDIDATES"); ok {
			cfg.MaxCandidates = n
		}
	}
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func envInt(key string) (int, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
