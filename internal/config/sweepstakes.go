package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Platform catalog. Campaign platform tags must come from this set; the
// labels are what observers render and what winner messages mention.
var PlatformLabels = map[string]string{
	"disney":    "Disney+",
	"prime":     "Prime Video",
	"paramount": "Paramount+",
	"netflix":   "Netflix",
	"appletv":   "Apple TV+",
	"testwin":   "Test Game",
}

// KnownPlatform reports whether key is part of the catalog.
func KnownPlatform(key string) bool {
	_, ok := PlatformLabels[key]
	return ok
}

type SweepstakesConfig struct {
	WelcomeCredits  int64
	ReferralCredits int64
	WinnerMonths    int
	DefaultCountry  string
	DefaultGoal     int64
	SeedPlatforms   []string
	DrawStaleAfter  time.Duration
	TxMaxRetries    int
	TxRetryBackoff  time.Duration
}

func LoadSweepstakesConfig() *SweepstakesConfig {
	return &SweepstakesConfig{
		WelcomeCredits:  getEnvAsInt64("SWEEP_WELCOME_CREDITS", 10),
		ReferralCredits: getEnvAsInt64("SWEEP_REFERRAL_CREDITS", 10),
		WinnerMonths:    int(getEnvAsInt64("SWEEP_WINNER_MONTHS", 1)),
		DefaultCountry:  getEnv("SWEEP_DEFAULT_COUNTRY", "FR"),
		DefaultGoal:     getEnvAsInt64("SWEEP_DEFAULT_GOAL", 1000),
		SeedPlatforms:   getEnvAsList("SWEEP_SEED_PLATFORMS", "disney,prime,paramount,netflix,appletv"),
		DrawStaleAfter:  getEnvAsDuration("SWEEP_DRAW_STALE_AFTER", 2*time.Minute),
		TxMaxRetries:    int(getEnvAsInt64("SWEEP_TX_MAX_RETRIES", 3)),
		TxRetryBackoff:  getEnvAsDuration("SWEEP_TX_RETRY_BACKOFF", 25*time.Millisecond),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key, defaultVal string) []string {
	raw := getEnv(key, defaultVal)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
