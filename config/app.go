package config

import (
	"os"
	"strconv"
	"time"
)

// App holds the tunables of the chat pipeline. The quiet period and
// arrival tolerance are deliberately independent knobs; the defaults
// mirror the values the debounce was designed around.
type App struct {
	QuietPeriod      time.Duration // silence required before a turn dispatches
	ArrivalTolerance time.Duration // "newer message arrived" supersession window
	MediaSendDelay   time.Duration // gap between consecutive media sends
	BrainTimeout     time.Duration // upper bound on one brain invocation

	HistoryLimit      int64 // turn entries handed to the brain
	InventoryLimit    int   // vehicles in the brain's snapshot
	InventoryCacheTTL time.Duration

	AppraisalBaseURL string // trade-in intake page, parameterized by lead id
}

func LoadApp() App {
	return App{
		QuietPeriod:       envDuration("CHAT_QUIET_PERIOD_MS", 3500),
		ArrivalTolerance:  envDuration("CHAT_ARRIVAL_TOLERANCE_MS", 3000),
		MediaSendDelay:    envDuration("MEDIA_SEND_DELAY_MS", 800),
		BrainTimeout:      envDuration("BRAIN_TIMEOUT_MS", 25000),
		HistoryLimit:      int64(envInt("CHAT_HISTORY_LIMIT", 10)),
		InventoryLimit:    envInt("INVENTORY_LIMIT", 20),
		InventoryCacheTTL: envDuration("INVENTORY_CACHE_TTL_MS", 60000),
		AppraisalBaseURL:  envString("APPRAISAL_BASE_URL", "https://copiloto-crm.web.app/appraisal"),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDuration(key string, defMillis int) time.Duration {
	return time.Duration(envInt(key, defMillis)) * time.Millisecond
}
