package models

import "time"

// Tier is a named service level. Limits for each tier come from the
// configuration; adding a tier is a config change, not a code change.
type Tier string

const (
	TierAnonymous Tier = "anonymous"
	TierFree      Tier = "free"
	TierPro       Tier = "pro"
	TierBusiness  Tier = "business"
	TierAdmin     Tier = "admin"
)

func (t Tier) String() string {
	return string(t)
}

// TierLimits holds the quota parameters for one tier. Immutable after
// process start; shared read-only by the authenticator and the limiter.
type TierLimits struct {
	RequestsPerWindow int      `json:"requests_per_window"`
	WindowSeconds     int      `json:"window_seconds"`
	MaxBatchSize      int      `json:"max_batch_size"`
	AllowedStyles     []string `json:"allowed_styles"`
}

func (l TierLimits) Window() time.Duration {
	return time.Duration(l.WindowSeconds) * time.Second
}

func (l TierLimits) AllowsStyle(style string) bool {
	for _, s := range l.AllowedStyles {
		if s == style {
			return true
		}
	}
	return false
}
