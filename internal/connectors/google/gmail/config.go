package gmail

import (
	"time"

	"github.com/custodia-labs/mailmirror/internal/connectors/google"
	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

// Config holds Gmail client settings.
type Config struct {
	// TrackedLabel restricts listing to one label (default INBOX).
	TrackedLabel string
	// IncludeSpamTrash lists messages from SPAM and TRASH as well.
	IncludeSpamTrash bool
	// PageSize is the maxResults of list calls (1-500).
	PageSize int64
	// CallTimeout bounds every API call.
	CallTimeout time.Duration
	// RateLimit throttles calls across all accounts.
	RateLimit google.RateLimitConfig
}

// Defaults for Config.
const (
	DefaultPageSize    int64 = 500
	MaxPageSize        int64 = 500
	DefaultCallTimeout       = 30 * time.Second
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		TrackedLabel: domain.LabelInbox,
		PageSize:     DefaultPageSize,
		CallTimeout:  DefaultCallTimeout,
		RateLimit:    google.DefaultRateLimit,
	}
}

// withDefaults fills zero fields.
func (c *Config) withDefaults() *Config {
	out := *c
	if out.TrackedLabel == "" {
		out.TrackedLabel = domain.LabelInbox
	}
	if out.PageSize <= 0 || out.PageSize > MaxPageSize {
		out.PageSize = DefaultPageSize
	}
	if out.CallTimeout <= 0 {
		out.CallTimeout = DefaultCallTimeout
	}
	return &out
}

// Query returns the search expression used when listing the mailbox.
// Chats are never mirrored.
func (c *Config) Query() string {
	return "-in:chats"
}
