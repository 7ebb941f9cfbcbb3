package models

import "time"

// URL represents a shortened URL and its associated metadata.
type URL struct {
	// ShortCode is the short code or key associated with the original URL.
	ShortCode string
	// OriginalURL is the original, full-length URL that the short code points to.
	OriginalURL string
	// ClickCount tracks the number of times the shortened URL has been accessed.
	ClickCount int64
	// IsActive reports whether the URL can still be resolved. Always true on
	// creation; reserved for soft-disabling URLs without deleting them.
	IsActive bool
	// CreatedAt is the timestamp indicating when the shortened URL was created.
	CreatedAt time.Time
	// ExpiresAt is the timestamp after which the URL no longer resolves.
	// The zero value means the URL never expires.
	ExpiresAt time.Time
}

// Expired reports whether the URL has lapsed as of now. URLs without an
// expiration never expire.
func (u *URL) Expired(now time.Time) bool {
	return !u.ExpiresAt.IsZero() && u.ExpiresAt.Before(now)
}

// ClickEvent represents a single recorded redirect with requester metadata.
type ClickEvent struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent,omitempty"`
	Referer   string    `json:"referer,omitempty"`
}

// URLAnalytics joins a URL record with its retained click history,
// most recent click first.
type URLAnalytics struct {
	URL          *URL
	RecentClicks []ClickEvent
}
