package http

import (
	"strings"
	"time"

	"github.com/links2go/links2go/internal/models"
)

// shortenRequest represents the structure for a request to shorten a URL.
// ExpiresIn is capped at ten years; beyond that a seconds-to-Duration
// conversion could overflow into a negative value.
type shortenRequest struct {
	URL        string `json:"url" validate:"required,url"`
	CustomCode string `json:"custom_code"`
	ExpiresIn  int64  `json:"expires_in" validate:"omitempty,gt=0,lte=315360000"`
}

// shortenResponse represents the structure for a response containing the
// shortened URL.
type shortenResponse struct {
	ShortCode   string     `json:"short_code"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func toShortenResponse(baseURL string, url *models.URL) shortenResponse {
	return shortenResponse{
		ShortCode:   url.ShortCode,
		ShortURL:    shortURL(baseURL, url.ShortCode),
		OriginalURL: url.OriginalURL,
		ExpiresAt:   optionalTime(url.ExpiresAt),
	}
}

// clickEventResponse represents a single recorded click.
type clickEventResponse struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referer   string    `json:"referer,omitempty"`
}

// analyticsResponse represents the structure for a response containing a URL
// record joined with its recent clicks.
type analyticsResponse struct {
	ShortCode    string               `json:"short_code"`
	OriginalURL  string               `json:"original_url"`
	ClickCount   int64                `json:"click_count"`
	CreatedAt    time.Time            `json:"created_at"`
	ExpiresAt    *time.Time           `json:"expires_at,omitempty"`
	RecentClicks []clickEventResponse `json:"recent_clicks"`
}

func toAnalyticsResponse(analytics *models.URLAnalytics) analyticsResponse {
	clicks := make([]clickEventResponse, 0, len(analytics.RecentClicks))
	for _, click := range analytics.RecentClicks {
		clicks = append(clicks, clickEventResponse{
			Timestamp: click.Timestamp,
			IP:        click.IP,
			UserAgent: click.UserAgent,
			Referer:   click.Referer,
		})
	}

	return analyticsResponse{
		ShortCode:    analytics.URL.ShortCode,
		OriginalURL:  analytics.URL.OriginalURL,
		ClickCount:   analytics.URL.ClickCount,
		CreatedAt:    analytics.URL.CreatedAt,
		ExpiresAt:    optionalTime(analytics.URL.ExpiresAt),
		RecentClicks: clicks,
	}
}

// qrCodeResponse represents the structure for a response containing a QR
// code as a PNG data URL.
type qrCodeResponse struct {
	QRCode      string `json:"qr_code"`
	ShortURL    string `json:"short_url"`
	OriginalURL string `json:"original_url"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func shortURL(baseURL, shortCode string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + shortCode
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
