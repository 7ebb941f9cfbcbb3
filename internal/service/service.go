package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/links2go/links2go/internal/metrics"
	"github.com/links2go/links2go/internal/models"
	"github.com/links2go/links2go/internal/storage"
)

var (
	// ErrInvalidURL is returned when the original URL is malformed or uses a
	// scheme other than http or https.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidShortCode is returned when a custom short code doesn't match
	// the configured alphabet and length.
	ErrInvalidShortCode = errors.New("invalid short code")
	// ErrURLExpired is returned when a short code exists but its expiration
	// has passed.
	ErrURLExpired = errors.New("url expired")
	// ErrMaxRetriesExceeded is returned when the maximum number of retries
	// for generating a short code is exceeded. Given the keyspace size this
	// is an operational alarm, not an expected path.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")
)

// maxGenerateAttempts bounds the generate-and-create loop for random codes.
const maxGenerateAttempts = 10

// defaultClickTimeout bounds the detached click-recording write so it cannot
// pile up behind a slow store.
const defaultClickTimeout = 5 * time.Second

// URLRepository defines the interface for working with URL records at the
// business logic layer.
type URLRepository interface {
	// Create inserts a new URL record. The write must be atomic
	// "create only if absent": a short code collision is reported as
	// storage.ErrShortCodeExists, never as a silent overwrite.
	Create(ctx context.Context, url *models.URL) error

	// GetByShortCode retrieves a URL record by its short code.
	// Returns storage.ErrURLNotFound if no record exists.
	GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error)

	// IncrementClickCount atomically increments the record's click counter.
	IncrementClickCount(ctx context.Context, shortCode string) error

	// Delete removes the URL record and its click history as one unit.
	// Reports whether a record existed; idempotent.
	Delete(ctx context.Context, shortCode string) (bool, error)
}

// ClickLog defines the interface for the bounded per-code click history.
type ClickLog interface {
	// Append records an event at the front of the code's history,
	// evicting the oldest entries beyond the retention cap.
	Append(ctx context.Context, shortCode string, event models.ClickEvent) error

	// ReadAll returns the retained history, most recent first.
	ReadAll(ctx context.Context, shortCode string) ([]models.ClickEvent, error)
}

// CodeGenerator produces and validates short codes.
type CodeGenerator interface {
	Generate() (string, error)
	IsValid(code string) bool
}

// URLService orchestrates short code generation, record storage, redirect
// resolution, click recording and deletion. It is the sole writer of URL
// records and their click histories.
type URLService struct {
	repo    URLRepository
	clicks  ClickLog
	codes   CodeGenerator
	metrics metrics.Recorder
	logger  *slog.Logger

	now          func() time.Time
	clickTimeout time.Duration
}

// NewURLService creates a new URLService. A nil recorder disables metrics.
func NewURLService(repo URLRepository, clicks ClickLog, codes CodeGenerator, rec metrics.Recorder, logger *slog.Logger) *URLService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &URLService{
		repo:         repo,
		clicks:       clicks,
		codes:        codes,
		metrics:      rec,
		logger:       logger,
		now:          time.Now,
		clickTimeout: defaultClickTimeout,
	}
}

// ShortenURL stores a new shortened URL and returns its record.
//
// With a custom code, the code must match the configured format and must not
// be taken by a live record. Without one, random codes are generated and
// written until the atomic create succeeds, up to maxGenerateAttempts.
// A positive expiresIn sets an absolute expiration relative to now.
func (s *URLService) ShortenURL(ctx context.Context, originalURL, customCode string, expiresIn time.Duration) (*models.URL, error) {
	const op = "service.URLService.ShortenURL"

	normalized, err := normalizeURL(originalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	url := &models.URL{
		OriginalURL: normalized,
		ClickCount:  0,
		IsActive:    true,
		CreatedAt:   now,
	}
	if expiresIn > 0 {
		url.ExpiresAt = now.Add(expiresIn)
	}

	if customCode != "" {
		if !s.codes.IsValid(customCode) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidShortCode)
		}

		url.ShortCode = customCode
		if err := s.repo.Create(ctx, url); err != nil {
			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		s.metrics.URLShortened(true)
		return url, nil
	}

	for i := 0; i < maxGenerateAttempts; i++ {
		code, err := s.codes.Generate()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		url.ShortCode = code
		err = s.repo.Create(ctx, url)
		if err != nil {
			// The atomic create is the uniqueness check: a rejected
			// write means this code collided, so draw another.
			if errors.Is(err, storage.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		s.metrics.URLShortened(false)
		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// ResolveShortCode retrieves the record a redirect should target and records
// the click. Malformed codes are rejected before touching storage. Inactive
// and missing records report storage.ErrURLNotFound; lapsed records report
// ErrURLExpired, so the caller can distinguish 404 from 410 regardless of
// whether the store has physically evicted the key yet.
//
// Click recording is fire-and-forget: it runs detached from the request so
// neither its latency nor its failure can delay or break the redirect, and
// cancellation of the request doesn't cancel it.
func (s *URLService) ResolveShortCode(ctx context.Context, shortCode string, click models.ClickEvent) (*models.URL, error) {
	const op = "service.URLService.ResolveShortCode"

	if !s.codes.IsValid(shortCode) {
		s.metrics.Redirect(metrics.RedirectNotFound)
		return nil, fmt.Errorf("%s: %w", op, storage.ErrURLNotFound)
	}

	url, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, storage.ErrURLNotFound) {
			s.metrics.Redirect(metrics.RedirectNotFound)
		}
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	if !url.IsActive {
		s.metrics.Redirect(metrics.RedirectNotFound)
		return nil, fmt.Errorf("%s: %w", op, storage.ErrURLNotFound)
	}

	if url.Expired(s.now()) {
		s.metrics.Redirect(metrics.RedirectExpired)
		return nil, fmt.Errorf("%s: %w", op, ErrURLExpired)
	}

	if click.Timestamp.IsZero() {
		click.Timestamp = s.now()
	}
	go s.recordClick(context.WithoutCancel(ctx), shortCode, click)

	s.metrics.Redirect(metrics.RedirectSuccess)
	return url, nil
}

// recordClick performs the best-effort analytics writes for one redirect.
// Failures are logged and swallowed; both writes are safe to lose.
func (s *URLService) recordClick(ctx context.Context, shortCode string, click models.ClickEvent) {
	ctx, cancel := context.WithTimeout(ctx, s.clickTimeout)
	defer cancel()

	if err := s.repo.IncrementClickCount(ctx, shortCode); err != nil {
		s.logger.Error("failed to increment click count",
			slog.String("short_code", shortCode),
			slog.Any("err", err))
	}

	if err := s.clicks.Append(ctx, shortCode, click); err != nil {
		s.logger.Error("failed to record click event",
			slog.String("short_code", shortCode),
			slog.Any("err", err))
	}
}

// GetURL retrieves a URL record without recording a click. Used for QR code
// generation and other read-only lookups.
func (s *URLService) GetURL(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "service.URLService.GetURL"

	if !s.codes.IsValid(shortCode) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrURLNotFound)
	}

	url, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url: %w", op, err)
	}

	return url, nil
}

// GetAnalytics joins a URL record with its retained click history.
func (s *URLService) GetAnalytics(ctx context.Context, shortCode string) (*models.URLAnalytics, error) {
	const op = "service.URLService.GetAnalytics"

	if !s.codes.IsValid(shortCode) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrURLNotFound)
	}

	url, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url: %w", op, err)
	}

	clicks, err := s.clicks.ReadAll(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read click events: %w", op, err)
	}

	return &models.URLAnalytics{
		URL:          url,
		RecentClicks: clicks,
	}, nil
}

// DeleteURL removes a URL record together with its click history and reports
// whether a record existed. Deleting an absent code is not an error.
func (s *URLService) DeleteURL(ctx context.Context, shortCode string) (bool, error) {
	const op = "service.URLService.DeleteURL"

	if !s.codes.IsValid(shortCode) {
		return false, nil
	}

	deleted, err := s.repo.Delete(ctx, shortCode)
	if err != nil {
		return false, fmt.Errorf("%s: failed to delete url: %w", op, err)
	}

	if deleted {
		s.metrics.URLDeleted()
	}

	return deleted, nil
}

// normalizeURL parses and re-serializes the original URL, permitting only
// absolute http and https URLs.
func normalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidURL
	}

	if u.Host == "" {
		return "", ErrInvalidURL
	}

	return u.String(), nil
}
