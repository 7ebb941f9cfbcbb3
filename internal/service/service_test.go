package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/links2go/links2go/internal/models"
	"github.com/links2go/links2go/internal/storage"
)

type MockURLRepository struct {
	mock.Mock
}

func (r *MockURLRepository) Create(ctx context.Context, url *models.URL) error {
	args := r.Called(ctx, url)
	return args.Error(0)
}

func (r *MockURLRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	args := r.Called(ctx, shortCode)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (r *MockURLRepository) IncrementClickCount(ctx context.Context, shortCode string) error {
	args := r.Called(ctx, shortCode)
	return args.Error(0)
}

func (r *MockURLRepository) Delete(ctx context.Context, shortCode string) (bool, error) {
	args := r.Called(ctx, shortCode)
	return args.Bool(0), args.Error(1)
}

type MockClickLog struct {
	mock.Mock
}

func (l *MockClickLog) Append(ctx context.Context, shortCode string, event models.ClickEvent) error {
	args := l.Called(ctx, shortCode, event)
	return args.Error(0)
}

func (l *MockClickLog) ReadAll(ctx context.Context, shortCode string) ([]models.ClickEvent, error) {
	args := l.Called(ctx, shortCode)
	events, _ := args.Get(0).([]models.ClickEvent)
	return events, args.Error(1)
}

type MockCodeGenerator struct {
	mock.Mock
}

func (g *MockCodeGenerator) Generate() (string, error) {
	args := g.Called()
	return args.String(0), args.Error(1)
}

func (g *MockCodeGenerator) IsValid(code string) bool {
	args := g.Called(code)
	return args.Bool(0)
}

// recordingMetrics captures emitted metrics for assertions.
type recordingMetrics struct {
	mu        sync.Mutex
	shortened []bool
	redirects []string
	deleted   int
}

func (m *recordingMetrics) URLShortened(customCode bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shortened = append(m.shortened, customCode)
}

func (m *recordingMetrics) Redirect(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redirects = append(m.redirects, status)
}

func (m *recordingMetrics) URLDeleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted++
}

func (m *recordingMetrics) ObserveRequest(string, string, int, time.Duration) {}

type URLServiceTestSuite struct {
	suite.Suite
	errUnknown error
	now        time.Time

	repoMock   *MockURLRepository
	clicksMock *MockClickLog
	codesMock  *MockCodeGenerator
	rec        *recordingMetrics
	svc        *URLService
}

func (suite *URLServiceTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
	suite.now = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
}

func (suite *URLServiceTestSuite) SetupSubTest() {
	suite.repoMock = new(MockURLRepository)
	suite.clicksMock = new(MockClickLog)
	suite.codesMock = new(MockCodeGenerator)
	suite.rec = new(recordingMetrics)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	suite.svc = NewURLService(suite.repoMock, suite.clicksMock, suite.codesMock, suite.rec, logger)
	suite.svc.now = func() time.Time { return suite.now }
}

func (suite *URLServiceTestSuite) TearDownSubTest() {
	suite.repoMock.AssertExpectations(suite.T())
	suite.clicksMock.AssertExpectations(suite.T())
	suite.codesMock.AssertExpectations(suite.T())
}

func (suite *URLServiceTestSuite) activeURL(shortCode string) *models.URL {
	return &models.URL{
		ShortCode:   shortCode,
		OriginalURL: "https://example.com/a",
		ClickCount:  0,
		IsActive:    true,
		CreatedAt:   suite.now.Add(-time.Hour),
	}
}

// expectClickRecorded registers expectations for the detached click write
// and returns a channel that receives once per completed operation.
func (suite *URLServiceTestSuite) expectClickRecorded(shortCode string, incrErr, appendErr error) <-chan struct{} {
	done := make(chan struct{}, 2)

	suite.repoMock.
		On("IncrementClickCount", mock.Anything, shortCode).
		Once().
		Run(func(mock.Arguments) { done <- struct{}{} }).
		Return(incrErr)

	suite.clicksMock.
		On("Append", mock.Anything, shortCode, mock.Anything).
		Once().
		Run(func(mock.Arguments) { done <- struct{}{} }).
		Return(appendErr)

	return done
}

func (suite *URLServiceTestSuite) waitClickRecorded(done <-chan struct{}) {
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			suite.Fail("click recording did not complete")
		}
	}
}

func (suite *URLServiceTestSuite) TestShortenURL() {
	suite.Run("invalid url scheme", func() {
		url, err := suite.svc.ShortenURL(context.Background(), "ftp://bad.example", "", 0)

		suite.Error(err)
		suite.ErrorIs(err, ErrInvalidURL)
		suite.Nil(url)
	})

	suite.Run("url without host", func() {
		url, err := suite.svc.ShortenURL(context.Background(), "https://", "", 0)

		suite.Error(err)
		suite.ErrorIs(err, ErrInvalidURL)
		suite.Nil(url)
	})

	suite.Run("invalid custom code format", func() {
		suite.codesMock.
			On("IsValid", "bad code!").
			Once().
			Return(false)

		url, err := suite.svc.ShortenURL(context.Background(), "https://example.com/a", "bad code!", 0)

		suite.Error(err)
		suite.ErrorIs(err, ErrInvalidShortCode)
		suite.Nil(url)
	})

	suite.Run("custom code taken", func() {
		suite.codesMock.
			On("IsValid", "promo1").
			Once().
			Return(true)
		suite.repoMock.
			On("Create", context.Background(), mock.Anything).
			Once().
			Return(storage.ErrShortCodeExists)

		url, err := suite.svc.ShortenURL(context.Background(), "https://example.com/a", "promo1", 0)

		suite.Error(err)
		suite.ErrorIs(err, storage.ErrShortCodeExists)
		suite.Nil(url)
	})

	suite.Run("custom code success", func() {
		suite.codesMock.
			On("IsValid", "promo1").
			Once().
			Return(true)
		suite.repoMock.
			On("Create", context.Background(), mock.MatchedBy(func(u *models.URL) bool {
				return u.ShortCode == "promo1" && u.IsActive && u.ClickCount == 0
			})).
			Once().
			Return(nil)

		url, err := suite.svc.ShortenURL(context.Background(), "https://example.com/a", "promo1", 0)

		suite.NoError(err)
		suite.NotNil(url)
		suite.Equal("promo1", url.ShortCode)
		suite.Equal("https://example.com/a", url.OriginalURL)
		suite.True(url.CreatedAt.Equal(suite.now))
		suite.True(url.ExpiresAt.IsZero())
		suite.Equal([]bool{true}, suite.rec.shortened)
	})

	suite.Run("expiration relative to now", func() {
		suite.codesMock.
			On("IsValid", "promo1").
			Once().
			Return(true)
		suite.repoMock.
			On("Create", context.Background(), mock.Anything).
			Once().
			Return(nil)

		url, err := suite.svc.ShortenURL(context.Background(), "https://example.com/a", "promo1", time.Hour)

		suite.NoError(err)
		suite.NotNil(url)
		suite.True(url.ExpiresAt.Equal(suite.now.Add(time.Hour)))
	})

	suite.Run("generated code success", func() {
		suite.codesMock.
			On("Generate").
			Once().
			Return("abc123", nil)
		suite.repoMock.
			On("Create", context.Background(), mock.MatchedBy(func(u *models.URL) bool {
				return u.ShortCode == "abc123"
			})).
			Once().
			Return(nil)

		url, err := suite.svc.ShortenURL(context.Background(), "https://example.com/a", "", 0)

		suite.NoError(err)
		suite.NotNil(url)
		suite.Equal("abc123", url.ShortCode)
		suite.Equal([]bool{false}, suite.rec.shortened)
	})

	suite.Run("collision then success", func() {
		suite.codesMock.
			On("Generate").
			Twice().
			Return("abc123", nil)
		suite.repoMock.
			On("Create", context.Background(), mock.Anything).
			Once().
			Return(storage.ErrShortCodeExists)
		suite.repoMock.
			On("Create", context.Background(), mock.Anything).
			Once().
			Return(nil)

		url, err := suite.svc.ShortenURL(context.Background(), "https://example.com/a", "", 0)

		suite.NoError(err)
		suite.NotNil(url)
	})

	suite.Run("maximum retries error", func() {
		suite.codesMock.
			On("Generate").
			Times(maxGenerateAttempts).
			Return("abc123", nil)
		suite.repoMock.
			On("Create", context.Background(), mock.Anything).
			Times(maxGenerateAttempts).
			Return(storage.ErrShortCodeExists)

		url, err := suite.svc.ShortenURL(context.Background(), "https://example.com/a", "", 0)

		suite.Error(err)
		suite.ErrorIs(err, ErrMaxRetriesExceeded)
		suite.Nil(url)
	})

	suite.Run("unknown error", func() {
		suite.codesMock.
			On("Generate").
			Once().
			Return("abc123", nil)
		suite.repoMock.
			On("Create", context.Background(), mock.Anything).
			Once().
			Return(suite.errUnknown)

		url, err := suite.svc.ShortenURL(context.Background(), "https://example.com/a", "", 0)

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)
	})
}

func (suite *URLServiceTestSuite) TestResolveShortCode() {
	suite.Run("malformed code rejected without store round-trip", func() {
		suite.codesMock.
			On("IsValid", "garbage!").
			Once().
			Return(false)

		url, err := suite.svc.ResolveShortCode(context.Background(), "garbage!", models.ClickEvent{})

		suite.Error(err)
		suite.ErrorIs(err, storage.ErrURLNotFound)
		suite.Nil(url)
		suite.Equal([]string{"not_found"}, suite.rec.redirects)
	})

	suite.Run("url not found", func() {
		suite.codesMock.
			On("IsValid", "abc123").
			Once().
			Return(true)
		suite.repoMock.
			On("GetByShortCode", context.Background(), "abc123").
			Once().
			Return(nil, storage.ErrURLNotFound)

		url, err := suite.svc.ResolveShortCode(context.Background(), "abc123", models.ClickEvent{})

		suite.Error(err)
		suite.ErrorIs(err, storage.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("storage error is not not-found", func() {
		suite.codesMock.
			On("IsValid", "abc123").
			Once().
			Return(true)
		suite.repoMock.
			On("GetByShortCode", context.Background(), "abc123").
			Once().
			Return(nil, suite.errUnknown)

		url, err := suite.svc.ResolveShortCode(context.Background(), "abc123", models.ClickEvent{})

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.NotErrorIs(err, storage.ErrURLNotFound)
		suite.Nil(url)
		suite.Empty(suite.rec.redirects)
	})

	suite.Run("inactive url", func() {
		inactive := suite.activeURL("abc123")
		inactive.IsActive = false

		suite.codesMock.
			On("IsValid", "abc123").
			Once().
			Return(true)
		suite.repoMock.
			On("GetByShortCode", context.Background(), "abc123").
			Once().
			Return(inactive, nil)

		url, err := suite.svc.ResolveShortCode(context.Background(), "abc123", models.ClickEvent{})

		suite.Error(err)
		suite.ErrorIs(err, storage.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("expired url", func() {
		expired := suite.activeURL("abc123")
		expired.ExpiresAt = suite.now.Add(-time.Second)

		suite.codesMock.
			On("IsValid", "abc123").
			Once().
			Return(true)
		suite.repoMock.
			On("GetByShortCode", context.Background(), "abc123").
			Once().
			Return(expired, nil)

		url, err := suite.svc.ResolveShortCode(context.Background(), "abc123", models.ClickEvent{})

		suite.Error(err)
		suite.ErrorIs(err, ErrURLExpired)
		suite.NotErrorIs(err, storage.ErrURLNotFound)
		suite.Nil(url)
		suite.Equal([]string{"expired"}, suite.rec.redirects)
	})

	suite.Run("resolves until the expiration instant", func() {
		url := suite.activeURL("abc123")
		url.ExpiresAt = suite.now

		suite.codesMock.
			On("IsValid", "abc123").
			Once().
			Return(true)
		suite.repoMock.
			On("GetByShortCode", context.Background(), "abc123").
			Once().
			Return(url, nil)
		done := suite.expectClickRecorded("abc123", nil, nil)

		got, err := suite.svc.ResolveShortCode(context.Background(), "abc123", models.ClickEvent{IP: "192.0.2.1"})

		suite.NoError(err)
		suite.NotNil(got)
		suite.waitClickRecorded(done)
	})

	suite.Run("success records click", func() {
		suite.codesMock.
			On("IsValid", "abc123").
			Once().
			Return(true)
		suite.repoMock.
			On("GetByShortCode", context.Background(), "abc123").
			Once().
			Return(suite.activeURL("abc123"), nil)
		done := suite.expectClickRecorded("abc123", nil, nil)

		url, err := suite.svc.ResolveShortCode(context.Background(), "abc123", models.ClickEvent{IP: "192.0.2.1"})

		suite.NoError(err)
		suite.NotNil(url)
		suite.Equal("https://example.com/a", url.OriginalURL)
		suite.Equal([]string{"success"}, suite.rec.redirects)
		suite.waitClickRecorded(done)
	})

	suite.Run("click recording failure does not break the redirect", func() {
		suite.codesMock.
			On("IsValid", "abc123").
			Once().
			Return(true)
		suite.repoMock.
			On("GetByShortCode", context.Background(), "abc123").
			Once().
			Return(suite.activeURL("abc123"), nil)
		done := suite.expectClickRecorded("abc123", suite.errUnknown, suite.errUnknown)

		url, err := suite.svc.ResolveShortCode(context.Background(), "abc123", models.ClickEvent{IP: "192.0.2.1"})

		suite.NoError(err)
		suite.NotNil(url)
		suite.waitClickRecorded(done)
	})
}

func (suite *URLServiceTestSuite) TestGetAnalytics() {
	suite.Run("url not found", func() {
		suite.codesMock.
			On("IsValid", "abc123").
			Once().
			Return(true)
		suite.repoMock.
			On("GetByShortCode", context.Background(), "abc123").
			Once().
			Return(nil, storage.ErrURLNotFound)

		analytics, err := suite.svc.GetAnalytics(context.Background(), "abc123")

		suite.Error(err)
		suite.ErrorIs(err, storage.ErrURLNotFound)
		suite.Nil(analytics)
	})

	suite.Run("click history error", func() {
		suite.codesMock.
			On("IsValid", "abc123").
			Once().
			Return(true)
		suite.repoMock.
			On("GetByShortCode", context.Background(), "abc123").
			Once().
			Return(suite.activeURL("abc123"), nil)
		suite.clicksMock.
			On("ReadAll", context.Background(), "abc123").
			Once().
			Return(nil, suite.errUnknown)

		analytics, err := suite.svc.GetAnalytics(context.Background(), "abc123")

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(analytics)
	})

	suite.Run("success", func() {
		clicks := []models.ClickEvent{
			{Timestamp: suite.now, IP: "192.0.2.1"},
		}

		suite.codesMock.
			On("IsValid", "abc123").
			Once().
			Return(true)
		suite.repoMock.
			On("GetByShortCode", context.Background(), "abc123").
			Once().
			Return(suite.activeURL("abc123"), nil)
		suite.clicksMock.
			On("ReadAll", context.Background(), "abc123").
			Once().
			Return(clicks, nil)

		analytics, err := suite.svc.GetAnalytics(context.Background(), "abc123")

		suite.NoError(err)
		suite.NotNil(analytics)
		suite.Equal("abc123", analytics.URL.ShortCode)
		suite.Equal(clicks, analytics.RecentClicks)
	})
}

func (suite *URLServiceTestSuite) TestDeleteURL() {
	suite.Run("malformed code", func() {
		suite.codesMock.
			On("IsValid", "garbage!").
			Once().
			Return(false)

		deleted, err := suite.svc.DeleteURL(context.Background(), "garbage!")

		suite.NoError(err)
		suite.False(deleted)
	})

	suite.Run("url not found", func() {
		suite.codesMock.
			On("IsValid", "abc123").
			Once().
			Return(true)
		suite.repoMock.
			On("Delete", context.Background(), "abc123").
			Once().
			Return(false, nil)

		deleted, err := suite.svc.DeleteURL(context.Background(), "abc123")

		suite.NoError(err)
		suite.False(deleted)
		suite.Zero(suite.rec.deleted)
	})

	suite.Run("unknown error", func() {
		suite.codesMock.
			On("IsValid", "abc123").
			Once().
			Return(true)
		suite.repoMock.
			On("Delete", context.Background(), "abc123").
			Once().
			Return(false, suite.errUnknown)

		deleted, err := suite.svc.DeleteURL(context.Background(), "abc123")

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.False(deleted)
	})

	suite.Run("success", func() {
		suite.codesMock.
			On("IsValid", "abc123").
			Once().
			Return(true)
		suite.repoMock.
			On("Delete", context.Background(), "abc123").
			Once().
			Return(true, nil)

		deleted, err := suite.svc.DeleteURL(context.Background(), "abc123")

		suite.NoError(err)
		suite.True(deleted)
		suite.Equal(1, suite.rec.deleted)
	})
}

func (suite *URLServiceTestSuite) TestGetURL() {
	suite.Run("malformed code", func() {
		suite.codesMock.
			On("IsValid", "garbage!").
			Once().
			Return(false)

		url, err := suite.svc.GetURL(context.Background(), "garbage!")

		suite.Error(err)
		suite.ErrorIs(err, storage.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		suite.codesMock.
			On("IsValid", "abc123").
			Once().
			Return(true)
		suite.repoMock.
			On("GetByShortCode", context.Background(), "abc123").
			Once().
			Return(suite.activeURL("abc123"), nil)

		url, err := suite.svc.GetURL(context.Background(), "abc123")

		suite.NoError(err)
		suite.NotNil(url)
		suite.Equal("abc123", url.ShortCode)
	})
}

func TestURLService(t *testing.T) {
	suite.Run(t, new(URLServiceTestSuite))
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "http url",
			raw:  "http://example.com/a",
			want: "http://example.com/a",
		},
		{
			name: "https url",
			raw:  "https://example.com/a?q=1",
			want: "https://example.com/a?q=1",
		},
		{
			name:    "ftp url",
			raw:     "ftp://bad.example",
			wantErr: true,
		},
		{
			name:    "javascript url",
			raw:     "javascript:alert(1)",
			wantErr: true,
		},
		{
			name:    "relative url",
			raw:     "/just/a/path",
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeURL(tt.raw)

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Fatalf("normalizeURL(%q) error = %v, want ErrInvalidURL", tt.raw, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("normalizeURL(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("normalizeURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
