package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/links2go/links2go/internal/models"
	"github.com/links2go/links2go/internal/storage"
)

// Hash field names for url:<shortCode> records. Timestamps are stored as
// RFC 3339 strings, clickCount as a decimal string so HINCRBY works on it.
const (
	fieldOriginalURL = "originalUrl"
	fieldCreatedAt   = "createdAt"
	fieldExpiresAt   = "expiresAt"
	fieldClickCount  = "clickCount"
	fieldIsActive    = "isActive"
)

// createScript writes a record only if its key is absent, making
// check-then-create a single atomic command. It also registers the
// store-level expiration, so a record with a TTL can never be written
// without one. Returns 1 when the record was created, 0 on collision.
var createScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1],
	'originalUrl', ARGV[1],
	'createdAt', ARGV[2],
	'expiresAt', ARGV[3],
	'clickCount', ARGV[4],
	'isActive', ARGV[5])
if ARGV[6] ~= '' then
	redis.call('EXPIREAT', KEYS[1], tonumber(ARGV[6]))
end
return 1
`)

// incrementScript increments the click counter only while the record is
// still live. A click can land after its record was deleted or evicted, and
// a plain HINCRBY would then recreate the key as a counter-only orphan that
// blocks the short code from ever being shortened again.
var incrementScript = goredis.NewScript(`
if redis.call('HEXISTS', KEYS[1], 'originalUrl') == 0 then
	return 0
end
return redis.call('HINCRBY', KEYS[1], 'clickCount', 1)
`)

// URLRepository stores URL records in Redis hashes.
type URLRepository struct {
	client *goredis.Client
}

func NewURLRepository(client *goredis.Client) *URLRepository {
	return &URLRepository{
		client: client,
	}
}

// Create inserts a new URL record. It fails with storage.ErrShortCodeExists
// if a record for the same short code is already present. When the record
// carries an expiration, an absolute-time TTL is registered on the key so
// Redis evicts it even if the application never looks at it again.
func (r *URLRepository) Create(ctx context.Context, url *models.URL) error {
	const op = "storage.redis.URLRepository.Create"

	var expiresAt, expireAtUnix string
	if !url.ExpiresAt.IsZero() {
		expiresAt = url.ExpiresAt.Format(time.RFC3339Nano)
		expireAtUnix = strconv.FormatInt(url.ExpiresAt.Unix(), 10)
	}

	created, err := createScript.Run(ctx, r.client,
		[]string{urlKey(url.ShortCode)},
		url.OriginalURL,
		url.CreatedAt.Format(time.RFC3339Nano),
		expiresAt,
		strconv.FormatInt(url.ClickCount, 10),
		strconv.FormatBool(url.IsActive),
		expireAtUnix,
	).Int()
	if err != nil {
		return fmt.Errorf("%s: failed to create url record: %w", op, err)
	}

	if created == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrShortCodeExists)
	}

	return nil
}

// GetByShortCode retrieves a URL record. It fails with storage.ErrURLNotFound
// when the record was never created or has already been removed or evicted.
func (r *URLRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "storage.redis.URLRepository.GetByShortCode"

	data, err := r.client.HGetAll(ctx, urlKey(shortCode)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	// HGETALL returns an empty map for missing keys rather than an error.
	if data[fieldOriginalURL] == "" {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrURLNotFound)
	}

	url, err := parseURLRecord(shortCode, data)
	if err != nil {
		return nil, fmt.Errorf("%s: malformed url record: %w", op, err)
	}

	return url, nil
}

// IncrementClickCount atomically increments the click counter of a live
// record. Incrementing a record that no longer exists is a no-op, not an
// error: the click is best-effort and safe to drop.
func (r *URLRepository) IncrementClickCount(ctx context.Context, shortCode string) error {
	const op = "storage.redis.URLRepository.IncrementClickCount"

	err := incrementScript.Run(ctx, r.client, []string{urlKey(shortCode)}).Err()
	if err != nil {
		return fmt.Errorf("%s: failed to increment click count: %w", op, err)
	}

	return nil
}

// Delete removes a URL record together with its click history in a single
// MULTI/EXEC block, so a record can never outlive its analytics or vice
// versa. It reports whether a record existed and is idempotent.
func (r *URLRepository) Delete(ctx context.Context, shortCode string) (bool, error) {
	const op = "storage.redis.URLRepository.Delete"

	pipe := r.client.TxPipeline()
	urlDel := pipe.Del(ctx, urlKey(shortCode))
	pipe.Del(ctx, analyticsKey(shortCode))

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("%s: failed to delete url record: %w", op, err)
	}

	return urlDel.Val() > 0, nil
}

func parseURLRecord(shortCode string, data map[string]string) (*models.URL, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, data[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid %s field: %w", fieldCreatedAt, err)
	}

	var expiresAt time.Time
	if data[fieldExpiresAt] != "" {
		expiresAt, err = time.Parse(time.RFC3339Nano, data[fieldExpiresAt])
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", fieldExpiresAt, err)
		}
	}

	clickCount, err := strconv.ParseInt(data[fieldClickCount], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s field: %w", fieldClickCount, err)
	}

	return &models.URL{
		ShortCode:   shortCode,
		OriginalURL: data[fieldOriginalURL],
		ClickCount:  clickCount,
		IsActive:    data[fieldIsActive] == "true",
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
	}, nil
}
