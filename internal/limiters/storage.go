package limiters

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/portalAuth/session"
)

// StorageCounter keeps counts in a session.Storage as "count expiryUnix".
// Increments are serialised within the process only.
type StorageCounter struct {
	storage session.Storage
	now     func() time.Time
	mu      sync.Mutex
}

// NewStorageCounter uses now for expiry; time.Now when nil.
func NewStorageCounter(storage session.Storage, now func() time.Time) *StorageCounter {
	if now == nil {
		now = time.Now
	}
	return &StorageCounter{storage: storage, now: now}
}

func (c *StorageCounter) load(ctx context.Context, key string) (int64, time.Time, error) {
	values, err := c.storage.Read(ctx, key)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	raw, ok := values[key]
	if !ok {
		return 0, time.Time{}, nil
	}
	countStr, expStr, _ := strings.Cut(raw, " ")
	count, err1 := strconv.ParseInt(countStr, 10, 64)
	exp, err2 := strconv.ParseInt(expStr, 10, 64)
	if err1 != nil || err2 != nil || count < 0 {
		// Unreadable counters start over.
		return 0, time.Time{}, nil
	}
	expiry := time.Unix(exp, 0)
	if !c.now().Before(expiry) {
		return 0, time.Time{}, nil
	}
	return count, expiry, nil
}

func (c *StorageCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count, expiry, err := c.load(ctx, key)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		expiry = c.now().Add(window)
	}
	count++
	value := strconv.FormatInt(count, 10) + " " + strconv.FormatInt(expiry.Unix(), 10)
	if err := c.storage.Write(ctx, session.Batch{Set: map[string]string{key: value}}); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return count, nil
}

func (c *StorageCounter) Get(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	count, _, err := c.load(ctx, key)
	return count, err
}

func (c *StorageCounter) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.storage.Write(ctx, session.Batch{Delete: []string{key}}); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}
