package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStorageTest(t *testing.T, ttl time.Duration) (*RedisStorage, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStorage(rdb, "dvss:ops", ttl), mr, func() {
		rdb.Close()
		mr.Close()
	}
}

// exerciseStorage runs the behavior every backend must share.
func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Read(ctx, Keys...)
	if err != nil {
		t.Fatalf("read empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty storage, got %v", got)
	}

	b, err := Encode(testActive(t))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := s.Write(ctx, b); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err = s.Read(ctx, Keys...)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	restored, err := Decode(got)
	if err != nil {
		t.Fatalf("decode stored session: %v", err)
	}
	if restored.Token() != "access-1" || restored.User().Username != "alice" {
		t.Fatalf("unexpected restored session %q %q", restored.Token(), restored.User().Username)
	}

	if err := s.Write(ctx, Batch{Set: map[string]string{KeyAccessToken: "access-2"}, Delete: []string{KeyRefreshToken}}); err != nil {
		t.Fatalf("partial write: %v", err)
	}
	got, err = s.Read(ctx, KeyAccessToken, KeyRefreshToken)
	if err != nil {
		t.Fatalf("read after partial write: %v", err)
	}
	if got[KeyAccessToken] != "access-2" {
		t.Fatalf("expected rotated token, got %q", got[KeyAccessToken])
	}
	if _, ok := got[KeyRefreshToken]; ok {
		t.Fatal("refresh token should have been deleted in the same batch")
	}

	if err := s.Write(ctx, ClearBatch()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, err = s.Read(ctx, Keys...)
	if err != nil {
		t.Fatalf("read after clear: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty storage after clear, got %v", got)
	}

	if err := s.Write(ctx, ClearBatch()); err != nil {
		t.Fatalf("clear must be idempotent: %v", err)
	}
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestRedisStorage(t *testing.T) {
	s, _, cleanup := newRedisStorageTest(t, 0)
	defer cleanup()
	exerciseStorage(t, s)
}

func TestRedisStorageUsesPrefixAndTTL(t *testing.T) {
	s, mr, cleanup := newRedisStorageTest(t, time.Hour)
	defer cleanup()

	if err := s.Write(context.Background(), Batch{Set: map[string]string{KeyAccessToken: "tok"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if v, err := mr.Get("dvss:ops:" + KeyAccessToken); err != nil || v != "tok" {
		t.Fatalf("expected prefixed key, got %q, %v", v, err)
	}
	if ttl := mr.TTL("dvss:ops:" + KeyAccessToken); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}
}

func TestRedisStorageUnavailable(t *testing.T) {
	s, mr, cleanup := newRedisStorageTest(t, 0)
	defer cleanup()
	mr.Close()

	if _, err := s.Read(context.Background(), Keys...); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable on read, got %v", err)
	}
	if err := s.Write(context.Background(), ClearBatch()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable on write, got %v", err)
	}
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dvss", "session.json")
	fs, err := NewFileStorage(path, "")
	if err != nil {
		t.Fatalf("new file storage: %v", err)
	}
	exerciseStorage(t, fs)

	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file removed after clear, got %v", err)
	}
}

func TestFileStoragePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	fs, err := NewFileStorage(path, "")
	if err != nil {
		t.Fatalf("new file storage: %v", err)
	}
	if err := fs.Write(context.Background(), Batch{Set: map[string]string{KeyAccessToken: "tok"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}
}

func TestFileStorageCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	fs, err := NewFileStorage(path, "")
	if err != nil {
		t.Fatalf("new file storage: %v", err)
	}

	if _, err := fs.Read(context.Background(), Keys...); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if err := fs.Write(context.Background(), ClearBatch()); err != nil {
		t.Fatalf("clearing a corrupt file must succeed: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected corrupt file removed, got %v", err)
	}
}

func TestSealedFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	fs, err := NewFileStorage(path, "correct horse")
	if err != nil {
		t.Fatalf("new file storage: %v", err)
	}
	exerciseStorage(t, fs)

	if err := fs.Write(context.Background(), Batch{Set: map[string]string{KeyAccessToken: "secret-token"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if bytes.Contains(raw, []byte("secret-token")) {
		t.Fatal("sealed file must not contain the plaintext token")
	}

	wrong, err := NewFileStorage(path, "battery staple")
	if err != nil {
		t.Fatalf("new file storage: %v", err)
	}
	if _, err := wrong.Read(context.Background(), Keys...); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt with wrong passphrase, got %v", err)
	}
}

func TestSealerRejectsTampering(t *testing.T) {
	s := NewSealer("pw")
	sealed, err := s.Seal([]byte(`{"a":"b"}`))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xFF
	if _, err := s.Open(sealed); err == nil {
		t.Fatal("expected tampered payload to fail")
	}
	if _, err := s.Open([]byte(sealMagic)); err == nil {
		t.Fatal("expected short payload to fail")
	}
}
