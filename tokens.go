package tutorapi

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Storage keys. Both formats are written so older frontends sharing the same
// storage keep working; reads prefer the primary format.
const (
	KeyAccessToken        = "auth_token"
	KeyRefreshToken       = "refresh_token"
	LegacyKeyAccessToken  = "authToken"
	LegacyKeyRefreshToken = "refreshToken"
)

// KeyValueStore is the persistence port for tokens. Get returns "" and no
// error for a missing key.
type KeyValueStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// TokenStore holds the session tokens. Save and Clear always act on the
// access and refresh token together.
type TokenStore interface {
	Tokens() (access, refresh string)
	Save(access, refresh string) error
	Clear() error
}

// PersistentTokenStore mirrors tokens in memory and writes them through to a
// KeyValueStore.
type PersistentTokenStore struct {
	mu      sync.RWMutex
	kv      KeyValueStore
	access  string
	refresh string
}

// NewTokenStore loads any tokens already present in kv.
func NewTokenStore(kv KeyValueStore) (*PersistentTokenStore, error) {
	s := &PersistentTokenStore{kv: kv}

	access, err := firstValue(kv, KeyAccessToken, LegacyKeyAccessToken)
	if err != nil {
		return nil, err
	}
	refresh, err := firstValue(kv, KeyRefreshToken, LegacyKeyRefreshToken)
	if err != nil {
		return nil, err
	}
	// a refresh token without an access token is a half-cleared session
	if access == "" && refresh != "" {
		if err := s.Clear(); err != nil {
			return nil, err
		}
		return s, nil
	}
	s.access, s.refresh = access, refresh
	return s, nil
}

// NewMemoryTokenStore returns a token store that lives only in process memory.
func NewMemoryTokenStore() *PersistentTokenStore {
	return &PersistentTokenStore{kv: NewMemoryStore()}
}

func firstValue(kv KeyValueStore, keys ...string) (string, error) {
	for _, k := range keys {
		v, err := kv.Get(k)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
	}
	return "", nil
}

// Tokens returns the current access and refresh token.
func (s *PersistentTokenStore) Tokens() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access, s.refresh
}

// Save replaces both tokens. An empty refresh token removes the stored one.
// If any write fails the store is cleared so no partial session survives.
func (s *PersistentTokenStore) Save(access, refresh string) error {
	if access == "" {
		return errors.New("tutorapi: empty access token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.write(access, refresh)
	if err != nil {
		_ = s.clearLocked()
		return err
	}
	s.access, s.refresh = access, refresh
	return nil
}

func (s *PersistentTokenStore) write(access, refresh string) error {
	for _, k := range []string{KeyAccessToken, LegacyKeyAccessToken} {
		if err := s.kv.Set(k, access); err != nil {
			return err
		}
	}
	for _, k := range []string{KeyRefreshToken, LegacyKeyRefreshToken} {
		var err error
		if refresh == "" {
			err = s.kv.Delete(k)
		} else {
			err = s.kv.Set(k, refresh)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clear removes both tokens under every key format.
func (s *PersistentTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked()
}

func (s *PersistentTokenStore) clearLocked() error {
	s.access, s.refresh = "", ""

	var errs []error
	for _, k := range []string{KeyAccessToken, LegacyKeyAccessToken, KeyRefreshToken, LegacyKeyRefreshToken} {
		if err := s.kv.Delete(k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemoryStore is an in-process KeyValueStore.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[key], nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// TokenExpiry reads the exp claim of a JWT access token without verifying
// its signature. ok is false for opaque tokens or tokens without exp.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	date, err := claims.GetExpirationTime()
	if err != nil || date == nil {
		return time.Time{}, false
	}
	return date.Time, true
}
