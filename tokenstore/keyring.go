// Package tokenstore provides persistent tutorapi.KeyValueStore
// implementations for session tokens.
package tokenstore

import (
	"sync"

	"github.com/99designs/keyring"
	"github.com/pkg/errors"
)

// ServiceName namespaces entries in the OS credential store.
const ServiceName = "tutorapi"

// Keyring keeps values in the OS credential store.
type Keyring struct {
	mu   sync.Mutex
	ring keyring.Keyring
}

// OpenKeyring opens a native OS credential store backend. The encrypted
// file backend is excluded because it prompts for a password; use File for
// headless machines instead.
func OpenKeyring(service string) (*Keyring, error) {
	if service == "" {
		service = ServiceName
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
		},
		KeychainTrustApplication: true,
		WinCredPrefix:            service,
		PassPrefix:               service,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open keyring")
	}
	return NewKeyring(ring), nil
}

// NewKeyring wraps an already opened keyring.
func NewKeyring(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

// Get returns "" without error when key is absent.
func (k *Keyring) Get(key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	item, err := k.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "keyring get %s", key)
	}
	return string(item.Data), nil
}

func (k *Keyring) Set(key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	err := k.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: ServiceName + " " + key,
	})
	return errors.Wrapf(err, "keyring set %s", key)
}

// Delete removes key; a missing key is not an error.
func (k *Keyring) Delete(key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	err := k.ring.Remove(key)
	if err == nil || errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return errors.Wrapf(err, "keyring delete %s", key)
}
