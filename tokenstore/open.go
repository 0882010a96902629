package tokenstore

import (
	"github.com/ambiyansyah-risyal/tutorapi"
	"github.com/pkg/errors"
)

// Backend names reported by Open.
const (
	BackendKeyring = "keyring"
	BackendFile    = "file"
)

// Open prefers the OS keyring and falls back to a JSON file at path (or
// DefaultPath when empty) when no keyring backend is usable.
func Open(service, path string) (tutorapi.KeyValueStore, string, error) {
	if ring, err := OpenKeyring(service); err == nil {
		return ring, BackendKeyring, nil
	}

	if path == "" {
		p, err := DefaultPath(service)
		if err != nil {
			return nil, "", err
		}
		path = p
	}
	f, err := OpenFile(path)
	if err != nil {
		return nil, "", errors.Wrap(err, "open token file")
	}
	return f, BackendFile, nil
}
