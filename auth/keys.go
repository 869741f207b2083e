package auth

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/goliatone/go-ghapp/core"
)

// KeySource yields the PEM encoded application private key.
type KeySource interface {
	PrivateKey(ctx context.Context) ([]byte, error)
}

// FileKeySource reads the key from disk on every call so a rotated key file
// is picked up without a restart.
type FileKeySource struct {
	Path string
}

func (s FileKeySource) PrivateKey(context.Context) ([]byte, error) {
	path := strings.TrimSpace(s.Path)
	metadata := map[string]any{"key_path": path}
	if path == "" {
		return nil, core.NewError(core.KindKeyUnavailable, "auth: private key path is not configured", metadata)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		message := "auth: read private key"
		if errors.Is(err, fs.ErrNotExist) {
			message = "auth: private key file not found"
		}
		return nil, core.WrapError(err, core.KindKeyUnavailable, message, metadata)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, core.NewError(core.KindKeyUnavailable, "auth: private key file is empty", metadata)
	}
	return data, nil
}

type StaticKeySource struct {
	PEM []byte
}

func (s StaticKeySource) PrivateKey(context.Context) ([]byte, error) {
	if len(strings.TrimSpace(string(s.PEM))) == 0 {
		return nil, core.NewError(core.KindKeyUnavailable, "auth: private key is not configured", nil)
	}
	return append([]byte(nil), s.PEM...), nil
}
