package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/getsops/sops/v3/decrypt"
	"github.com/rs/zerolog"

	"github.com/cameronsjo/roger/internal/log"
)

// Loader loads the secret store for a rendered file in an environment.
type Loader interface {
	Load(ctx context.Context, env, fileName string) (Store, error)
}

// DecryptFunc decrypts SOPS-encrypted content in the given format.
type DecryptFunc func(data []byte, format string) ([]byte, error)

// FileLoader reads stores from <dir>/<env>/<fileName>. Files carrying SOPS
// metadata are decrypted first.
type FileLoader struct {
	dir     string
	decrypt DecryptFunc
	logger  zerolog.Logger
}

var _ Loader = (*FileLoader)(nil)

// FileLoaderOption configures a FileLoader.
type FileLoaderOption func(*FileLoader)

// WithDecrypter replaces SOPS decryption.
func WithDecrypter(fn DecryptFunc) FileLoaderOption {
	return func(l *FileLoader) {
		l.decrypt = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) FileLoaderOption {
	return func(l *FileLoader) {
		l.logger = logger
	}
}

// NewFileLoader creates a FileLoader rooted at dir.
func NewFileLoader(dir string, opts ...FileLoaderOption) *FileLoader {
	l := &FileLoader{
		dir:     dir,
		decrypt: decrypt.Data,
		logger:  log.WithComponent("secrets"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the secret file path for env and fileName.
func (l *FileLoader) Path(env, fileName string) string {
	return filepath.Join(l.dir, env, fileName)
}

// Load implements Loader. A missing file yields an empty store so the merge
// reports exactly which key is unresolved.
func (l *FileLoader) Load(_ context.Context, env, fileName string) (Store, error) {
	path := l.Path(env, fileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		l.logger.Warn().Str("path", path).Msg("No secrets file for environment")
		return Store{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read secrets %s: %w", path, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse secrets %s: %w", path, err)
	}

	if _, encrypted := raw["sops"]; encrypted {
		plain, err := l.decrypt(data, "json")
		if err != nil {
			return nil, fmt.Errorf("decrypt secrets %s: %w", path, err)
		}
		raw = nil
		if err := json.Unmarshal(plain, &raw); err != nil {
			return nil, fmt.Errorf("parse decrypted secrets %s: %w", path, err)
		}
	}

	return Store(raw), nil
}
