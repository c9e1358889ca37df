package contentstore

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
)

type localConfig struct {
	Dir string `json:"dir"`
}

type localStore struct {
	fs afero.Fs
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("local store dir is required")
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return NewLocal(afero.NewBasePathFs(afero.NewOsFs(), config.Dir)), nil
}

// NewLocal returns a store rooted at the given filesystem.
func NewLocal(fs afero.Fs) Store {
	return &localStore{fs: fs}
}

func (s *localStore) Type() string {
	return "local"
}

func (s *localStore) PutIfAbsent(ctx context.Context, fingerprint, ext string, data []byte) (string, error) {
	_ = ctx
	key, err := BuildKey(fingerprint, ext)
	if err != nil {
		return "", err
	}
	exists, err := afero.Exists(s.fs, key)
	if err != nil {
		return "", err
	}
	if exists {
		return key, nil
	}
	// Concurrent writers of the same key carry identical bytes, so the last
	// rename wins without changing the content.
	tmp := ".tmp-" + uuid.NewString()
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := s.fs.Rename(tmp, key); err != nil {
		_ = s.fs.Remove(tmp)
		return "", fmt.Errorf("commit %s: %w", key, err)
	}
	return key, nil
}

func (s *localStore) Get(ctx context.Context, location string) ([]byte, error) {
	_ = ctx
	if err := validateKey(location); err != nil {
		return nil, err
	}
	file, err := s.fs.Open(location)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %s: %w", location, appErr.ErrNotFound)
		}
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
