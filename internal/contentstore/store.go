// Package contentstore keeps uploaded bytes under keys derived from their
// content fingerprint. A key is written at most once; later writes of the
// same fingerprint are no-ops.
package contentstore

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xxxsen/textstat/internal/config"
	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
)

type Store interface {
	Type() string
	// PutIfAbsent stores data under the key derived from fingerprint and
	// returns that key whether or not it already existed.
	PutIfAbsent(ctx context.Context, fingerprint, ext string, data []byte) (string, error)
	Get(ctx context.Context, location string) ([]byte, error)
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.ContentStoreConfig) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("content_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported content store type: %s", cfg.Type)
	}
	return factory(cfg.Data)
}

// BuildKey derives the storage key for a fingerprint and an optional file
// extension hint such as ".txt".
func BuildKey(fingerprint, ext string) (string, error) {
	fingerprint = strings.ToLower(strings.TrimSpace(fingerprint))
	if fingerprint == "" {
		return "", fmt.Errorf("empty fingerprint: %w", appErr.ErrInvalid)
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	key := fingerprint + ext
	if err := validateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// ExtFromName returns the extension hint of an uploaded file name.
func ExtFromName(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

func validateKey(key string) error {
	if key == "" || strings.Contains(key, "/") || strings.Contains(key, "\\") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid content key %q: %w", key, appErr.ErrInvalid)
	}
	return nil
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}
