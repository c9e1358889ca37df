package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/textstat/internal/contentstore"
	"github.com/xxxsen/textstat/internal/model"
	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
	"github.com/xxxsen/textstat/internal/repo"
)

const (
	MessageUploaded = "File uploaded successfully"
	MessageExists   = "File already exists"
)

type FileCatalog interface {
	InsertFileRecord(ctx context.Context, name, hash, location string, size int64) (*repo.InsertResult[model.FileRecord], error)
	GetFileRecord(ctx context.Context, id string) (*model.FileRecord, error)
	GetFileRecordByHash(ctx context.Context, hash string) (*model.FileRecord, error)
}

type UploadResult struct {
	File     *model.FileRecord
	Existing bool
}

func (r *UploadResult) Message() string {
	if r.Existing {
		return MessageExists
	}
	return MessageUploaded
}

type FileService struct {
	catalog FileCatalog
	store   contentstore.Store
}

func NewFileService(catalog FileCatalog, store contentstore.Store) *FileService {
	return &FileService{catalog: catalog, store: store}
}

// Upload stores data once per content hash. Re-uploading identical bytes
// under any name returns the record of the first upload.
func (s *FileService) Upload(ctx context.Context, name string, data []byte) (*UploadResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("file name is required: %w", appErr.ErrInvalid)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	logger := logutil.GetLogger(ctx).With(zap.String("hash", hash), zap.String("name", name))

	existing, err := s.catalog.GetFileRecordByHash(ctx, hash)
	if err == nil {
		logger.Debug("upload matched existing file", zap.String("file_id", existing.ID))
		return &UploadResult{File: existing, Existing: true}, nil
	}
	if !appErr.IsNotFound(err) {
		return nil, err
	}
	location, err := s.store.PutIfAbsent(ctx, hash, contentstore.ExtFromName(name), data)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	res, err := s.catalog.InsertFileRecord(ctx, name, hash, location, int64(len(data)))
	if err != nil {
		return nil, err
	}
	logger.Info("file uploaded",
		zap.String("file_id", res.Record.ID),
		zap.String("outcome", res.Outcome.String()),
		zap.Int("size", len(data)),
	)
	return &UploadResult{File: res.Record, Existing: res.Existing()}, nil
}

// Download returns the record and bytes of a stored file.
func (s *FileService) Download(ctx context.Context, id string) (*model.FileRecord, []byte, error) {
	rec, err := s.catalog.GetFileRecord(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.store.Get(ctx, rec.Location)
	if err != nil {
		return nil, nil, err
	}
	return rec, data, nil
}
