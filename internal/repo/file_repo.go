package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/textstat/internal/model"
	"github.com/xxxsen/textstat/internal/pkg/dbutil"
	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
)

var fileFields = []string{"id", "name", "hash", "location", "size", "ctime"}

type FileRepo struct {
	db *sqlx.DB
}

func NewFileRepo(db *sqlx.DB) *FileRepo {
	return &FileRepo{db: db}
}

// Insert stores rec unless a file with the same hash exists, in which case
// the existing record is returned instead.
func (r *FileRepo) Insert(ctx context.Context, rec *model.FileRecord) (*InsertResult[model.FileRecord], error) {
	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		err := r.insert(ctx, rec)
		if err == nil {
			return inserted(rec), nil
		}
		if !dbutil.IsConflict(err) {
			return nil, err
		}
		existing, err := r.GetByHash(ctx, rec.Hash)
		if err == nil {
			return alreadyExists(existing), nil
		}
		if !appErr.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("insert file %s: %w", rec.Hash, appErr.ErrConflict)
}

func (r *FileRepo) insert(ctx context.Context, rec *model.FileRecord) error {
	data := map[string]interface{}{
		"id":       rec.ID,
		"name":     rec.Name,
		"hash":     rec.Hash,
		"location": rec.Location,
		"size":     rec.Size,
		"ctime":    rec.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("files", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *FileRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	return r.getOne(ctx, map[string]interface{}{"id": id})
}

func (r *FileRepo) GetByHash(ctx context.Context, hash string) (*model.FileRecord, error) {
	return r.getOne(ctx, map[string]interface{}{"hash": hash})
}

func (r *FileRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.FileRecord, error) {
	sqlStr, args, err := builder.BuildSelect("files", where, fileFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	var rec model.FileRecord
	if err := r.db.GetContext(ctx, &rec, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}
