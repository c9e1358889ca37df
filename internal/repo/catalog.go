package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/textstat/internal/model"
)

// Catalog groups the file and analysis tables. Each write is a single-row
// transaction; the two tables are not updated atomically together.
type Catalog struct {
	files    *FileRepo
	analyses *AnalysisRepo
}

func NewCatalog(db *sqlx.DB) *Catalog {
	return &Catalog{files: NewFileRepo(db), analyses: NewAnalysisRepo(db)}
}

func (c *Catalog) InsertFileRecord(ctx context.Context, name, hash, location string, size int64) (*InsertResult[model.FileRecord], error) {
	return c.files.Insert(ctx, &model.FileRecord{
		ID:       uuid.NewString(),
		Name:     name,
		Hash:     hash,
		Location: location,
		Size:     size,
		Ctime:    time.Now().Unix(),
	})
}

func (c *Catalog) InsertAnalysisRecord(ctx context.Context, fileID, textHash string, stats model.Stats, extra map[string]interface{}) (*InsertResult[model.AnalysisRecord], error) {
	return c.analyses.Insert(ctx, &model.AnalysisRecord{
		ID:       uuid.NewString(),
		FileID:   fileID,
		TextHash: textHash,
		Stats:    stats,
		Extra:    extra,
		Ctime:    time.Now().Unix(),
	})
}

func (c *Catalog) GetFileRecord(ctx context.Context, id string) (*model.FileRecord, error) {
	return c.files.GetByID(ctx, id)
}

func (c *Catalog) GetFileRecordByHash(ctx context.Context, hash string) (*model.FileRecord, error) {
	return c.files.GetByHash(ctx, hash)
}

func (c *Catalog) GetAnalysisRecordByFileID(ctx context.Context, fileID string) (*model.AnalysisRecord, error) {
	return c.analyses.GetByFileID(ctx, fileID)
}

func (c *Catalog) GetAnalysisRecordByTextHash(ctx context.Context, textHash string) (*model.AnalysisRecord, error) {
	return c.analyses.GetByTextHash(ctx, textHash)
}
