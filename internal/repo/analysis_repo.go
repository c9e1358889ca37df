package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/textstat/internal/model"
	"github.com/xxxsen/textstat/internal/pkg/dbutil"
	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
)

var analysisFields = []string{"id", "file_id", "text_hash", "paragraphs", "words", "characters", "extra", "ctime"}

type analysisRow struct {
	ID         string `db:"id"`
	FileID     string `db:"file_id"`
	TextHash   string `db:"text_hash"`
	Paragraphs int    `db:"paragraphs"`
	Words      int    `db:"words"`
	Characters int    `db:"characters"`
	Extra      []byte `db:"extra"`
	Ctime      int64  `db:"ctime"`
}

func (row *analysisRow) toModel() (*model.AnalysisRecord, error) {
	rec := &model.AnalysisRecord{
		ID:       row.ID,
		FileID:   row.FileID,
		TextHash: row.TextHash,
		Stats: model.Stats{
			Paragraphs: row.Paragraphs,
			Words:      row.Words,
			Characters: row.Characters,
		},
		Ctime: row.Ctime,
	}
	if len(row.Extra) > 0 {
		if err := json.Unmarshal(row.Extra, &rec.Extra); err != nil {
			return nil, fmt.Errorf("decode extra of analysis %s: %w", row.ID, err)
		}
	}
	if rec.Extra == nil {
		rec.Extra = map[string]interface{}{}
	}
	return rec, nil
}

type AnalysisRepo struct {
	db *sqlx.DB
}

func NewAnalysisRepo(db *sqlx.DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

// Insert stores rec unless a result already exists for its file id or its
// text hash; the existing result is returned in that case.
func (r *AnalysisRepo) Insert(ctx context.Context, rec *model.AnalysisRecord) (*InsertResult[model.AnalysisRecord], error) {
	extra := rec.Extra
	if extra == nil {
		extra = map[string]interface{}{}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		err := r.insertTx(ctx, rec, string(extraJSON))
		if err == nil {
			return inserted(rec), nil
		}
		if !dbutil.IsConflict(err) {
			return nil, err
		}
		existing, err := r.resolveConflict(ctx, rec)
		if err == nil {
			return alreadyExists(existing), nil
		}
		if !appErr.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("insert analysis for file %s: %w", rec.FileID, appErr.ErrConflict)
}

func (r *AnalysisRepo) insertTx(ctx context.Context, rec *model.AnalysisRecord, extraJSON string) error {
	data := map[string]interface{}{
		"id":         rec.ID,
		"file_id":    rec.FileID,
		"text_hash":  rec.TextHash,
		"paragraphs": rec.Paragraphs,
		"words":      rec.Words,
		"characters": rec.Characters,
		"extra":      extraJSON,
		"ctime":      rec.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("analysis_results", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(tx, sqlStr, args)
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// resolveConflict finds the row that won the unique key. The file id is
// checked first so a resubmitted file resolves to its own result.
func (r *AnalysisRepo) resolveConflict(ctx context.Context, rec *model.AnalysisRecord) (*model.AnalysisRecord, error) {
	existing, err := r.GetByFileID(ctx, rec.FileID)
	if err == nil || !appErr.IsNotFound(err) {
		return existing, err
	}
	return r.GetByTextHash(ctx, rec.TextHash)
}

func (r *AnalysisRepo) GetByFileID(ctx context.Context, fileID string) (*model.AnalysisRecord, error) {
	return r.getOne(ctx, map[string]interface{}{"file_id": fileID})
}

func (r *AnalysisRepo) GetByTextHash(ctx context.Context, textHash string) (*model.AnalysisRecord, error) {
	return r.getOne(ctx, map[string]interface{}{"text_hash": textHash})
}

func (r *AnalysisRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.AnalysisRecord, error) {
	sqlStr, args, err := builder.BuildSelect("analysis_results", where, analysisFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.db, sqlStr, args)
	var row analysisRow
	if err := r.db.GetContext(ctx, &row, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return row.toModel()
}
