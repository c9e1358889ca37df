package analysiscache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/textstat/internal/model"
)

// Lookup resolves a stored analysis by normalized-text hash.
type Lookup interface {
	GetAnalysisRecordByTextHash(ctx context.Context, textHash string) (*model.AnalysisRecord, error)
}

// Wrap puts an expirable LRU in front of next. Analysis records never
// change once written, so only hits are cached; misses always reach next.
func Wrap(next Lookup, size int, ttl time.Duration) Lookup {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &lruLookup{
		next:  next,
		cache: expirable.NewLRU[string, model.AnalysisRecord](size, nil, ttl),
	}
}

type lruLookup struct {
	next  Lookup
	cache *expirable.LRU[string, model.AnalysisRecord]
}

func (l *lruLookup) GetAnalysisRecordByTextHash(ctx context.Context, textHash string) (*model.AnalysisRecord, error) {
	if cached, ok := l.cache.Get(textHash); ok {
		logutil.GetLogger(ctx).Debug("analysis cache hit", zap.String("text_hash", textHash))
		return cloneRecord(&cached), nil
	}
	rec, err := l.next.GetAnalysisRecordByTextHash(ctx, textHash)
	if err != nil {
		return nil, err
	}
	l.cache.Add(textHash, *cloneRecord(rec))
	return rec, nil
}

func cloneRecord(rec *model.AnalysisRecord) *model.AnalysisRecord {
	c := *rec
	if rec.Extra != nil {
		c.Extra = make(map[string]interface{}, len(rec.Extra))
		for k, v := range rec.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}
