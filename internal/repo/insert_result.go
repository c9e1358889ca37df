package repo

// Outcome tags how an insert-or-fetch-existing write resolved.
type Outcome int

const (
	Inserted Outcome = iota + 1
	AlreadyExists
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	}
	return "unknown"
}

// InsertResult carries the row that now owns the unique key: the new row
// when Outcome is Inserted, the pre-existing one otherwise.
type InsertResult[T any] struct {
	Outcome Outcome
	Record  *T
}

func (r *InsertResult[T]) Existing() bool {
	return r.Outcome == AlreadyExists
}

func inserted[T any](rec *T) *InsertResult[T] {
	return &InsertResult[T]{Outcome: Inserted, Record: rec}
}

func alreadyExists[T any](rec *T) *InsertResult[T] {
	return &InsertResult[T]{Outcome: AlreadyExists, Record: rec}
}

// maxInsertAttempts bounds the insert/re-read loop for the case where the
// conflicting row belonged to a transaction that rolled back.
const maxInsertAttempts = 3
