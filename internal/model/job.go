package model

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobDuplicate JobStatus = "duplicate"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transition may leave s.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSucceeded, JobDuplicate, JobFailed:
		return true
	}
	return false
}

// Machine readable failure reasons.
const (
	ReasonFetchExhausted      = "fetch-exhausted"
	ReasonFileNotFound        = "file-not-found"
	ReasonUnsupportedEncoding = "unsupported-encoding"
	ReasonCatalogUnavailable  = "catalog-unavailable"
	ReasonQueueFull           = "queue-full"
)

type JobResult struct {
	Stats          *Stats `json:"stats,omitempty"`
	AnalysisID     string `json:"analysis_id,omitempty"`
	OriginalFileID string `json:"original_file_id,omitempty"`
}

type Job struct {
	ID       string     `json:"id"`
	FileID   string     `json:"file_id"`
	Status   JobStatus  `json:"status"`
	Result   *JobResult `json:"result,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	// Attempts counts fetches of the file content. Catalog retries are not
	// included.
	Attempts int        `json:"attempts"`
	Ctime    int64      `json:"ctime"`
	Mtime    int64      `json:"mtime"`
}
