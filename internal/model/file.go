package model

// FileRecord is the catalog entry for one distinct uploaded content.
type FileRecord struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Hash     string `json:"hash" db:"hash"`
	Location string `json:"location" db:"location"`
	Size     int64  `json:"size" db:"size"`
	Ctime    int64  `json:"ctime" db:"ctime"`
}
