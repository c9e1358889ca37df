package model

type Stats struct {
	Paragraphs int `json:"paragraphs"`
	Words      int `json:"words"`
	Characters int `json:"characters"`
}

type AnalysisRecord struct {
	ID       string                 `json:"id"`
	FileID   string                 `json:"file_id"`
	TextHash string                 `json:"text_hash"`
	Stats                           // paragraphs, words, characters
	Extra    map[string]interface{} `json:"extra"`
	Ctime    int64                  `json:"ctime"`
}
