package handler

import "strconv"

func formatUploadLimit(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	switch {
	case bytes <= 0:
		return "0B"
	case bytes >= mb:
		return strconv.FormatInt(bytes/mb, 10) + "MB"
	case bytes >= kb:
		return strconv.FormatInt(bytes/kb, 10) + "KB"
	}
	return strconv.FormatInt(bytes, 10) + "B"
}
