package file

import (
	"path/filepath"
	"strings"
)

// Category classifies a file by its extension.
type Category string

// File categories.
const (
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryDocument Category = "document"
	CategoryFile     Category = "file"
)

// categoryByExt maps lowercase file extensions to categories.
var categoryByExt = map[string]Category{
	".jpg":  CategoryImage,
	".jpeg": CategoryImage,
	".png":  CategoryImage,
	".gif":  CategoryImage,
	".webp": CategoryImage,
	".svg":  CategoryImage,
	".heic": CategoryImage,
	".bmp":  CategoryImage,

	".mp4":  CategoryVideo,
	".mov":  CategoryVideo,
	".avi":  CategoryVideo,
	".mkv":  CategoryVideo,
	".webm": CategoryVideo,
	".m4v":  CategoryVideo,

	".mp3":  CategoryAudio,
	".wav":  CategoryAudio,
	".flac": CategoryAudio,
	".aac":  CategoryAudio,
	".ogg":  CategoryAudio,
	".m4a":  CategoryAudio,

	".pdf":  CategoryDocument,
	".doc":  CategoryDocument,
	".docx": CategoryDocument,
	".txt":  CategoryDocument,
	".rtf":  CategoryDocument,
	".md":   CategoryDocument,
	".xls":  CategoryDocument,
	".xlsx": CategoryDocument,
	".csv":  CategoryDocument,
}

// CategoryForName returns the category for a filename based on its extension.
// Matching is case-insensitive; unknown or missing extensions fall back to
// CategoryFile.
func CategoryForName(name string) Category {
	ext := strings.ToLower(filepath.Ext(name))
	if c, ok := categoryByExt[ext]; ok {
		return c
	}
	return CategoryFile
}
