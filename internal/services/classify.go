package services

import (
	"path/filepath"
	"strings"
)

var extensionTypes = map[string]FileType{}

func init() {
	groups := map[FileType][]string{
		FileTypeDocument: {
			"pdf", "doc", "docx", "txt", "xls", "xlsx", "csv", "rtf", "ods", "ppt", "odp", "md",
			"html", "htm", "epub", "pages", "fig", "psd", "ai", "indd", "xd", "sketch", "afdesign", "afphoto",
		},
		FileTypeImage: {"jpg", "jpeg", "png", "gif", "bmp", "svg", "webp"},
		FileTypeVideo: {"mp4", "avi", "mov", "mkv", "webm"},
		FileTypeAudio: {"mp3", "wav", "ogg", "flac"},
	}
	for fileType, extensions := range groups {
		for _, ext := range extensions {
			extensionTypes[ext] = fileType
		}
	}
}

// Classify maps a file name to its type and lower-cased extension. svg counts
// as an image here even though it gets no raster thumbnail.
func Classify(name string) (FileType, string) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return FileTypeOther, ""
	}
	if fileType, ok := extensionTypes[ext]; ok {
		return fileType, ext
	}
	return FileTypeOther, ext
}

// Thumbnailable reports whether a raster preview can be rendered for the file.
func Thumbnailable(fileType FileType, extension string) bool {
	return fileType == FileTypeImage && extension != "svg"
}

// TypesForSection maps a navigation section to the file types it lists.
// Unknown sections list everything.
func TypesForSection(section string) []FileType {
	switch strings.ToLower(section) {
	case "documents":
		return []FileType{FileTypeDocument}
	case "images":
		return []FileType{FileTypeImage}
	case "media":
		return []FileType{FileTypeVideo, FileTypeAudio}
	case "others":
		return []FileType{FileTypeOther}
	default:
		return nil
	}
}

// ParseFileTypes parses a comma separated type list, dropping unknown entries.
func ParseFileTypes(raw string) []FileType {
	var out []FileType
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		for _, t := range AllFileTypes {
			if string(t) == part {
				out = append(out, t)
				break
			}
		}
	}
	return out
}
