package filestorage

import (
	"mime/multipart"
)

// FileStorage defines the interface for file storage operations
type FileStorage interface {
	// SaveFileWithPath stores the upload under subPath and returns its public path
	SaveFileWithPath(fileHeader *multipart.FileHeader, subPath string) (string, error)

	// DeleteFile removes a file previously returned by SaveFileWithPath
	DeleteFile(filePath string) error
}

// ImageRules restricts what an image upload may be
type ImageRules struct {
	AllowedExtensions []string
	MaxBytes          int64
}

// AnnouncementImageRules allows common web image formats up to 5 MiB.
var AnnouncementImageRules = ImageRules{
	AllowedExtensions: []string{".png", ".jpg", ".jpeg", ".gif", ".webp"},
	MaxBytes:          5 << 20,
}
