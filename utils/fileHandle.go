package utils

import (
	"io"
	"mime/multipart"
	"path/filepath"
)

// ReadMultipartFile pulls an uploaded file fully into memory and returns its
// bytes together with the client-supplied filename and MIME type. Editor
// uploads are staged in memory and forwarded, never written to disk.
func ReadMultipartFile(file *multipart.FileHeader) ([]byte, string, string, error) {
	src, err := file.Open()
	if err != nil {
		return nil, "", "", err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "", "", err
	}

	name := filepath.Base(file.Filename)
	mimeType := file.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return data, name, mimeType, nil
}
