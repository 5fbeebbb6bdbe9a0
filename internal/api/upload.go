package api

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/shelfscan/internal/book"
)

// multipartOverhead is headroom for form boundaries and headers.
const multipartOverhead = 1 << 20

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// upload is a validated shelf photo.
type upload struct {
	Filename string
	MIMEType string
	Data     []byte
}

// UploadError lists every validation failure of one upload.
type UploadError struct {
	Messages []string
}

func (e *UploadError) Error() string {
	return strings.Join(e.Messages, " ")
}

// Unwrap lets callers match book.ErrInvalidUpload.
func (e *UploadError) Unwrap() error {
	return book.ErrInvalidUpload
}

// readUpload pulls the "image" part out of the request and validates it.
// Validation has no side effects.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return upload{}, &UploadError{Messages: []string{sizeMessage(maxBytes)}}
		}
		return upload{}, &UploadError{Messages: []string{"file upload failed."}}
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		return upload{}, &UploadError{Messages: []string{"file upload failed."}}
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return upload{}, fmt.Errorf("read upload: %w", err)
	}
	return validateUpload(header, data, maxBytes)
}

func validateUpload(header *multipart.FileHeader, data []byte, maxBytes int64) (upload, error) {
	var msgs []string
	if int64(len(data)) > maxBytes || header.Size > maxBytes {
		msgs = append(msgs, sizeMessage(maxBytes))
	}

	mimeType := http.DetectContentType(data)
	if !allowedMIME[mimeType] {
		msgs = append(msgs, "unsupported file type (JPEG and PNG only).")
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		msgs = append(msgs, "not a valid image file.")
	}

	if !allowedExt[strings.ToLower(filepath.Ext(header.Filename))] {
		msgs = append(msgs, "unsupported file extension.")
	}

	if len(msgs) > 0 {
		return upload{}, &UploadError{Messages: msgs}
	}
	return upload{Filename: header.Filename, MIMEType: mimeType, Data: data}, nil
}

func sizeMessage(maxBytes int64) string {
	return fmt.Sprintf("file size must not exceed %dMB.", maxBytes/(1<<20))
}
