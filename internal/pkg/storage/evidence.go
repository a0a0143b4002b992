package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
)

const maxEvidenceSize = 10 * 1024 * 1024 // 10 MB

var (
	ErrFileTooLarge    = errors.New("file exceeds maximum size")
	ErrInvalidMimeType = errors.New("file type not allowed")
	ErrEmptyFile       = errors.New("file is empty")
)

// allowedEvidenceTypes are the MIME types accepted as dispute evidence:
// photos of the work, scanned documents and receipts.
var allowedEvidenceTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// ValidateEvidence reads and validates an evidence upload. The MIME type is
// detected from content, not trusted from the client.
func ValidateEvidence(reader io.Reader) (*bytes.Buffer, string, error) {
	data, err := io.ReadAll(io.LimitReader(reader, maxEvidenceSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return nil, "", ErrEmptyFile
	}
	if int64(len(data)) > maxEvidenceSize {
		return nil, "", ErrFileTooLarge
	}

	mimeType := http.DetectContentType(data)
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	if _, ok := allowedEvidenceTypes[mimeType]; !ok {
		return nil, "", ErrInvalidMimeType
	}

	return bytes.NewBuffer(data), mimeType, nil
}

// EvidenceKey builds the storage key for a dispute evidence file
func EvidenceKey(disputeID, mimeType string) string {
	ext := allowedEvidenceTypes[mimeType]
	return path.Join("disputes", disputeID, uuid.New().String()+ext)
}
