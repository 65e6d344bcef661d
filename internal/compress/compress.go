// Package compress shrinks document payloads before upload, best-effort. A
// failure here never blocks submission; callers fall back to the original
// bytes.
package compress

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"

	"admissions-service/internal/models"
)

// Result pairs the (possibly) compressed files with per-file size accounting
// so the pipeline can report savings.
type Result struct {
	Files           []models.DocumentFile
	OriginalSizes   []int64
	CompressedSizes []int64
}

// TotalOriginal returns the summed input size in bytes.
func (r *Result) TotalOriginal() int64 {
	var total int64
	for _, n := range r.OriginalSizes {
		total += n
	}
	return total
}

// TotalCompressed returns the summed output size in bytes.
func (r *Result) TotalCompressed() int64 {
	var total int64
	for _, n := range r.CompressedSizes {
		total += n
	}
	return total
}

// Savings returns the fraction of bytes saved, 0 when nothing was saved.
func (r *Result) Savings() float64 {
	orig := r.TotalOriginal()
	if orig == 0 {
		return 0
	}
	saved := orig - r.TotalCompressed()
	if saved <= 0 {
		return 0
	}
	return float64(saved) / float64(orig)
}

// Service gzips files that benefit from it. Already-dense formats come back
// untouched rather than growing.
type Service struct {
	level int
}

func NewService() *Service {
	return &Service{level: gzip.BestCompression}
}

// Compress runs each file through gzip and keeps whichever representation is
// smaller. A per-file failure keeps the original bytes for that file.
func (s *Service) Compress(files []models.DocumentFile) (*Result, error) {
	if len(files) == 0 {
		return &Result{}, nil
	}

	result := &Result{
		Files:           make([]models.DocumentFile, 0, len(files)),
		OriginalSizes:   make([]int64, 0, len(files)),
		CompressedSizes: make([]int64, 0, len(files)),
	}

	for _, f := range files {
		origSize := int64(len(f.Data))
		compressed, err := s.gzipBytes(f.Data)
		if err != nil || int64(len(compressed)) >= origSize {
			// Keep the original; growing or failing is not worth surfacing.
			result.Files = append(result.Files, f)
			result.OriginalSizes = append(result.OriginalSizes, origSize)
			result.CompressedSizes = append(result.CompressedSizes, origSize)
			continue
		}
		result.Files = append(result.Files, models.DocumentFile{
			Name:        f.Name + ".gz",
			ContentType: "application/gzip",
			Data:        compressed,
		})
		result.OriginalSizes = append(result.OriginalSizes, origSize)
		result.CompressedSizes = append(result.CompressedSizes, int64(len(compressed)))
	}

	return result, nil
}

func (s *Service) gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, s.level)
	if err != nil {
		return nil, fmt.Errorf("init gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}
