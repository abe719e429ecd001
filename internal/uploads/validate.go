package uploads

import (
	"bytes"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"vendorquery-backend/internal/shared/util"
)

// XLSXContentType is the only format accepted for vendor query batches.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var acceptedContentTypes = map[string]struct{}{
	XLSXContentType: {},
}

// File is one submitted document.
type File struct {
	Name            string
	ContentType     string
	DeclaredSize    int64
	Data            []byte
	PrerequisiteURI string
}

// ContentTypeForName infers a content type from a file extension.
func ContentTypeForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return XLSXContentType
	case ".xls":
		return "application/vnd.ms-excel"
	case ".csv":
		return "text/csv"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func normalizeContentType(f File) string {
	ct := strings.TrimSpace(f.ContentType)
	if parsed, _, err := mime.ParseMediaType(ct); err == nil {
		ct = parsed
	}
	ct = strings.ToLower(ct)
	if ct == "" || ct == "application/octet-stream" {
		return ContentTypeForName(f.Name)
	}
	return ct
}

// Validate splits files into accepted indexes and rejections. It returns ErrEmptyBatch or
// ErrBatchTooLarge for batch-level problems and a *ValidationError when nothing is accepted.
// Files larger than maxFileBytes are rejected; zero limits mean unlimited.
func Validate(files []File, maxFiles int, maxFileBytes int64) ([]int, []Rejection, error) {
	if len(files) == 0 {
		return nil, nil, ErrEmptyBatch
	}
	if maxFiles > 0 && len(files) > maxFiles {
		return nil, nil, fmt.Errorf("%w: %d files, limit %d", ErrBatchTooLarge, len(files), maxFiles)
	}

	var accepted []int
	var rejected []Rejection
	for i, f := range files {
		if reason := checkFile(f, maxFileBytes); reason != "" {
			rejected = append(rejected, Rejection{Index: i, FileName: f.Name, Reason: reason})
			continue
		}
		accepted = append(accepted, i)
	}
	if len(accepted) == 0 {
		return nil, rejected, &ValidationError{Rejections: rejected}
	}
	return accepted, rejected, nil
}

func checkFile(f File, maxBytes int64) string {
	if _, err := util.SanitizeFileName(f.Name); err != nil {
		return "invalid file name"
	}
	ct := normalizeContentType(f)
	if _, ok := acceptedContentTypes[ct]; !ok {
		return fmt.Sprintf("unsupported content type %q; expected an xlsx workbook", ct)
	}
	if len(f.Data) == 0 {
		return "file is empty"
	}
	if maxBytes > 0 && int64(len(f.Data)) > maxBytes {
		return fmt.Sprintf("file is %d bytes, limit %d", len(f.Data), maxBytes)
	}
	if f.DeclaredSize > 0 && f.DeclaredSize != int64(len(f.Data)) {
		return fmt.Sprintf("declared size %d does not match payload size %d", f.DeclaredSize, len(f.Data))
	}
	wb, err := excelize.OpenReader(bytes.NewReader(f.Data))
	if err != nil {
		return "file is not a readable xlsx workbook"
	}
	defer wb.Close()
	if len(wb.GetSheetList()) == 0 {
		return "workbook has no sheets"
	}
	return ""
}
