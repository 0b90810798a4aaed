// Package export writes review data to disk: the server's CSV download, a
// CSV of the locally filtered list, and status charts.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/itmstools/itms_console/pkg/api"
	"github.com/itmstools/itms_console/pkg/model"
)

// DefaultFileName is the name the server export is saved under
const DefaultFileName = "reviews.csv"

// Source provides the server-side CSV export
type Source interface {
	ExportReviews(ctx context.Context) ([]byte, error)
}

// Download fetches the server export and saves it as dir/name. On any
// failure no file is left behind.
func Download(ctx context.Context, src Source, dir, name string) (string, error) {
	if name == "" {
		name = DefaultFileName
	}
	data, err := src.ExportReviews(ctx)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := writeAtomic(path, data); err != nil {
		return "", &api.Error{Kind: api.KindExport, Op: "save export", Message: "Failed to export", Err: err}
	}
	return path, nil
}

// writeAtomic writes to a temp file in the same directory and renames it
// into place so a partial write never lands at path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".itms-export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close export: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod export: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename export: %w", err)
	}
	return nil
}

// Columns is the header of a locally written review CSV
var Columns = []string{
	"review_id", "equipment_id", "barcode", "created_by", "created_at",
	"reviewed_by", "reviewed_at", "status", "image_url",
}

// WriteReviewsCSV writes reviews with the Columns header
func WriteReviewsCSV(w io.Writer, reviews []model.Review) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range reviews {
		reviewer, _ := r.Reviewer()
		reviewedAt := ""
		if r.ReviewedAt != nil {
			reviewedAt = r.ReviewedAt.UTC().Format(time.RFC3339)
		}
		createdAt := ""
		if !r.CreatedAt.IsZero() {
			createdAt = r.CreatedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			r.ReviewID,
			r.EquipmentID.String(),
			r.Barcode,
			r.CreatedBy,
			createdAt,
			reviewer,
			reviewedAt,
			string(r.Status),
			r.ImageURL,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveVisible writes the filtered list to path
func SaveVisible(path string, reviews []model.Review) error {
	var b strings.Builder
	if err := WriteReviewsCSV(&b, reviews); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	return writeAtomic(path, []byte(b.String()))
}
