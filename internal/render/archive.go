package render

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
)

// BuildArchive packages the rendered pages into a ZIP, one entry per sheet
// named sheet_1.png onward, pulling the bytes back from storage.
func (r *Renderer) BuildArchive(ctx context.Context, pages []Page) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := r.storage.DownloadOutput(p.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d for archive: %w", p.Index, err)
		}

		w, err := zw.Create(fmt.Sprintf("sheet_%d.png", p.Index+1))
		if err != nil {
			return nil, fmt.Errorf("failed to add page %d to archive: %w", p.Index, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write page %d to archive: %w", p.Index, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
