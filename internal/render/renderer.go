package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"print-wizard-backend/internal/models"
	"print-wizard-backend/internal/sheet"
)

const (
	prefetchWorkers = 8
	sheetWorkers    = 4
)

// ErrMissingArtwork means a piece's slot has no uploaded artwork file.
var ErrMissingArtwork = errors.New("piece has no artwork")

// Page is one rendered output sheet, in sheet order.
type Page struct {
	Path  string
	URL   string
	Index int
}

// Store is the subset of database operations a render pass needs.
type Store interface {
	GetSlotURL(printID uuid.UUID, slotType string) (string, error)
	DeleteGeneratedFiles(jobID uuid.UUID, preview bool) error
	CreateGeneratedFile(file *models.GeneratedFile) error
}

// Storage uploads rendered output and serves it back for archiving.
type Storage interface {
	UploadOutput(path string, data []byte, contentType string) (string, error)
	DownloadOutput(path string) ([]byte, error)
}

type Renderer struct {
	store   Store
	storage Storage
	cache   *ImageCache
	log     *zap.SugaredLogger

	sheetW  int
	sheetH  int
	spacing int
}

func NewRenderer(store Store, storage Storage, cache *ImageCache, log *zap.SugaredLogger) *Renderer {
	return &Renderer{
		store:   store,
		storage: storage,
		cache:   cache,
		log:     log,
		sheetW:  sheet.SheetWidthPx,
		sheetH:  sheet.SheetHeightPx,
		spacing: sheet.SpacingPx,
	}
}

// Render packs the job's pieces onto sheets, composites each sheet
// concurrently and uploads the encoded images. Either every sheet renders
// and uploads, or an error is returned and no page list is produced.
func (r *Renderer) Render(ctx context.Context, jobID uuid.UUID, pieces []models.Piece, preview bool) ([]Page, error) {
	if err := r.store.DeleteGeneratedFiles(jobID, preview); err != nil {
		return nil, fmt.Errorf("failed to clear previous output: %w", err)
	}

	items, err := r.resolveItems(pieces)
	if err != nil {
		return nil, err
	}

	sheets, err := sheet.Pack(items, r.sheetW, r.sheetH, r.spacing)
	if err != nil {
		return nil, err
	}

	if err := r.prewarm(ctx, items); err != nil {
		return nil, err
	}

	pages := make([]Page, len(sheets))
	err = runPool(ctx, sheetWorkers, len(sheets), func(i int) error {
		page, err := r.renderSheet(ctx, jobID, sheets[i], i, preview)
		if err != nil {
			return err
		}
		pages[i] = page
		return nil
	})
	if err != nil {
		return nil, err
	}

	return pages, nil
}

// resolveItems converts each piece to pixel units and resolves its artwork
// URL, expanding quantities into individual placements.
func (r *Renderer) resolveItems(pieces []models.Piece) ([]sheet.Item, error) {
	var items []sheet.Item
	for _, p := range pieces {
		url, err := r.store.GetSlotURL(p.PrintID, p.Type)
		if err != nil || url == "" {
			return nil, fmt.Errorf("%w: print %s slot %s", ErrMissingArtwork, p.PrintID, p.Type)
		}

		w := sheet.CmToPx(p.WidthCm)
		h := sheet.CmToPx(p.HeightCm)
		for i := 0; i < p.Qty; i++ {
			items = append(items, sheet.Item{W: w, H: h, Ref: url})
		}
	}
	return items, nil
}

// prewarm fetches every distinct artwork URL concurrently so no sheet
// worker blocks another on a cold fetch.
func (r *Renderer) prewarm(ctx context.Context, items []sheet.Item) error {
	seen := make(map[string]bool)
	var urls []string
	for _, it := range items {
		if !seen[it.Ref] {
			seen[it.Ref] = true
			urls = append(urls, it.Ref)
		}
	}

	return runPool(ctx, prefetchWorkers, len(urls), func(i int) error {
		_, err := r.cache.Get(ctx, urls[i])
		return err
	})
}

func (r *Renderer) renderSheet(ctx context.Context, jobID uuid.UUID, s *sheet.Sheet, idx int, preview bool) (Page, error) {
	canvas := imaging.New(r.sheetW, r.sheetH, color.NRGBA{})

	for _, it := range s.Items {
		art, err := r.cache.Get(ctx, it.Ref)
		if err != nil {
			return Page{}, err
		}

		art = trimTransparent(art)
		art = resizeToSlot(art, it.W, it.H)
		if it.Rotated {
			art = imaging.Rotate90(art)
		}
		canvas = imaging.Overlay(canvas, art, image.Pt(it.X, it.Y), 1.0)
	}

	if preview {
		canvas = applyWatermark(canvas)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return Page{}, fmt.Errorf("failed to encode sheet %d: %w", idx, err)
	}

	path := fmt.Sprintf("jobs/%s/%s/%d.png", jobID, renderMode(preview), idx)
	url, err := r.storage.UploadOutput(path, buf.Bytes(), "image/png")
	if err != nil {
		return Page{}, fmt.Errorf("failed to upload sheet %d: %w", idx, err)
	}

	file := &models.GeneratedFile{
		ID:        uuid.New(),
		JobID:     jobID,
		PageIndex: idx,
		FilePath:  path,
		PublicURL: url,
		Preview:   preview,
	}
	if err := r.store.CreateGeneratedFile(file); err != nil {
		return Page{}, fmt.Errorf("failed to record sheet %d: %w", idx, err)
	}

	r.log.Debugw("rendered sheet", "job_id", jobID, "page", idx, "pieces", len(s.Items), "preview", preview)
	return Page{Path: path, URL: url, Index: idx}, nil
}

func renderMode(preview bool) string {
	if preview {
		return "preview"
	}
	return "final"
}

// runPool runs n indexed tasks over at most workers goroutines and joins
// them all before returning the first error, if any.
func runPool(ctx context.Context, workers, n int, task func(int) error) error {
	if n == 0 {
		return nil
	}
	if workers > n {
		workers = n
	}

	tasks := make(chan int)
	go func() {
		defer close(tasks)
		for i := 0; i < n; i++ {
			select {
			case tasks <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range tasks {
				mu.Lock()
				failed := firstErr != nil
				mu.Unlock()
				if failed {
					continue
				}
				if err := task(i); err != nil {
					setErr(err)
				}
			}
		}()
	}
	wg.Wait()

	if firstErr == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return firstErr
}
