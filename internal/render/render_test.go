package render

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip-england/orderprep/internal/aggregate"
	"github.com/phillip-england/orderprep/internal/catalog"
	"github.com/phillip-england/orderprep/internal/labels"
	"github.com/phillip-england/orderprep/internal/location"
	"github.com/phillip-england/orderprep/internal/order"
)

func sheetWith(qty int) labels.Sheet {
	totals := aggregate.Merge(nil, order.Order{Items: []order.OrderItem{
		{Title: "Polenta", VariantTitle: "Frozen Pint", Quantity: qty, FulfillableQuantity: qty},
	}})
	ref := time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC)
	return labels.Sequence(totals, nil, nil, ref, labels.Options{Catalog: catalog.New(), Locations: location.DefaultTable})
}

func newRenderer(t *testing.T, opts Options) *Renderer {
	t.Helper()
	if opts.OutputDir == "" {
		opts.OutputDir = t.TempDir()
	}
	if opts.PDFCPUBin == "" {
		opts.PDFCPUBin = "orderprep-missing-pdfcpu"
	}
	opts.Scale = 1
	r, err := New(opts)
	require.NoError(t, err)
	return r
}

func TestRenderFallsBackToPNGPages(t *testing.T) {
	r := newRenderer(t, Options{Footer: "backtobasicskitchen.com", Author: "Back to Basics Kitchen"})

	doc, err := r.Render(context.Background(), sheetWith(31))
	require.NoError(t, err)

	assert.Equal(t, FormatPNG, doc.Format)
	assert.Equal(t, []string{"page-001.png", "page-002.png"}, doc.Pages)
	assert.Equal(t, 31, doc.Labels)
	assert.Equal(t, "/documents/"+doc.ID+"/page-001.png", doc.URL)

	f, err := os.Open(doc.Path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 612, cfg.Width)
	assert.Equal(t, 790, cfg.Height)

	data, err := os.ReadFile(filepath.Join(filepath.Dir(doc.Path), manifestName))
	require.NoError(t, err)
	var manifest Document
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, doc.ID, manifest.ID)
	assert.Equal(t, "Back to Basics Kitchen", manifest.Author)
}

func TestDrawPageInksOnlyUsedSlots(t *testing.T) {
	r := newRenderer(t, Options{Footer: "backtobasicskitchen.com"})
	img := r.drawPage(sheetWith(1), 0)

	first := image.Rect(int(labels.ColumnX(0)), int(labels.RowY(0)), int(labels.ColumnX(0)+labels.LabelWidth), int(labels.RowY(0)+labels.LabelHeight))
	second := image.Rect(int(labels.ColumnX(1)), int(labels.RowY(0)), int(labels.ColumnX(1)+labels.LabelWidth), int(labels.RowY(0)+labels.LabelHeight))

	assert.True(t, hasInk(img, first), "first slot should carry text")
	assert.False(t, hasInk(img, second), "second slot should stay blank")
}

func TestRenderEmptySheet(t *testing.T) {
	r := newRenderer(t, Options{})
	_, err := r.Render(context.Background(), labels.Sheet{})

	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.ErrorIs(t, err, ErrEmptySheet)
}

func TestRenderIsNotReentrant(t *testing.T) {
	r := newRenderer(t, Options{})
	r.busy.Lock()
	defer r.busy.Unlock()

	_, err := r.Render(context.Background(), sheetWith(1))
	assert.ErrorIs(t, err, ErrBusy)
}

func TestLogoIsScaled(t *testing.T) {
	dir := t.TempDir()
	logoPath := filepath.Join(dir, "logo.png")
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for x := 0; x < 200; x++ {
		for y := 0; y < 100; y++ {
			src.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	f, err := os.Create(logoPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	require.NoError(t, f.Close())

	r := newRenderer(t, Options{LogoPath: logoPath})
	require.NotNil(t, r.logo)
	labelWidth := labels.LabelWidth
	width := int(labelWidth / 5)
	assert.Equal(t, width, r.logo.Bounds().Dx())
	assert.Equal(t, width/2, r.logo.Bounds().Dy())
}

func hasInk(img image.Image, rect image.Rectangle) bool {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r < 0xf000 || g < 0xf000 || b < 0xf000 {
				return true
			}
		}
	}
	return false
}
