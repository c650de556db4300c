// Package render turns a label sheet into a printable document on disk and hands back
// a reference to it.
package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"github.com/phillip-england/orderprep/internal/labels"
	"github.com/phillip-england/orderprep/internal/logging"
)

const (
	FormatPDF = "pdf"
	FormatPNG = "png"

	DefaultScale     = 2.0
	DefaultURLPrefix = "/documents/"

	pdfName      = "labels.pdf"
	manifestName = "document.json"
)

var (
	ErrBusy       = errors.New("a render is already in progress")
	ErrEmptySheet = errors.New("sheet has no labels")
)

// RenderError is a failure of the labels feature only.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Document references a finished render. Path is on disk and URL is where the HTTP
// surface serves it.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author,omitempty"`
	Format    string    `json:"format"`
	Path      string    `json:"path"`
	URL       string    `json:"url"`
	Pages     []string  `json:"pages"`
	Labels    int       `json:"labels"`
	CreatedAt time.Time `json:"createdAt"`
}

type Options struct {
	OutputDir string
	URLPrefix string
	PDFCPUBin string
	LogoPath  string
	Footer    string
	Author    string
	Scale     float64
	Log       *logging.Logger
}

type Renderer struct {
	opts  Options
	scale float64
	fonts *fonts
	logo  image.Image
	log   *logging.Logger
	busy  sync.Mutex
	now   func() time.Time
}

func New(opts Options) (*Renderer, error) {
	if opts.OutputDir == "" {
		return nil, errors.New("render output directory is required")
	}
	if opts.URLPrefix == "" {
		opts.URLPrefix = DefaultURLPrefix
	}
	if opts.Scale <= 0 {
		opts.Scale = DefaultScale
	}
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	f, err := loadFonts()
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		opts:  opts,
		scale: opts.Scale,
		fonts: f,
		log:   opts.Log.With("component", "render"),
		now:   time.Now,
	}
	if opts.LogoPath != "" {
		logo, err := loadLogo(opts.LogoPath)
		if err != nil {
			return nil, err
		}
		r.logo = scaleLogo(logo, int(labels.LabelWidth/5*r.scale))
	}
	return r, nil
}

func loadLogo(p string) (image.Image, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open logo: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode logo: %w", err)
	}
	return img, nil
}

// Render draws every page of the sheet and assembles them into a PDF with pdfcpu.
// When pdfcpu is unavailable or fails the PNG pages are the document. Only one
// render runs at a time; a second caller gets ErrBusy.
func (r *Renderer) Render(ctx context.Context, sheet labels.Sheet) (Document, error) {
	if !r.busy.TryLock() {
		return Document{}, &RenderError{Stage: "start", Err: ErrBusy}
	}
	defer r.busy.Unlock()

	if len(sheet.Slots) == 0 || sheet.Pages == 0 {
		return Document{}, &RenderError{Stage: "start", Err: ErrEmptySheet}
	}

	created := r.now()
	doc := Document{
		ID:        uuid.NewString(),
		Title:     "Order Export " + created.Format("1/2/2006, 3:04 PM"),
		Author:    r.opts.Author,
		Labels:    countLabels(sheet),
		CreatedAt: created,
	}
	dir := filepath.Join(r.opts.OutputDir, doc.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Document{}, &RenderError{Stage: "prepare", Err: err}
	}

	pages := make([]string, 0, sheet.Pages)
	for i := 0; i < sheet.Pages; i++ {
		if err := ctx.Err(); err != nil {
			return Document{}, &RenderError{Stage: "draw", Err: err}
		}
		name := fmt.Sprintf("page-%03d.png", i+1)
		if err := writePNG(filepath.Join(dir, name), r.drawPage(sheet, i)); err != nil {
			return Document{}, &RenderError{Stage: "draw", Err: err}
		}
		pages = append(pages, name)
	}
	doc.Pages = pages

	if err := r.assemblePDF(ctx, dir, pages, doc); err != nil {
		r.log.Warn("pdf assembly failed, keeping png pages", "document_id", doc.ID, "error", err)
		doc.Format = FormatPNG
		doc.Path = filepath.Join(dir, pages[0])
		doc.URL = r.url(doc.ID, pages[0])
	} else {
		doc.Format = FormatPDF
		doc.Path = filepath.Join(dir, pdfName)
		doc.URL = r.url(doc.ID, pdfName)
	}

	if err := writeManifest(filepath.Join(dir, manifestName), doc); err != nil {
		return Document{}, &RenderError{Stage: "manifest", Err: err}
	}
	r.log.Info("rendered labels", "document_id", doc.ID, "format", doc.Format, "pages", len(pages), "labels", doc.Labels)
	return doc, nil
}

func (r *Renderer) url(id, name string) string {
	return strings.TrimRight(r.opts.URLPrefix, "/") + "/" + path.Join(id, name)
}

func (r *Renderer) assemblePDF(ctx context.Context, dir string, pages []string, doc Document) error {
	bin := r.opts.PDFCPUBin
	if bin == "" {
		bin = "pdfcpu"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("%s is not installed: %w", bin, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	out := filepath.Join(dir, pdfName)
	args := []string{"import", "--", fmt.Sprintf("dim:%g %g, pos:full", labels.PageWidth, labels.PageHeight), out}
	for _, p := range pages {
		args = append(args, filepath.Join(dir, p))
	}
	if output, err := exec.CommandContext(runCtx, bin, args...).CombinedOutput(); err != nil {
		_ = os.Remove(out)
		return fmt.Errorf("pdfcpu import: %w (%s)", err, strings.TrimSpace(string(output)))
	}

	props := []string{"properties", "add", out, "Title = " + doc.Title}
	if doc.Author != "" {
		props = append(props, "Author = "+doc.Author)
	}
	if output, err := exec.CommandContext(runCtx, bin, props...).CombinedOutput(); err != nil {
		r.log.Warn("unable to set pdf properties", "document_id", doc.ID, "error", err, "output", strings.TrimSpace(string(output)))
	}
	return nil
}

func writePNG(p string, img image.Image) error {
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(p), err)
	}
	return f.Close()
}

func writeManifest(p string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func countLabels(sheet labels.Sheet) int {
	n := 0
	for _, s := range sheet.Slots {
		if s.Kind != labels.Blank {
			n++
		}
	}
	return n
}
