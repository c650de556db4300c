package render

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/phillip-england/orderprep/internal/labels"
)

// Font sizes in points, per label kind.
const (
	itemTitleSize        = 11.0
	itemInstructionsSize = 9.0
	itemDateSize         = 9.0

	customerNameSize     = 10.0
	customerAddressSize  = 7.0
	customerLocationSize = 7.0
	customerDateSize     = 8.0

	extrasTitleSize = 12.0
	extrasPriceSize = 11.0

	footerSize = 7.0

	// Space kept clear of the date on the right edge.
	dateInset = 10.0
)

type fonts struct {
	regular *truetype.Font
	bold    *truetype.Font
	faces   map[faceKey]font.Face
}

type faceKey struct {
	bold bool
	size float64
}

func loadFonts() (*fonts, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &fonts{regular: regular, bold: bold, faces: map[faceKey]font.Face{}}, nil
}

func (f *fonts) face(bold bool, size float64) font.Face {
	key := faceKey{bold: bold, size: size}
	if face, ok := f.faces[key]; ok {
		return face
	}
	ttf := f.regular
	if bold {
		ttf = f.bold
	}
	face := truetype.NewFace(ttf, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone})
	f.faces[key] = face
	return face
}

// scaleLogo resizes the logo to the given pixel width, keeping its aspect ratio.
func scaleLogo(src image.Image, width int) image.Image {
	b := src.Bounds()
	if b.Dx() == 0 || width <= 0 {
		return src
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

// page draws one sheet page. Coordinates are kept in points and multiplied by the
// scale at draw time so glyphs are rasterized at full resolution.
type page struct {
	dc     *gg.Context
	fonts  *fonts
	scale  float64
	logo   image.Image
	footer string
}

func (r *Renderer) drawPage(sheet labels.Sheet, index int) image.Image {
	p := &page{
		dc:     gg.NewContext(int(labels.PageWidth*r.scale), int(labels.PageHeight*r.scale)),
		fonts:  r.fonts,
		scale:  r.scale,
		logo:   r.logo,
		footer: r.opts.Footer,
	}
	p.dc.SetColor(color.White)
	p.dc.Clear()
	p.dc.SetColor(color.Black)

	for _, slot := range sheet.Slots {
		if slot.Page != index {
			continue
		}
		switch slot.Kind {
		case labels.Item:
			p.item(slot)
		case labels.Customer:
			p.customer(slot)
		case labels.Extras:
			p.extras(slot)
		}
	}
	return p.dc.Image()
}

func (p *page) item(slot labels.Slot) {
	c := slot.Item
	p.drawLogo(slot)
	y := p.block(slot, slot.Y+labels.LabelPadding, c.Title+" - "+c.Variant, true, itemTitleSize)
	p.block(slot, y, c.Instructions, false, itemInstructionsSize)
	p.drawFooter(slot)
	p.drawDate(slot, c.DateStamp, itemDateSize)
}

func (p *page) customer(slot labels.Slot) {
	c := slot.Customer
	p.drawLogo(slot)
	y := p.block(slot, slot.Y+labels.LabelPadding, c.Name, true, customerNameSize)
	for _, line := range c.Address {
		y = p.block(slot, y, line, false, customerAddressSize)
	}
	p.block(slot, y, c.Location, false, customerLocationSize)
	p.drawFooter(slot)
	p.drawDate(slot, c.DateStamp, customerDateSize)
}

func (p *page) extras(slot labels.Slot) {
	c := slot.Extras
	p.drawLogo(slot)
	y := p.block(slot, slot.Y+labels.LabelPadding, c.Title+" - "+c.Variant, true, extrasTitleSize)
	if c.Price != "" {
		p.block(slot, y, "$"+c.Price, false, extrasPriceSize)
	}
	p.drawFooter(slot)
}

// block draws text wrapped and centered inside the label's padded width, starting at
// top. It returns the y coordinate just below the last line.
func (p *page) block(slot labels.Slot, top float64, text string, bold bool, size float64) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return top
	}
	p.dc.SetFontFace(p.fonts.face(bold, size*p.scale))
	width := (labels.LabelWidth - labels.LabelPadding*2) * p.scale
	center := (slot.X + labels.LabelWidth/2) * p.scale
	y := top * p.scale
	for _, line := range p.dc.WordWrap(text, width) {
		p.dc.DrawStringAnchored(line, center, y, 0.5, 1)
		y += p.dc.FontHeight() * 1.15
	}
	return y / p.scale
}

func (p *page) drawFooter(slot labels.Slot) {
	if p.footer == "" {
		return
	}
	p.dc.SetFontFace(p.fonts.face(false, footerSize*p.scale))
	top := slot.Y + labels.LabelHeight - labels.LabelPadding - footerSize
	center := slot.X + labels.LabelWidth/2
	p.dc.DrawStringAnchored(p.footer, center*p.scale, top*p.scale, 0.5, 1)
}

func (p *page) drawDate(slot labels.Slot, stamp string, size float64) {
	if stamp == "" {
		return
	}
	p.dc.SetFontFace(p.fonts.face(false, size*p.scale))
	top := slot.Y + labels.LabelHeight - labels.LabelPadding - size
	right := slot.X + labels.LabelWidth - labels.LabelPadding - dateInset
	p.dc.DrawStringAnchored(stamp, right*p.scale, top*p.scale, 1, 1)
}

func (p *page) drawLogo(slot labels.Slot) {
	if p.logo == nil {
		return
	}
	x := (slot.X + labels.LabelPadding) * p.scale
	y := (slot.Y + labels.LabelPadding + labels.LabelHeight/3.75) * p.scale
	p.dc.DrawImage(p.logo, int(x), int(y))
}
