package meme

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// referenceWidth is the canvas width FontSize and OutlineWidth are expressed against.
const referenceWidth = 1024

type Style struct {
	Width          int
	FontSize       float64
	BaselineOffset float64
	OutlineWidth   float64
	Uppercase      bool
	// MaxHeight bounds the output canvas. Sources too tall for it are rejected.
	MaxHeight      int
	Fill           color.Color
	Outline        color.Color
}

func DefaultStyle() Style {
	return Style{
		Width:          1024,
		FontSize:       96,
		BaselineOffset: 0.5,
		OutlineWidth:   6,
		MaxHeight:      4096,
		Fill:           color.White,
		Outline:        color.Black,
	}
}

// Compositor draws caption lines over a resampled background.
type Compositor struct {
	fonts *FontLoader
	style Style
}

func NewCompositor(fonts *FontLoader, style Style) *Compositor {
	def := DefaultStyle()
	if style.Width <= 0 {
		style.Width = def.Width
	}
	if style.FontSize <= 0 {
		style.FontSize = def.FontSize
	}
	if style.MaxHeight <= 0 {
		style.MaxHeight = def.MaxHeight
	}
	if style.OutlineWidth < 0 {
		style.OutlineWidth = 0
	}
	if style.Fill == nil {
		style.Fill = def.Fill
	}
	if style.Outline == nil {
		style.Outline = def.Outline
	}
	return &Compositor{fonts: fonts, style: style}
}

// Render returns a new image of the configured width, height following src's aspect ratio,
// with lines stacked up from the bottom edge. src is not modified.
func (c *Compositor) Render(src image.Image, lines []string) (*image.NRGBA, error) {
	f, err := c.fonts.Load()
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, newError(AssetUnavailable, "render", errors.New("empty source image"))
	}

	width := c.style.Width
	exact := float64(width) * float64(bounds.Dy()) / float64(bounds.Dx())
	if exact > float64(c.style.MaxHeight) {
		return nil, newError(AssetUnavailable, "render",
			fmt.Errorf("source %dx%d is too tall for a %d px wide canvas (max height %d)",
				bounds.Dx(), bounds.Dy(), width, c.style.MaxHeight))
	}
	height := int(exact)
	if height < 1 {
		height = 1
	}
	canvas := imaging.Resize(src, width, height, imaging.CatmullRom)

	scale := float64(width) / referenceWidth
	size := c.style.FontSize * scale
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, newError(FontUnavailable, "render", err)
	}
	defer face.Close()

	radius := int(math.Round(c.style.OutlineWidth / 2 * scale))
	outline := image.NewUniform(c.style.Outline)
	fill := image.NewUniform(c.style.Fill)
	d := &font.Drawer{Dst: canvas, Face: face}

	n := len(lines)
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if c.style.Uppercase {
			line = strings.ToUpper(line)
		}
		if line == "" {
			continue
		}

		x := (width - font.MeasureString(face, line).Round()) / 2
		y := c.Baseline(height, i, n)

		d.Src = outline
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				if dx*dx+dy*dy > radius*radius || (dx == 0 && dy == 0) {
					continue
				}
				d.Dot = fixed.P(x+dx, y+dy)
				d.DrawString(line)
			}
		}

		d.Src = fill
		d.Dot = fixed.P(x, y)
		d.DrawString(line)
	}

	return canvas, nil
}

// Baseline returns the y coordinate of line i of n on a canvas of the given height.
func (c *Compositor) Baseline(height, i, n int) int {
	size := c.style.FontSize * float64(c.style.Width) / referenceWidth
	return int(float64(height) - (float64(n-i)-c.style.BaselineOffset)*size)
}
