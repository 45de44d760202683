package meme

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Dimensions(t *testing.T) {
	c := NewCompositor(testFont(t), DefaultStyle())

	out, err := c.Render(solidImage(200, 100, gray), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, 1024, out.Bounds().Dx())
	assert.Equal(t, 512, out.Bounds().Dy())

	out, err = c.Render(solidImage(300, 400, gray), []string{"tall"})
	require.NoError(t, err)
	assert.Equal(t, 1365, out.Bounds().Dy())
}

func TestRender_Deterministic(t *testing.T) {
	c := NewCompositor(testFont(t), DefaultStyle())
	src := solidImage(320, 180, gray)
	lines := Layout("when the build passes on the first try", 22)

	a, err := c.Render(src, lines)
	require.NoError(t, err)
	b, err := c.Render(src, lines)
	require.NoError(t, err)

	assert.Equal(t, a.Bounds(), b.Bounds())
	assert.True(t, a.Stride == b.Stride && string(a.Pix) == string(b.Pix), "renders differ")
}

func TestRender_OutlineAndFill(t *testing.T) {
	c := NewCompositor(testFont(t), DefaultStyle())
	out, err := c.Render(solidImage(200, 100, gray), []string{"TOP LINE", "BOTTOM"})
	require.NoError(t, err)

	var light, dark int
	bounds := out.Bounds()
	for y := bounds.Dy() / 2; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			px := out.NRGBAAt(x, y)
			switch {
			case px.R > 240 && px.G > 240 && px.B > 240:
				light++
			case px.R < 15 && px.G < 15 && px.B < 15:
				dark++
			}
		}
	}
	assert.Greater(t, light, 500, "fill pixels expected near the bottom")
	assert.Greater(t, dark, 500, "outline pixels expected near the bottom")

	// Caption is anchored to the bottom; the top of the canvas keeps the background
	px := out.NRGBAAt(10, 10)
	assert.InDelta(t, 128, int(px.R), 2)
}

func TestRender_RejectsExtremeAspectRatio(t *testing.T) {
	c := NewCompositor(testFont(t), DefaultStyle())

	// 1x16 would need a 1024x16384 canvas
	out, err := c.Render(solidImage(1, 16, gray), []string{"hi"})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrAssetUnavailable)

	style := DefaultStyle()
	style.Width = 256
	style.MaxHeight = 512
	bounded := NewCompositor(testFont(t), style)

	out, err = bounded.Render(solidImage(1, 2, gray), []string{"hi"})
	require.NoError(t, err)
	assert.Equal(t, 512, out.Bounds().Dy())

	_, err = bounded.Render(solidImage(10, 21, gray), []string{"hi"})
	assert.ErrorIs(t, err, ErrAssetUnavailable)
}

func TestRender_DoesNotModifySource(t *testing.T) {
	c := NewCompositor(testFont(t), DefaultStyle())
	src := solidImage(64, 64, gray)
	before := append([]uint8(nil), src.Pix...)

	_, err := c.Render(src, []string{"caption"})
	require.NoError(t, err)
	assert.Equal(t, before, src.Pix)
}

func TestRender_UppercaseAtRenderTime(t *testing.T) {
	style := DefaultStyle()
	style.Uppercase = true
	upper := NewCompositor(testFont(t), style)
	plain := NewCompositor(testFont(t), DefaultStyle())
	src := solidImage(100, 50, gray)

	a, err := upper.Render(src, []string{"shout"})
	require.NoError(t, err)
	b, err := plain.Render(src, []string{"SHOUT"})
	require.NoError(t, err)
	assert.Equal(t, a.Pix, b.Pix)
}

func TestRender_Colors(t *testing.T) {
	style := DefaultStyle()
	style.Fill = color.NRGBA{R: 255, A: 255}
	style.OutlineWidth = 0
	c := NewCompositor(testFont(t), style)

	out, err := c.Render(solidImage(100, 50, gray), []string{"RED"})
	require.NoError(t, err)

	var red int
	for i := 0; i < len(out.Pix); i += 4 {
		if out.Pix[i] > 240 && out.Pix[i+1] < 15 && out.Pix[i+2] < 15 {
			red++
		}
	}
	assert.Greater(t, red, 100)
}

func TestBaseline(t *testing.T) {
	c := NewCompositor(testFont(t), DefaultStyle())
	// height - (n - i - 0.5) * 96
	assert.Equal(t, 368, c.Baseline(512, 0, 2))
	assert.Equal(t, 464, c.Baseline(512, 1, 2))
	assert.Equal(t, 464, c.Baseline(512, 0, 1))
}

func TestRender_FontUnavailable(t *testing.T) {
	src := solidImage(10, 10, gray)

	missing := NewCompositor(NewFontLoader(filepath.Join(t.TempDir(), "Impact.ttf")), DefaultStyle())
	_, err := missing.Render(src, []string{"x"})
	assert.ErrorIs(t, err, ErrFontUnavailable)

	unset := NewCompositor(NewFontLoader(""), DefaultStyle())
	_, err = unset.Render(src, []string{"x"})
	assert.ErrorIs(t, err, ErrFontUnavailable)

	garbage := filepath.Join(t.TempDir(), "broken.ttf")
	require.NoError(t, os.WriteFile(garbage, []byte("not a font"), 0o644))
	broken := NewCompositor(NewFontLoader(garbage), DefaultStyle())
	_, err = broken.Render(src, []string{"x"})
	assert.ErrorIs(t, err, ErrFontUnavailable)
}

func TestFontLoader_RetriesUntilLoaded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.ttf")
	loader := NewFontLoader(path)

	_, err := loader.Load()
	require.ErrorIs(t, err, ErrFontUnavailable)

	require.NoError(t, os.WriteFile(path, mustReadFont(t), 0o644))
	f, err := loader.Load()
	require.NoError(t, err)
	assert.NotNil(t, f)
}

func mustReadFont(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(testFontPath(t))
	require.NoError(t, err)
	return data
}
