package meme

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font/opentype"
)

// FontLoader reads the caption font on first use and keeps it once parsed. Failures are not
// cached, so a font installed after startup is picked up by the next request.
type FontLoader struct {
	path string

	mu   sync.Mutex
	font *opentype.Font
}

func NewFontLoader(path string) *FontLoader {
	return &FontLoader{path: path}
}

// NewStaticFont wraps an already parsed font.
func NewStaticFont(f *opentype.Font) *FontLoader {
	return &FontLoader{font: f}
}

func (l *FontLoader) Load() (*opentype.Font, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.font != nil {
		return l.font, nil
	}
	if l.path == "" {
		return nil, newError(FontUnavailable, "load font", fmt.Errorf("no font path configured"))
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, newError(FontUnavailable, "load font", err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, newError(FontUnavailable, "load font", fmt.Errorf("parse %s: %w", l.path, err))
	}
	l.font = f
	return f, nil
}
