package meme

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

type sentFile struct {
	Name        string
	ContentType string
	Data        []byte
	Target      Target
}

// mockDeliverer records everything sent through it.
type mockDeliverer struct {
	mu          sync.Mutex
	Texts       []string
	Files       []sentFile
	TypingCalls int

	FileErr error
	TextErr error
	// OnSendFile runs before the file is read, while the artifact still exists.
	OnSendFile func(name string)
}

func (m *mockDeliverer) SendFile(ctx context.Context, target Target, name, contentType string, r io.Reader) error {
	if m.OnSendFile != nil {
		m.OnSendFile(name)
	}
	if m.FileErr != nil {
		return m.FileErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files = append(m.Files, sentFile{Name: name, ContentType: contentType, Data: data, Target: target})
	return nil
}

func (m *mockDeliverer) SendText(ctx context.Context, target Target, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Texts = append(m.Texts, text)
	return m.TextErr
}

func (m *mockDeliverer) Typing(ctx context.Context, target Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TypingCalls++
	return nil
}

func (m *mockDeliverer) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Texts...)
}

func (m *mockDeliverer) files() []sentFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentFile(nil), m.Files...)
}

// fakeFetcher serves fixed bodies per URL.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error
	block  bool
	calls  []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	body, ok := f.bodies[url]
	err := f.errs[url]
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("not found")
	}
	return body, nil
}

// fakeAssets is an in-memory Assets.
type fakeAssets struct {
	texts  []string
	images []image.Image
}

func (a *fakeAssets) RandomText() (string, error) {
	if len(a.texts) == 0 {
		return "", errors.New("no texts")
	}
	return a.texts[0], nil
}

func (a *fakeAssets) RandomImage() (image.Image, error) {
	if len(a.images) == 0 {
		return nil, errors.New("no images")
	}
	return a.images[0], nil
}

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testFont(t *testing.T) *FontLoader {
	t.Helper()
	f, err := opentype.Parse(gobold.TTF)
	require.NoError(t, err)
	return NewStaticFont(f)
}

func testFontPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "caption.ttf")
	require.NoError(t, os.WriteFile(path, gobold.TTF, 0o644))
	return path
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

var gray = color.NRGBA{R: 128, G: 128, B: 128, A: 255}
