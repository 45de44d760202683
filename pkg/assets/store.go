package assets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	// Register WebP alongside the decoders imaging already pulls in.
	_ "golang.org/x/image/webp"
)

var (
	ErrNoText   = errors.New("caption corpus is empty")
	ErrNoImages = errors.New("default image pool is empty")
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tif":  true,
	".tiff": true,
}

// Store holds the caption corpus and the default background images. Load replaces both
// atomically; readers never see a half-loaded pool.
type Store struct {
	corpusPath string
	imagesDir  string
	log        *logrus.Entry

	mu     sync.RWMutex
	texts  []string
	images []image.Image

	// intN picks an index in [0, n). Swappable for deterministic tests.
	intN func(n int) int
}

func NewStore(corpusPath, imagesDir string, log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{
		corpusPath: corpusPath,
		imagesDir:  imagesDir,
		log:        log.WithField("component", "assets"),
		intN:       rand.IntN,
	}
}

// NewStatic builds a Store over in-memory assets.
func NewStatic(texts []string, images []image.Image) *Store {
	s := NewStore("", "", nil)
	s.texts = texts
	s.images = images
	return s
}

// Load reads the corpus file and decodes every image in the images directory. Unreadable
// images are logged and skipped. A missing corpus file or directory leaves that pool empty.
func (s *Store) Load(ctx context.Context) error {
	texts, err := readCorpus(s.corpusPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read corpus: %w", err)
		}
		s.log.Warnf("Corpus file %s not found, random captions disabled", s.corpusPath)
	}

	images, err := s.loadImages(ctx)
	if err != nil {
		return fmt.Errorf("load images: %w", err)
	}

	s.mu.Lock()
	s.texts = texts
	s.images = images
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"texts": len(texts), "images": len(images)}).Info("Assets loaded")
	return nil
}

// Reload re-reads the corpus and image directory. main calls it on SIGHUP.
func (s *Store) Reload(ctx context.Context) error {
	return s.Load(ctx)
}

func readCorpus(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var texts []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		texts = append(texts, strings.ReplaceAll(line, `\n`, "\n"))
	}
	return texts, scanner.Err()
}

func (s *Store) loadImages(ctx context.Context) ([]image.Image, error) {
	if s.imagesDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(s.imagesDir)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Warnf("Image directory %s not found, default images disabled", s.imagesDir)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if !IsPoolImage(entry.Name()) || entry.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(s.imagesDir, entry.Name()))
	}
	sort.Strings(paths)

	decoded := make([]image.Image, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := imaging.Open(path, imaging.AutoOrientation(true))
			if err != nil {
				s.log.WithError(err).Warnf("Skipping unreadable image %s", path)
				return nil
			}
			decoded[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	images := decoded[:0]
	for _, img := range decoded {
		if img != nil {
			images = append(images, img)
		}
	}
	return images, nil
}

// IsPoolImage reports whether a directory entry name is eligible for the default pool:
// not hidden and carrying a known raster extension.
func IsPoolImage(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// RandomText returns a uniformly random corpus line.
func (s *Store) RandomText() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.texts) == 0 {
		return "", ErrNoText
	}
	return s.texts[s.intN(len(s.texts))], nil
}

// RandomImage returns a uniformly random default image. Images are shared and must be
// treated as read-only.
func (s *Store) RandomImage() (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.images) == 0 {
		return nil, ErrNoImages
	}
	return s.images[s.intN(len(s.images))], nil
}

func (s *Store) Counts() (texts, images int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.texts), len(s.images)
}

// SetRand replaces the index picker.
func (s *Store) SetRand(intN func(n int) int) {
	s.mu.Lock()
	s.intN = intN
	s.mu.Unlock()
}
