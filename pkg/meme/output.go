package meme

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Deliverer is the chat side of the pipeline.
type Deliverer interface {
	SendFile(ctx context.Context, target Target, name, contentType string, r io.Reader) error
	SendText(ctx context.Context, target Target, text string) error
	Typing(ctx context.Context, target Target) error
}

type OutputOptions struct {
	Dir   string
	// Format is "png" or "jpeg".
	Format      string
	JPEGQuality int
	// DeliveryInterval spaces uploads across all requests; zero disables throttling.
	DeliveryInterval time.Duration
}

// Output encodes rendered memes into uniquely named files, delivers them and removes them
// again whether or not delivery worked.
type Output struct {
	dir       string
	format    string
	quality   int
	deliverer Deliverer
	limiter   *rate.Limiter
	counter   atomic.Uint64
	log       *logrus.Entry
}

func NewOutput(opts OutputOptions, d Deliverer, log *logrus.Entry) (*Output, error) {
	format := strings.ToLower(opts.Format)
	switch format {
	case "", "png":
		format = "png"
	case "jpg", "jpeg":
		format = "jpeg"
	default:
		return nil, fmt.Errorf("unsupported output format %q", opts.Format)
	}
	if opts.Dir == "" {
		return nil, errors.New("artifact directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 90
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	o := &Output{
		dir:       opts.Dir,
		format:    format,
		quality:   opts.JPEGQuality,
		deliverer: d,
		log:       log.WithField("component", "output"),
	}
	if opts.DeliveryInterval > 0 {
		o.limiter = rate.NewLimiter(rate.Every(opts.DeliveryInterval), 2)
	}
	return o, nil
}

func (o *Output) Dir() string {
	return o.dir
}

func (o *Output) extension() string {
	if o.format == "jpeg" {
		return "jpg"
	}
	return "png"
}

func (o *Output) contentType() string {
	return "image/" + o.format
}

// nextName returns a file name no other call in this process will get.
func (o *Output) nextName() string {
	return fmt.Sprintf("meme%d.%s", o.counter.Add(1), o.extension())
}

func (o *Output) Deliver(ctx context.Context, img image.Image, target Target) error {
	name := o.nextName()
	path := filepath.Join(o.dir, name)
	defer o.remove(path)

	if err := o.write(path, img); err != nil {
		return newError(EncodeError, "encode "+name, err)
	}

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return newError(DeliveryError, "deliver "+name, err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return newError(DeliveryError, "deliver "+name, err)
	}
	defer f.Close()

	if err := o.deliverer.SendFile(ctx, target, name, o.contentType(), f); err != nil {
		return newError(DeliveryError, "deliver "+name, err)
	}
	return nil
}

func (o *Output) write(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	switch o.format {
	case "jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: o.quality})
	default:
		encoder := png.Encoder{CompressionLevel: png.BestSpeed}
		err = encoder.Encode(f, img)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (o *Output) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.log.WithError(err).Warnf("Failed to remove artifact %s", path)
	}
}
