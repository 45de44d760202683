package meme

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Resolver picks the background image and caption for a request. Sources are tried in order
// and the first that applies wins; its failure fails the request.
type Resolver struct {
	sources      []ImageSource
	assets       Assets
	trigger      string
	fetchTimeout time.Duration
}

// NewResolver uses the attachment, mention avatar and random asset sources in that order.
// maxPixels bounds remote images; zero means DefaultMaxSourcePixels.
func NewResolver(fetcher Fetcher, assets Assets, trigger string, fetchTimeout time.Duration, maxPixels int) *Resolver {
	return NewResolverWithSources(assets, trigger, fetchTimeout,
		AttachmentSource{Fetcher: fetcher, MaxPixels: maxPixels},
		MentionAvatarSource{Fetcher: fetcher, MaxPixels: maxPixels},
		RandomAssetSource{Assets: assets},
	)
}

func NewResolverWithSources(assets Assets, trigger string, fetchTimeout time.Duration, sources ...ImageSource) *Resolver {
	if fetchTimeout <= 0 {
		fetchTimeout = 2 * time.Second
	}
	return &Resolver{
		sources:      sources,
		assets:       assets,
		trigger:      trigger,
		fetchTimeout: fetchTimeout,
	}
}

func (r *Resolver) Resolve(ctx context.Context, req *Request) (*ResolvedInput, error) {
	for _, src := range r.sources {
		if !src.Applies(req) {
			continue
		}

		fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
		img, err := src.Image(fetchCtx, req)
		cancel()
		if err != nil {
			return nil, err
		}
		if img == nil || img.Bounds().Empty() {
			return nil, newError(AssetUnavailable, "resolve "+src.Name(), errors.New("empty image"))
		}

		caption := src.Caption(req, r.trigger)
		if strings.TrimSpace(caption) == "" {
			caption, err = r.RandomCaption()
			if err != nil {
				return nil, err
			}
		}

		return &ResolvedInput{Image: img, Caption: caption, Source: src.Name()}, nil
	}
	return nil, newError(AssetUnavailable, "resolve", errors.New("no image source applies"))
}

// RandomCaption draws a line from the corpus.
func (r *Resolver) RandomCaption() (string, error) {
	if r.assets == nil {
		return "", newError(EmptyCorpus, "pick caption", nil)
	}
	text, err := r.assets.RandomText()
	if err != nil {
		return "", newError(EmptyCorpus, "pick caption", err)
	}
	return text, nil
}
