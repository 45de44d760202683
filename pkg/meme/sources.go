package meme

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"regexp"
	"strings"
	"unicode"

	"bonebot/pkg/fetch"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/webp"
)

// Fetcher downloads remote bytes, failing with fetch.ErrTimeout past its deadline.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Assets is the read side of the asset store.
type Assets interface {
	RandomText() (string, error)
	RandomImage() (image.Image, error)
}

// ImageSource is one way of obtaining a background image and caption for a request.
type ImageSource interface {
	Name() string
	Applies(req *Request) bool
	Image(ctx context.Context, req *Request) (image.Image, error)
	// Caption is the request text with control tokens removed; empty means "use the corpus".
	Caption(req *Request, trigger string) string
}

// DefaultMaxSourcePixels caps width*height of a remote image before it is decoded.
const DefaultMaxSourcePixels = 40_000_000

// AttachmentSource uses the first image attached to the message.
type AttachmentSource struct {
	Fetcher Fetcher
	// MaxPixels defaults to DefaultMaxSourcePixels.
	MaxPixels int
}

func (AttachmentSource) Name() string { return "attachment" }

func (AttachmentSource) Applies(req *Request) bool {
	_, ok := req.FirstImageAttachment()
	return ok
}

func (s AttachmentSource) Image(ctx context.Context, req *Request) (image.Image, error) {
	a, _ := req.FirstImageAttachment()
	return fetchImage(ctx, s.Fetcher, a.URL, "fetch attachment", s.MaxPixels)
}

func (AttachmentSource) Caption(req *Request, trigger string) string {
	return strings.TrimSpace(StripTrigger(req.Content, trigger))
}

// MentionAvatarSource uses the avatar of the first mentioned user.
type MentionAvatarSource struct {
	Fetcher   Fetcher
	MaxPixels int
}

func (MentionAvatarSource) Name() string { return "mention_avatar" }

func (MentionAvatarSource) Applies(req *Request) bool {
	return len(req.Mentions) > 0 && req.Mentions[0].AvatarURL != ""
}

func (s MentionAvatarSource) Image(ctx context.Context, req *Request) (image.Image, error) {
	return fetchImage(ctx, s.Fetcher, req.Mentions[0].AvatarURL, "fetch avatar", s.MaxPixels)
}

func (MentionAvatarSource) Caption(req *Request, trigger string) string {
	text := StripTrigger(req.Content, trigger)
	text = mentionPattern.ReplaceAllString(text, " ")
	return CollapseWhitespace(text)
}

// RandomAssetSource picks from the default image pool. It always applies.
type RandomAssetSource struct {
	Assets Assets
}

func (RandomAssetSource) Name() string { return "random_asset" }

func (RandomAssetSource) Applies(*Request) bool { return true }

func (s RandomAssetSource) Image(context.Context, *Request) (image.Image, error) {
	img, err := s.Assets.RandomImage()
	if err != nil {
		return nil, newError(AssetUnavailable, "pick default image", err)
	}
	return img, nil
}

func (RandomAssetSource) Caption(req *Request, trigger string) string {
	return CollapseWhitespace(StripTrigger(req.Content, trigger))
}

func fetchImage(ctx context.Context, f Fetcher, url, op string, maxPixels int) (image.Image, error) {
	if f == nil || url == "" {
		return nil, newError(AssetUnavailable, op, errors.New("no source URL"))
	}
	data, err := f.Fetch(ctx, url)
	if err != nil {
		if errors.Is(err, fetch.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, newError(FetchTimeout, op, err)
		}
		return nil, newError(FetchFailed, op, err)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxSourcePixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, newError(DecodeError, op, fmt.Errorf("decode %s: %w", url, err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, newError(AssetUnavailable, op,
			fmt.Errorf("%s is %dx%d, over the %d pixel limit", url, cfg.Width, cfg.Height, maxPixels))
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, newError(DecodeError, op, fmt.Errorf("decode %s: %w", url, err))
	}
	return img, nil
}

var mentionPattern = regexp.MustCompile(`<@[!&]?\d+>`)

// StripTrigger removes the command token from the head of content, ignoring case.
func StripTrigger(content, trigger string) string {
	trimmed := strings.TrimLeftFunc(content, unicode.IsSpace)
	if trigger != "" && len(trimmed) >= len(trigger) && strings.EqualFold(trimmed[:len(trigger)], trigger) {
		return trimmed[len(trigger):]
	}
	return trimmed
}

// CollapseWhitespace squeezes runs of spaces and tabs within each line and trims the result.
// Line breaks are kept.
func CollapseWhitespace(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
