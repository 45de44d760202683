package bot

import (
	"mime"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Image types the decoder understands
var supportedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/webp": true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
}

// isImageAttachment checks the declared content type first and falls back to the file extension.
func isImageAttachment(a *discordgo.MessageAttachment) bool {
	if a.ContentType != "" {
		mediaType, _, err := mime.ParseMediaType(a.ContentType)
		if err != nil {
			mediaType = a.ContentType
		}
		return supportedImageTypes[strings.ToLower(mediaType)]
	}
	return DetectImageFormat(a.Filename) != ""
}

func DetectImageFormat(filename string) string {
	ext := strings.ToLower(filename)

	switch {
	case strings.HasSuffix(ext, ".jpg") || strings.HasSuffix(ext, ".jpeg"):
		return "jpeg"
	case strings.HasSuffix(ext, ".png"):
		return "png"
	case strings.HasSuffix(ext, ".gif"):
		return "gif"
	case strings.HasSuffix(ext, ".webp"):
		return "webp"
	case strings.HasSuffix(ext, ".bmp"):
		return "bmp"
	case strings.HasSuffix(ext, ".tif") || strings.HasSuffix(ext, ".tiff"):
		return "tiff"
	default:
		return ""
	}
}
