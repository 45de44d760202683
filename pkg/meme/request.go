package meme

import (
	"image"
)

// Target is where replies for a request go.
type Target struct {
	ChannelID string
	MessageID string
	GuildID   string
}

type Attachment struct {
	Filename    string
	ContentType string
	URL         string
	IsImage     bool
}

type Mention struct {
	ID        string
	AvatarURL string
}

// Request is one inbound meme command. It is built once by the transport and not modified
// afterwards.
type Request struct {
	ID          string
	UserID      string
	UserMention string
	Content     string
	Attachments []Attachment
	Mentions    []Mention
	Target      Target
}

// FirstImageAttachment returns the first attachment flagged as an image.
func (r *Request) FirstImageAttachment() (Attachment, bool) {
	for _, a := range r.Attachments {
		if a.IsImage {
			return a, true
		}
	}
	return Attachment{}, false
}

// ResolvedInput is the background image and caption chosen for a request.
type ResolvedInput struct {
	Image   image.Image
	Caption string
	Source  string
}
