package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"bonebot/pkg/meme"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

type Options struct {
	Trigger       string
	ListenToBots  bool
	MaxConcurrent int
}

type Handler struct {
	generator Generator
	opts      Options
	botID     string
	sem       *semaphore.Weighted
	wg        sync.WaitGroup
	ctx       context.Context
	log       *logrus.Entry
}

func NewHandler(ctx context.Context, g Generator, opts Options, log *logrus.Entry) *Handler {
	if opts.Trigger == "" {
		opts.Trigger = "!meme"
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{
		generator: g,
		opts:      opts,
		sem:       semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		ctx:       ctx,
		log:       log.WithField("component", "bot"),
	}
}

func (h *Handler) SetBotID(id string) {
	h.botID = id
}

func (h *Handler) MessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	h.HandleMessage(&DiscordSession{s}, m)
}

// HandleMessage starts a generation for triggering messages and returns immediately.
// Events beyond MaxConcurrent are dropped.
func (h *Handler) HandleMessage(s Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == h.botID {
		return
	}
	if m.Author.Bot && !h.opts.ListenToBots {
		return
	}
	// Guild channels only
	if m.GuildID == "" {
		return
	}
	if !IsTrigger(m.Content, h.opts.Trigger) {
		return
	}

	req := h.buildRequest(m)
	log := h.log.WithFields(logrus.Fields{
		"request_id": req.ID,
		"user_id":    req.UserID,
		"channel_id": req.Target.ChannelID,
	})

	if !h.sem.TryAcquire(1) {
		log.Warn("Too many memes in progress, dropping request")
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.sem.Release(1)
		defer func() {
			if p := recover(); p != nil {
				log.WithField("panic", fmt.Sprint(p)).Error("Meme request panicked")
			}
		}()

		outcome, err := h.generator.Handle(h.ctx, req)
		if err != nil {
			log.WithError(err).WithField("outcome", outcome.String()).Debug("Meme request finished with error")
		}
	}()
}

// Wait blocks until every started generation has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) buildRequest(m *discordgo.MessageCreate) *meme.Request {
	req := &meme.Request{
		ID:          uuid.NewString(),
		UserID:      m.Author.ID,
		UserMention: m.Author.Mention(),
		Content:     m.Content,
		Target: meme.Target{
			ChannelID: m.ChannelID,
			MessageID: m.ID,
			GuildID:   m.GuildID,
		},
	}

	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		req.Attachments = append(req.Attachments, meme.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			URL:         a.URL,
			IsImage:     isImageAttachment(a),
		})
	}

	for _, u := range m.Mentions {
		if u == nil {
			continue
		}
		req.Mentions = append(req.Mentions, meme.Mention{
			ID:        u.ID,
			AvatarURL: u.AvatarURL("512"),
		})
	}
	return req
}

// IsTrigger reports whether the first whitespace-separated token of content is the trigger.
func IsTrigger(content, trigger string) bool {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return false
	}
	return strings.EqualFold(fields[0], trigger)
}
