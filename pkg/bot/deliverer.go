package bot

import (
	"context"
	"io"

	"bonebot/pkg/meme"

	"github.com/bwmarrin/discordgo"
)

// DiscordDeliverer sends generated memes and notices back to the channel they were requested in.
type DiscordDeliverer struct {
	session Session
}

func NewDiscordDeliverer(s Session) *DiscordDeliverer {
	return &DiscordDeliverer{session: s}
}

// SendFile uploads r as an attachment replying to the triggering message.
func (d *DiscordDeliverer) SendFile(ctx context.Context, target meme.Target, name, contentType string, r io.Reader) error {
	_, err := d.session.ChannelMessageSendComplex(target.ChannelID, &discordgo.MessageSend{
		Files: []*discordgo.File{{
			Name:        name,
			ContentType: contentType,
			Reader:      r,
		}},
		Reference: reference(target),
	}, discordgo.WithContext(ctx))
	return err
}

func (d *DiscordDeliverer) SendText(ctx context.Context, target meme.Target, text string) error {
	_, err := d.session.ChannelMessageSend(target.ChannelID, text, discordgo.WithContext(ctx))
	return err
}

func (d *DiscordDeliverer) Typing(ctx context.Context, target meme.Target) error {
	return d.session.ChannelTyping(target.ChannelID, discordgo.WithContext(ctx))
}

func reference(target meme.Target) *discordgo.MessageReference {
	if target.MessageID == "" {
		return nil
	}
	return &discordgo.MessageReference{
		MessageID: target.MessageID,
		ChannelID: target.ChannelID,
		GuildID:   target.GuildID,
	}
}
