package meme

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bonebot/pkg/logger"

	"github.com/sirupsen/logrus"
)

// Reporter turns a failed request into one chat notice and one log entry.
type Reporter struct {
	deliverer Deliverer
	template  string
	operator  string
	log       *logrus.Entry
}

// NewReporter builds a Reporter. template may use $PING$ (requesting user) and $OPERATOR$
// (operatorID rendered as a mention, empty when unset).
func NewReporter(d Deliverer, template, operatorID string, log *logrus.Entry) *Reporter {
	if template == "" {
		template = "Error generating meme! $OPERATOR$"
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	operator := ""
	if operatorID != "" {
		operator = "<@" + operatorID + ">"
	}
	return &Reporter{
		deliverer: d,
		template:  template,
		operator:  operator,
		log:       log.WithField("component", "reporter"),
	}
}

func (r *Reporter) Notice(req *Request) string {
	return strings.TrimSpace(strings.NewReplacer(
		"$PING$", req.UserMention,
		"$OPERATOR$", r.operator,
	).Replace(r.template))
}

// Report never panics and never returns an error.
func (r *Reporter) Report(ctx context.Context, err error, req *Request) {
	defer func() {
		if p := recover(); p != nil {
			r.log.WithField("panic", fmt.Sprint(p)).Error("Error reporter panicked")
		}
	}()

	entry := logger.FromContext(ctx, r.log).WithFields(logrus.Fields{
		"kind":       KindOf(err).String(),
		"user_id":    req.UserID,
		"channel_id": req.Target.ChannelID,
		"message_id": req.Target.MessageID,
	})
	var e *Error
	if errors.As(err, &e) {
		entry = entry.WithField("op", e.Op)
	}
	entry.WithError(err).Error("Meme generation failed")

	if sendErr := r.deliverer.SendText(context.WithoutCancel(ctx), req.Target, r.Notice(req)); sendErr != nil {
		entry.WithField("send_error", sendErr.Error()).Warn("Failed to send error notice")
	}
}
