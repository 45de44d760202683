package meme

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"bonebot/pkg/cooldown"
	"bonebot/pkg/logger"

	"github.com/sirupsen/logrus"
)

type Outcome int

const (
	Delivered Outcome = iota
	RateLimited
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case RateLimited:
		return "rate_limited"
	default:
		return "failed"
	}
}

type GeneratorConfig struct {
	WrapWidth int
	// CooldownMessage may use $PING$ and $TIME$ (whole seconds left).
	CooldownMessage string
	// BusyMessage is sent when the user's previous request is still running.
	BusyMessage    string
	TypingInterval time.Duration
}

// Generator runs one request through admission, resolution, layout, rendering and delivery.
type Generator struct {
	limiter    *cooldown.Limiter
	resolver   *Resolver
	compositor *Compositor
	output     *Output
	reporter   *Reporter
	deliverer  Deliverer
	cfg        GeneratorConfig
	now        func() time.Time
	log        *logrus.Entry
}

func NewGenerator(
	limiter *cooldown.Limiter,
	resolver *Resolver,
	compositor *Compositor,
	output *Output,
	reporter *Reporter,
	deliverer Deliverer,
	cfg GeneratorConfig,
	log *logrus.Entry,
) *Generator {
	if cfg.WrapWidth == 0 {
		cfg.WrapWidth = DefaultWrapWidth
	}
	if cfg.CooldownMessage == "" {
		cfg.CooldownMessage = "$PING$ can generate another meme in $TIME$ seconds."
	}
	if cfg.BusyMessage == "" {
		cfg.BusyMessage = cfg.CooldownMessage
	}
	if cfg.TypingInterval <= 0 {
		cfg.TypingInterval = 5 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Generator{
		limiter:    limiter,
		resolver:   resolver,
		compositor: compositor,
		output:     output,
		reporter:   reporter,
		deliverer:  deliverer,
		cfg:        cfg,
		now:        time.Now,
		log:        log.WithField("component", "generator"),
	}
}

// SetClock replaces time.Now.
func (g *Generator) SetClock(now func() time.Time) {
	g.now = now
}

// Handle processes req end to end. Denials and failures are reported to the user here; the
// returned error is for the caller's bookkeeping only.
func (g *Generator) Handle(ctx context.Context, req *Request) (Outcome, error) {
	log := g.log.WithFields(logrus.Fields{
		"request_id": req.ID,
		"user_id":    req.UserID,
		"channel_id": req.Target.ChannelID,
	})
	ctx = logger.WithContext(ctx, log)

	decision := g.limiter.Admit(req.UserID, g.now())
	if !decision.Admitted {
		log.WithFields(logrus.Fields{
			"remaining_seconds": decision.RemainingSeconds(),
			"in_flight":         decision.InFlight,
		}).Info("Meme request denied by cooldown")
		if err := g.deliverer.SendText(ctx, req.Target, g.denialNotice(req, decision)); err != nil {
			log.WithError(err).Warn("Failed to send cooldown notice")
		}
		return RateLimited, nil
	}

	start := time.Now()
	stopTyping := g.startTyping(ctx, req.Target)
	source, err := g.safeGenerate(ctx, req)
	stopTyping()

	if err != nil {
		g.limiter.Release(req.UserID)
		g.reporter.Report(ctx, err, req)
		return Failed, err
	}

	g.limiter.RecordUse(req.UserID, g.now())
	log.WithFields(logrus.Fields{
		"source":      source,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Meme delivered")
	return Delivered, nil
}

// safeGenerate turns a panic in any stage into an error so the failure path still runs.
func (g *Generator) safeGenerate(ctx context.Context, req *Request) (source string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = newError(KindUnknown, "generate", fmt.Errorf("panic: %v\n%s", p, debug.Stack()))
		}
	}()
	return g.generate(ctx, req)
}

func (g *Generator) generate(ctx context.Context, req *Request) (string, error) {
	in, err := g.resolver.Resolve(ctx, req)
	if err != nil {
		return "", err
	}

	lines := Layout(in.Caption, g.cfg.WrapWidth)
	if len(lines) == 0 {
		caption, err := g.resolver.RandomCaption()
		if err != nil {
			return in.Source, err
		}
		lines = Layout(caption, g.cfg.WrapWidth)
		if len(lines) == 0 {
			return in.Source, newError(EmptyCorpus, "layout", nil)
		}
	}

	rendered, err := g.compositor.Render(in.Image, lines)
	if err != nil {
		return in.Source, err
	}

	return in.Source, g.output.Deliver(ctx, rendered, req.Target)
}

func (g *Generator) denialNotice(req *Request, d cooldown.Decision) string {
	template := g.cfg.CooldownMessage
	if d.InFlight {
		template = g.cfg.BusyMessage
	}
	return strings.NewReplacer(
		"$PING$", req.UserMention,
		"$TIME$", strconv.FormatInt(d.RemainingSeconds(), 10),
	).Replace(template)
}

// startTyping keeps the typing indicator alive until the returned func is called.
func (g *Generator) startTyping(ctx context.Context, target Target) func() {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(g.cfg.TypingInterval)
		defer ticker.Stop()
		for {
			if err := g.deliverer.Typing(ctx, target); err != nil && ctx.Err() == nil {
				logger.FromContext(ctx, g.log).WithError(err).Debug("Typing indicator failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}
