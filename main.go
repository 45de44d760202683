package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bonebot/pkg/assets"
	"bonebot/pkg/bot"
	"bonebot/pkg/cache"
	"bonebot/pkg/config"
	"bonebot/pkg/cooldown"
	"bonebot/pkg/fetch"
	"bonebot/pkg/logger"
	"bonebot/pkg/meme"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env for secrets
	envErr := godotenv.Load()

	log := logger.New(logger.LoadFromEnv())
	logger.SetDefault(log)
	defer logger.Sync()

	if envErr != nil {
		log.Info("No .env file found, relying on environment variables")
	}

	// Load config.yml
	cfg, err := config.LoadConfig("config.yml")
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		log.Fatal("Missing required environment variable: DISCORD_TOKEN")
	}
	operatorID := os.Getenv("DISCORD_OPERATOR_ID")
	if operatorID == "" {
		log.Warn("DISCORD_OPERATOR_ID not set, error notices will not ping anyone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	// Fetch cache: Redis when configured, in-process otherwise
	var store cache.Store
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisCache, err := cache.NewRedisCache(redisURL, "bonebot")
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisCache.Close()
		store = redisCache
		log.Info("Using Redis fetch cache")
	} else {
		store = cache.NewMemory(cfg.CacheTTL())
	}

	fetcher := fetch.NewClient(fetch.Options{
		Timeout:           cfg.FetchTimeout(),
		MaxBodySize:       cfg.Fetch.MaxBodyBytes,
		AllowPrivateHosts: cfg.Fetch.AllowPrivateHosts,
		Cache:             store,
		CacheTTL:          cfg.CacheTTL(),
	})

	assetStore := assets.NewStore(cfg.Assets.CorpusPath, cfg.Assets.ImagesDir, logger.Component("assets"))
	if err := assetStore.Load(ctx); err != nil {
		log.WithError(err).Fatal("Failed to load assets")
	}

	fonts := meme.NewFontLoader(cfg.Render.FontPath)
	if cfg.Render.ValidateFontOnStart {
		if _, err := fonts.Load(); err != nil {
			log.WithError(err).Fatal("Caption font unavailable")
		}
	}

	style := meme.DefaultStyle()
	style.Width = cfg.Render.Width
	style.FontSize = cfg.Render.FontSize
	style.BaselineOffset = cfg.Render.BaselineOffset
	style.OutlineWidth = cfg.Render.OutlineWidth
	style.Uppercase = cfg.Render.Uppercase
	style.MaxHeight = cfg.Render.MaxHeight
	compositor := meme.NewCompositor(fonts, style)

	artifactDir := cfg.Output.ArtifactDir
	if artifactDir == "" {
		artifactDir, err = os.MkdirTemp("", "bonebot-")
		if err != nil {
			log.WithError(err).Fatal("Failed to create artifact directory")
		}
		defer os.RemoveAll(artifactDir)
	}

	// Create Discord Session
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		log.WithError(err).Fatal("Error creating Discord session")
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	deliverer := bot.NewDiscordDeliverer(&bot.DiscordSession{Session: dg})

	output, err := meme.NewOutput(meme.OutputOptions{
		Dir:              artifactDir,
		Format:           cfg.Output.Format,
		JPEGQuality:      cfg.Output.JPEGQuality,
		DeliveryInterval: cfg.DeliveryInterval(),
	}, deliverer, logger.Component("output"))
	if err != nil {
		log.WithError(err).Fatal("Invalid output settings")
	}

	generator := meme.NewGenerator(
		cooldown.New(cfg.CooldownWindow()),
		meme.NewResolver(fetcher, assetStore, cfg.Bot.Trigger, cfg.FetchTimeout(), cfg.Fetch.MaxSourcePixels),
		compositor,
		output,
		meme.NewReporter(deliverer, cfg.Messages.Error, operatorID, logger.Component("reporter")),
		deliverer,
		meme.GeneratorConfig{
			WrapWidth:       cfg.Render.WrapWidth,
			CooldownMessage: cfg.Messages.Cooldown,
			BusyMessage:     cfg.Messages.Busy,
		},
		log,
	)

	// Detach in-flight work from the signal so it can finish during shutdown
	handler := bot.NewHandler(context.WithoutCancel(ctx), generator, bot.Options{
		Trigger:       cfg.Bot.Trigger,
		ListenToBots:  cfg.Bot.ListenToBots,
		MaxConcurrent: cfg.Bot.MaxConcurrent,
	}, log)

	dg.AddHandler(handler.MessageCreate)

	// Open Connection
	if err := dg.Open(); err != nil {
		log.WithError(err).Fatal("Error opening connection")
	}

	// Set Bot ID in handler (so it can ignore itself)
	handler.SetBotID(dg.State.User.ID)

	log.WithField("trigger", cfg.Bot.Trigger).Info("Bot is now running. Press CTRL-C to exit.")

	// SIGHUP re-reads text.txt and the image directory
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := assetStore.Reload(ctx); err != nil {
					log.WithError(err).Error("Failed to reload assets")
				}
			}
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	if err := dg.Close(); err != nil {
		log.WithError(err).Warn("Error closing Discord session")
	}

	done := make(chan struct{})
	go func() {
		handler.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warn("Timed out waiting for in-flight memes")
	}
}
