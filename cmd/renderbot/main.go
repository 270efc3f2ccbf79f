package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"renderbot/internal/bus"
	"renderbot/internal/channel"
	"renderbot/internal/config"
	"renderbot/internal/content"
	"renderbot/internal/dispatch"
	"renderbot/internal/domain"
	"renderbot/internal/metrics"
	"renderbot/internal/pipeline"
	"renderbot/internal/proactive"
	"renderbot/internal/render"
	"renderbot/internal/renderer"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "renderbot",
		Short:   "renderbot: multi-channel content rendering bot",
		Long:    "renderbot renders stored content through named renderers and dispatches the resulting message sequences to Telegram, Discord, Slack, Web, and CLI channels.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.renderbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(contentCmd())
	root.AddCommand(configCmd())
	root.AddCommand(installDaemonCmd())
	root.AddCommand(uninstallDaemonCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and content library",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(config.ExpandPath(cfg.Content.LibraryDir), 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "library", cfg.Content.LibraryDir)
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := os.Stderr
	if cfg.General.LogFile != "" {
		if f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			out = f
		} else {
			logger.Warn("cannot open log file, logging to stderr", "path", cfg.General.LogFile, "err", err)
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

// app bundles the wired components shared by the gateway and send commands.
type app struct {
	cfg       *config.Config
	store     *content.SQLiteStore
	renderers *renderer.Registry
	channels  *channel.Registry
	sender    *dispatch.Sender
	events    *bus.EventBus
	metrics   *metrics.AppMetrics
	listeners map[string]domain.Listener
}

// buildApp wires the content store, registries, engine, and sender. Enabled
// channels are registered for outbound delivery and returned as listeners
// for the gateway to start.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := content.NewSQLiteStore(cfg.Content.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("content store: %w", err)
	}
	if err := content.LoadLibrary(ctx, cfg.Content.LibraryDir, store, logger); err != nil {
		store.Close()
		return nil, fmt.Errorf("content library: %w", err)
	}

	renderers := renderer.NewRegistry(logger)
	renderer.RegisterBuiltins(renderers)

	var appMetrics *metrics.AppMetrics
	if cfg.Metrics.Enabled {
		appMetrics = metrics.NewAppMetrics()
	}

	channels := channel.NewRegistry(logger)
	listeners := make(map[string]domain.Listener)

	register := func(ch domain.Channel, l domain.Listener) error {
		if err := channels.Register(ch); err != nil {
			return err
		}
		listeners[ch.Platform()] = l
		return nil
	}

	if cfg.Channels.Telegram.Enabled {
		tg := channel.NewTelegram(channel.TelegramConfig{
			Token:     cfg.Channels.Telegram.Token,
			AllowFrom: cfg.Channels.Telegram.AllowFrom,
			ParseMode: cfg.Channels.Telegram.ParseMode,
			Logger:    logger,
		})
		if err := register(tg, tg); err != nil {
			store.Close()
			return nil, err
		}
	}
	if cfg.Channels.Discord.Enabled {
		dc := channel.NewDiscord(channel.DiscordConfig{
			Token:   cfg.Channels.Discord.Token,
			GuildID: cfg.Channels.Discord.GuildID,
			Logger:  logger,
		})
		if err := register(dc, dc); err != nil {
			store.Close()
			return nil, err
		}
	}
	if cfg.Channels.Slack.Enabled {
		sl := channel.NewSlack(channel.SlackConfig{
			BotToken: cfg.Channels.Slack.BotToken,
			AppToken: cfg.Channels.Slack.AppToken,
			Logger:   logger,
		})
		if err := register(sl, sl); err != nil {
			store.Close()
			return nil, err
		}
	}
	if cfg.Channels.Web.Enabled {
		webCfg := channel.WebConfig{
			Host:   cfg.Channels.Web.Host,
			Port:   cfg.Channels.Web.Port,
			Logger: logger,
		}
		if appMetrics != nil {
			webCfg.Metrics = appMetrics.Collector.Handler()
		}
		web := channel.NewWeb(webCfg)
		if err := register(web, web); err != nil {
			store.Close()
			return nil, err
		}
	}
	if cfg.Channels.CLI.Enabled {
		cli := channel.NewCLI(channel.CLIConfig{Logger: logger})
		if err := register(cli, cli); err != nil {
			store.Close()
			return nil, err
		}
	}

	events := bus.NewEventBus(logger)
	resolver := content.NewResolver(store, logger)
	engine := render.NewEngine(channels, logger)
	sender := dispatch.NewSender(renderers, channels, resolver, engine, events, appMetrics, logger)

	return &app{
		cfg:       cfg,
		store:     store,
		renderers: renderers,
		channels:  channels,
		sender:    sender,
		events:    events,
		metrics:   appMetrics,
		listeners: listeners,
	}, nil
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start the gateway (all enabled channels)",
		Long:  "Starts all enabled channel listeners and the dispatch pipeline. Press Ctrl+C to stop.",
		RunE:  runGateway,
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger = setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.store.Close()

	inbound := bus.New(100, logger)

	pipe := pipeline.New(logger)
	if err := pipe.Use(pipeline.ReplyHookStage(a.sender)); err != nil {
		return err
	}
	if cfg.Responder.Enabled && len(cfg.Responder.Rules) > 0 {
		rules := make([]pipeline.ResponderRule, 0, len(cfg.Responder.Rules))
		for _, r := range cfg.Responder.Rules {
			rules = append(rules, pipeline.ResponderRule{Keywords: r.Keywords, Ref: r.Ref})
		}
		if err := pipe.Use(pipeline.ResponderStage(rules, logger)); err != nil {
			return err
		}
	}

	var sched *proactive.Scheduler
	if cfg.Proactive.Enabled {
		sched = proactive.NewScheduler(a.sender.SendTo, logger)
		for _, t := range cfg.Proactive.Tasks {
			sched.AddTask(proactive.Task{
				ID:        t.ID,
				Name:      t.Name,
				Ref:       t.Ref,
				IntervalS: t.IntervalS,
				Platform:  t.Platform,
				ChatID:    t.ChatID,
				Data:      t.Data,
				Enabled:   t.Enabled,
			})
		}
		go sched.Start(ctx)
	}

	for platform, listener := range a.listeners {
		go func(platform string, l domain.Listener) {
			a.events.Emit(bus.Event{Type: bus.EventChannelUp, Source: platform})
			if err := l.Start(ctx, inbound.Publish); err != nil {
				logger.Error("channel listener error", "platform", platform, "err", err)
			}
		}(platform, listener)
		logger.Info("channel listener starting", "platform", platform)
	}

	// Consume loop: each event runs its own pipeline pass so one slow
	// message sequence does not block unrelated conversations.
	go func() {
		for ev := range inbound.Subscribe() {
			if a.metrics != nil {
				a.metrics.EventsTotal.Inc()
			}
			ev := ev
			go pipe.Process(ctx, &ev)
		}
	}()

	logger.Info("gateway started. Press Ctrl+C to stop.", "channels", a.channels.Platforms())

	<-ctx.Done()
	logger.Info("shutting down gateway...")

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		if sched != nil {
			sched.Stop()
		}
		for platform, l := range a.listeners {
			if err := l.Stop(); err != nil {
				logger.Warn("listener stop error", "platform", platform, "err", err)
			}
		}
		inbound.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		shutdownErr = fmt.Errorf("shutdown timed out")
	}

	return shutdownErr
}

func sendCmd() *cobra.Command {
	var dataJSON string
	cmd := &cobra.Command{
		Use:   "send [platform] [chat-id] [ref]",
		Short: "Send content proactively to a chat",
		Long:  "Renders a renderer (#name) or content item (!id) reference and delivers it to the given chat, e.g.: renderbot send telegram 123456 '!daily-digest'",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, chatID, ref := args[0], args[1], args[2]

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger = setupLogger(cfg)

			var extra map[string]any
			if dataJSON != "" {
				if err := json.Unmarshal([]byte(dataJSON), &extra); err != nil {
					return fmt.Errorf("parse --data: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.store.Close()

			listener, ok := a.listeners[platform]
			if !ok {
				return fmt.Errorf("platform %q is not enabled in config", platform)
			}

			// The listener establishes the platform connection; give it a
			// moment before dispatching.
			listenerCtx, cancelListener := context.WithCancel(ctx)
			defer cancelListener()
			go func() {
				if err := listener.Start(listenerCtx, func(domain.IncomingEvent) {}); err != nil {
					logger.Error("channel listener error", "platform", platform, "err", err)
				}
			}()
			time.Sleep(2 * time.Second)

			if err := a.sender.SendTo(ctx, platform, chatID, ref, extra); err != nil {
				return err
			}
			logger.Info("content sent", "platform", platform, "chat", chatID, "ref", ref)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataJSON, "data", "", "extra render context as JSON")
	return cmd
}

func contentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Inspect and manage stored content",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored content items",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := content.NewSQLiteStore(cfg.Content.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.ListItems(context.Background(), 100)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("No content items.")
				return nil
			}
			for _, item := range items {
				data, _ := json.Marshal(item.Data)
				fmt.Printf("!%s  (category: %s)  %s\n", item.ID, item.CategoryID, string(data))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "load [dir]",
		Short: "Load a YAML content library into the store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dir := cfg.Content.LibraryDir
			if len(args) == 1 {
				dir = args[0]
			}
			store, err := content.NewSQLiteStore(cfg.Content.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := content.LoadLibrary(context.Background(), dir, store, logger); err != nil {
				return err
			}
			logger.Info("content library loaded", "dir", dir)
			return nil
		},
	})

	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. channels.web.port)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. channels.web.port 9090)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
