package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				ParseMode: "Markdown",
			},
			Discord: DiscordConfig{
				Enabled: false,
			},
			Slack: SlackConfig{
				Enabled: false,
			},
			Web: WebConfig{
				Enabled: false,
				Host:    "127.0.0.1",
				Port:    8080,
			},
			CLI: CLIConfig{
				Enabled: true,
			},
		},
		Content: ContentConfig{
			DBPath:     "~/.renderbot/content.db",
			LibraryDir: "~/.renderbot/library",
		},
		Responder: ResponderConfig{
			Enabled: true,
		},
		Proactive: ProactiveConfig{
			Enabled: false,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
