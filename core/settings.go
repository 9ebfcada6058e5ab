package core

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// TelegramSettings configures the Telegram front-end.
type TelegramSettings struct {
	Token   string `env:"TOKEN,required"`
	BotName string `env:"BOT_NAME"`
}

// FeedSettings configures one upstream token feed.
type FeedSettings struct {
	URL     string `env:"URL"`
	APIKey  string `env:"API_KEY"`
	Timeout string `env:"TIMEOUT"`

	// RequestTimeout is Timeout parsed; populated by Load.
	RequestTimeout time.Duration `env:"-"`
}

// Settings holds the runtime configuration, read from environment variables.
// Duration values accept human-readable strings ("5s", "1m30s").
type Settings struct {
	Telegram TelegramSettings `envPrefix:"TOKENWATCH_TELEGRAM_"`
	Primary  FeedSettings     `envPrefix:"TOKENWATCH_PRIMARY_"`
	Signal   FeedSettings     `envPrefix:"TOKENWATCH_SIGNAL_"`

	DatabaseFile string `env:"TOKENWATCH_DB" envDefault:"tokenwatch.db"`
	PollInterval string `env:"TOKENWATCH_POLL_INTERVAL" envDefault:"5s"`

	// PollEvery is PollInterval parsed; populated by Load.
	PollEvery time.Duration `env:"-"`
}

// Feed defaults match the upstream APIs the bot was built against.
const (
	defaultPrimaryURL     = "https://data.solanatracker.io"
	defaultPrimaryTimeout = "30s"
	defaultSignalURL      = "https://api.believesignal.com"
	defaultSignalTimeout  = "15s"
)

// LoadSettings reads settings from the environment and resolves durations.
func LoadSettings() (*Settings, error) {
	settings := &Settings{}
	if err := env.Parse(settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	applyFeedDefaults(&settings.Primary, defaultPrimaryURL, defaultPrimaryTimeout)
	applyFeedDefaults(&settings.Signal, defaultSignalURL, defaultSignalTimeout)

	var err error
	if settings.PollEvery, err = str2duration.ParseDuration(settings.PollInterval); err != nil {
		return nil, fmt.Errorf("invalid poll interval %q: %w", settings.PollInterval, err)
	}
	if settings.Primary.RequestTimeout, err = str2duration.ParseDuration(settings.Primary.Timeout); err != nil {
		return nil, fmt.Errorf("invalid primary feed timeout %q: %w", settings.Primary.Timeout, err)
	}
	if settings.Signal.RequestTimeout, err = str2duration.ParseDuration(settings.Signal.Timeout); err != nil {
		return nil, fmt.Errorf("invalid signal feed timeout %q: %w", settings.Signal.Timeout, err)
	}

	return settings, nil
}

func applyFeedDefaults(feed *FeedSettings, url, timeout string) {
	if feed.URL == "" {
		feed.URL = url
	}
	if feed.Timeout == "" {
		feed.Timeout = timeout
	}
}
