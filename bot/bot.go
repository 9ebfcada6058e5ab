// Package bot wires the sources, store, tracker and Telegram front-end into
// a runnable application.
package bot

import (
	"context"
	"fmt"

	"github.com/solvirx/tokenwatch/core"
	"github.com/solvirx/tokenwatch/notification"
	"github.com/solvirx/tokenwatch/source"
	"github.com/solvirx/tokenwatch/storage"
	"github.com/solvirx/tokenwatch/store"
	"github.com/solvirx/tokenwatch/tracker"
)

// Bot owns the wired component graph.
type Bot struct {
	settings *core.Settings
	log      core.Logger

	storage  core.UserStorage
	store    *store.MatchStore
	primary  core.PrimarySource
	signal   core.SignalSource
	telegram *notification.Telegram
	tracker  *tracker.Tracker
}

// Option is a functional option for configuring a Bot instance.
type Option func(*Bot)

// WithStorage replaces the default file-backed storage.
func WithStorage(userStorage core.UserStorage) Option {
	return func(b *Bot) { b.storage = userStorage }
}

// WithPrimarySource replaces the primary feed client.
func WithPrimarySource(primary core.PrimarySource) Option {
	return func(b *Bot) { b.primary = primary }
}

// WithSignalSource replaces the signal feed client.
func WithSignalSource(signal core.SignalSource) Option {
	return func(b *Bot) { b.signal = signal }
}

// NewBot builds the component graph from settings. The Telegram front-end
// and the tracker reference each other, so the front-end is created first
// and the tracker attached afterwards.
func NewBot(settings *core.Settings, log core.Logger, options ...Option) (*Bot, error) {
	b := &Bot{
		settings: settings,
		log:      log,
	}

	for _, option := range options {
		option(b)
	}

	if b.storage == nil {
		fileStorage, err := storage.NewFromFile(settings.DatabaseFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		b.storage = fileStorage
	}

	b.store = store.New(b.storage, log, store.WithDefaultPollInterval(settings.PollEvery))

	if b.primary == nil {
		b.primary = source.NewPrimaryClient(settings.Primary, log)
	}
	if b.signal == nil {
		b.signal = source.NewSignalClient(settings.Signal, log)
	}

	telegram, err := notification.NewTelegram(settings.Telegram, b.store, b.primary, b.signal, log)
	if err != nil {
		return nil, err
	}
	b.telegram = telegram

	b.tracker = tracker.New(b.store, b.primary, b.signal, telegram, log)
	telegram.AttachTracker(b.tracker)

	return b, nil
}

// Run starts the Telegram poller and blocks until ctx is cancelled, then
// stops every tracking session and closes storage.
func (b *Bot) Run(ctx context.Context) error {
	log := b.log.WithField("db", b.settings.DatabaseFile)
	if lister, ok := b.storage.(interface{ UserIDs() ([]int64, error) }); ok {
		if users, err := lister.UserIDs(); err == nil {
			log = log.WithField("users", len(users))
		}
	}
	log.Info("bot starting")

	b.telegram.Start(ctx)

	<-ctx.Done()

	b.log.Info("bot shutting down")
	b.tracker.StopAll()

	if err := b.storage.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	return nil
}
