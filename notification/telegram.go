// Package notification provides the Telegram front-end: command handlers,
// match notifications and the group-mention guard.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/solvirx/tokenwatch/core"
	"github.com/solvirx/tokenwatch/store"
)

const (
	pollingTimeout = 10 * time.Second

	// Telegram rejects messages over ~4096 characters; leave headroom for
	// the continuation header.
	maxMessageLength = 4000

	notificationCap   = 5
	searchResultCap   = 5
	believeListingCap = 10
)

// TrackingService is the slice of the tracker used by the command handlers.
type TrackingService interface {
	StartTracking(ctx context.Context, userID, chatID int64) error
	StopTracking(userID, chatID int64) error
	IsTracking(userID, chatID int64) bool
	ManualRefresh(ctx context.Context, userID int64) ([]core.MatchRecord, error)
}

// telegramAPI is the slice of the telebot client the handlers go through,
// split out so handler tests can record outgoing messages.
type telegramAPI interface {
	Send(to tb.Recipient, what interface{}, options ...interface{}) (*tb.Message, error)
	Respond(callback *tb.Callback, responses ...*tb.CallbackResponse) error
}

// matchesButton is the inline button attached to match notifications; its
// callback replays the full matched list into the chat.
var matchesButton = tb.InlineButton{Unique: "view_matches", Text: "View All Matches"}

// Telegram implements core.Notifier over a telebot client and hosts the
// command surface of the bot.
type Telegram struct {
	settings core.TelegramSettings
	store    *store.MatchStore
	primary  core.PrimarySource
	signal   core.SignalSource
	tracker  TrackingService
	client   *tb.Bot
	api      telegramAPI
	log      core.Logger

	ctx context.Context
}

// NewTelegram creates the Telegram front-end. AttachTracker must be called
// before Start: the tracker needs the notifier first, so construction is
// split in two.
func NewTelegram(
	settings core.TelegramSettings,
	matchStore *store.MatchStore,
	primary core.PrimarySource,
	signal core.SignalSource,
	log core.Logger,
) (*Telegram, error) {
	t := &Telegram{
		settings: settings,
		store:    matchStore,
		primary:  primary,
		signal:   signal,
		log:      log,
		ctx:      context.Background(),
	}

	client, err := tb.NewBot(tb.Settings{
		Token:     settings.Token,
		ParseMode: tb.ModeMarkdown,
		Poller:    &tb.LongPoller{Timeout: pollingTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	t.client = client
	t.api = client

	if err := setupCommands(t.client); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	t.registerHandlers()

	return t, nil
}

// AttachTracker wires the tracking service the command handlers call into.
func (t *Telegram) AttachTracker(tracker TrackingService) {
	t.tracker = tracker
}

// Start begins long polling. ctx becomes the parent of every tracking
// session started from a command, so cancelling it stops the sessions too.
func (t *Telegram) Start(ctx context.Context) {
	t.ctx = ctx
	go t.client.Start()
	go func() {
		<-ctx.Done()
		t.client.Stop()
	}()
}

func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "/start", Description: "Show the welcome message"},
		{Text: "/help", Description: "Display help instructions"},
		{Text: "/add_filter", Description: "Add a filter: /add_filter <kind> <value>"},
		{Text: "/list_filters", Description: "List your filters"},
		{Text: "/remove_filter", Description: "Remove a filter by number"},
		{Text: "/start_tracking", Description: "Start tracking in this chat"},
		{Text: "/stop_tracking", Description: "Stop tracking in this chat"},
		{Text: "/matches", Description: "Show your matched tokens"},
		{Text: "/history", Description: "Show your match history"},
		{Text: "/clear_matches", Description: "Clear matched tokens (history is kept)"},
		{Text: "/toggle_sound", Description: "Toggle notification sound"},
		{Text: "/refresh", Description: "Fetch and match right now"},
		{Text: "/search_token", Description: "Search the latest tokens"},
		{Text: "/believe_tracker", Description: "List believe tokens by follower count"},
	})
}

func (t *Telegram) registerHandlers() {
	t.client.Handle("/start", t.guarded(t.handleStart))
	t.client.Handle("/help", t.guarded(t.handleHelp))
	t.client.Handle("/add_filter", t.guarded(t.handleAddFilter))
	t.client.Handle("/list_filters", t.guarded(t.handleListFilters))
	t.client.Handle("/remove_filter", t.guarded(t.handleRemoveFilter))
	t.client.Handle("/start_tracking", t.guarded(t.handleStartTracking))
	t.client.Handle("/stop_tracking", t.guarded(t.handleStopTracking))
	t.client.Handle("/matches", t.guarded(t.handleMatches))
	t.client.Handle("/history", t.guarded(t.handleHistory))
	t.client.Handle("/clear_matches", t.guarded(t.handleClearMatches))
	t.client.Handle("/toggle_sound", t.guarded(t.handleToggleSound))
	t.client.Handle("/refresh", t.guarded(t.handleRefresh))
	t.client.Handle("/search_token", t.guarded(t.handleSearchToken))
	t.client.Handle("/believe_tracker", t.guarded(t.handleBelieveTracker))
	t.client.Handle(&matchesButton, t.handleMatchesCallback)
}

// ---------------------
// Group-mention guard
// ---------------------

// guarded wraps a handler with the group rule: in group chats a command is
// honored only when the bot is mentioned, private chats pass through.
func (t *Telegram) guarded(handler func(m *tb.Message)) func(m *tb.Message) {
	return func(m *tb.Message) {
		if !t.commandAllowed(m) {
			return
		}
		handler(m)
	}
}

func (t *Telegram) commandAllowed(m *tb.Message) bool {
	if m.Chat == nil {
		return false
	}
	if m.Chat.Type != tb.ChatGroup && m.Chat.Type != tb.ChatSuperGroup {
		return true
	}

	return containsMention(m.Text, t.botName())
}

func containsMention(text, botName string) bool {
	if botName == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), "@"+strings.ToLower(botName))
}

func (t *Telegram) botName() string {
	if t.settings.BotName != "" {
		return strings.TrimPrefix(t.settings.BotName, "@")
	}
	if t.client != nil && t.client.Me != nil {
		return t.client.Me.Username
	}
	return ""
}

// ---------------------
// core.Notifier
// ---------------------

// NotifyMatches sends one batched notification for a tick's new matches.
func (t *Telegram) NotifyMatches(chatID int64, matches []core.Match) {
	if len(matches) == 0 {
		return
	}

	markup := &tb.ReplyMarkup{
		InlineKeyboard: [][]tb.InlineButton{{matchesButton}},
	}

	options := []any{markup}
	// In private chats the chat id is the user id, which is where the sound
	// preference lives. Group chats keep the default sound.
	if enabled, err := t.store.SoundEnabled(chatID); err == nil && !enabled {
		options = append(options, tb.Silent)
	}

	t.send(chatID, formatMatchBatch(matches), options...)
}

// NotifyError reports a session failure to the chat.
func (t *Telegram) NotifyError(chatID int64, err error) {
	t.send(chatID, fmt.Sprintf("🛑 ERROR\n-----\n%s", err.Error()))
}

func (t *Telegram) send(chatID int64, text string, options ...any) {
	if _, err := t.api.Send(tb.ChatID(chatID), text, options...); err != nil {
		t.log.WithError(err).WithField("chat_id", chatID).Error("failed to send message")
	}
}

// ---------------------
// Command handlers
// ---------------------

func (t *Telegram) handleStart(m *tb.Message) {
	greeting := "👋 Welcome to the token tracker!\n\n" +
		"Add filters with /add_filter, then /start_tracking to get notified " +
		"about new tokens that match. /help lists every command."

	if m.Chat.Type == tb.ChatGroup || m.Chat.Type == tb.ChatSuperGroup {
		greeting += fmt.Sprintf("\n\nIn this group, mention me with @%s after commands.", t.botName())
	}

	t.send(m.Chat.ID, greeting)
}

func (t *Telegram) handleHelp(m *tb.Message) {
	kinds := make([]string, 0, len(core.FilterKinds))
	for _, kind := range core.FilterKinds {
		kinds = append(kinds, string(kind))
	}

	help := "Available commands:\n\n" +
		"/add_filter <kind> <value> - add a filter (kinds: " + strings.Join(kinds, ", ") + ")\n" +
		"/list_filters - list your filters\n" +
		"/remove_filter <number> - remove a filter\n" +
		"/start_tracking - start tracking in this chat\n" +
		"/stop_tracking - stop tracking in this chat\n" +
		"/matches - show your matched tokens\n" +
		"/history - show your match history\n" +
		"/clear_matches - clear matched tokens, history is kept\n" +
		"/toggle_sound - toggle notification sound\n" +
		"/refresh - fetch and match right now\n" +
		"/search_token <query> - search the latest tokens\n" +
		"/believe_tracker <min_followers> - list believe tokens\n\n" +
		"Examples:\n" +
		"`/add_filter token pump`\n" +
		"`/add_filter believe 1000`\n" +
		"`/add_filter twitter @cooltoken`"

	t.send(m.Chat.ID, help)
}

func (t *Telegram) handleAddFilter(m *tb.Message) {
	parts := strings.Fields(m.Payload)
	if len(parts) < 2 {
		t.send(m.Chat.ID, "Usage: `/add_filter <kind> <value>`\nExample: `/add_filter token pump`")
		return
	}

	kind := core.FilterKind(strings.ToLower(parts[0]))
	value := strings.Join(parts[1:], " ")

	added, err := t.store.AddFilter(m.Sender.ID, kind, value)
	if err != nil {
		t.send(m.Chat.ID, filterErrorText(err))
		return
	}

	t.send(m.Chat.ID, fmt.Sprintf("✅ Filter added: %s - %s", added.Kind, added.Value))
}

func (t *Telegram) handleListFilters(m *tb.Message) {
	filters, err := t.store.Filters(m.Sender.ID)
	if err != nil {
		t.replyError(m.Chat.ID, err)
		return
	}
	if len(filters) == 0 {
		t.send(m.Chat.ID, "You don't have any filters yet. Add one with /add_filter.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Your filters (%d total):\n\n", len(filters))
	for i, f := range filters {
		fmt.Fprintf(&sb, "%d. %s - %s\n", i+1, f.Kind, f.Value)
	}

	t.send(m.Chat.ID, sb.String())
}

func (t *Telegram) handleRemoveFilter(m *tb.Message) {
	index, err := strconv.Atoi(strings.TrimSpace(m.Payload))
	if err != nil {
		t.send(m.Chat.ID, "Usage: `/remove_filter <number>` as shown by /list_filters")
		return
	}

	removed, err := t.store.RemoveFilter(m.Sender.ID, index-1)
	if err != nil {
		t.send(m.Chat.ID, filterErrorText(err))
		return
	}

	t.send(m.Chat.ID, fmt.Sprintf("🗑 Filter removed: %s - %s", removed.Kind, removed.Value))
}

func (t *Telegram) handleStartTracking(m *tb.Message) {
	if err := t.tracker.StartTracking(t.ctx, m.Sender.ID, m.Chat.ID); err != nil {
		switch {
		case errors.Is(err, core.ErrNoFilters):
			t.send(m.Chat.ID, "You need at least one filter before tracking. Add one with /add_filter.")
		case errors.Is(err, core.ErrAlreadyTracking):
			t.send(m.Chat.ID, "Tracking is already running in this chat.")
		default:
			t.replyError(m.Chat.ID, err)
		}
		return
	}

	interval, err := t.store.PollInterval(m.Sender.ID)
	if err != nil || interval <= 0 {
		interval = core.DefaultPollInterval
	}

	t.send(m.Chat.ID, fmt.Sprintf("🔍 Token tracking started. Checking every %s for new matches.", interval))
}

func (t *Telegram) handleStopTracking(m *tb.Message) {
	if err := t.tracker.StopTracking(m.Sender.ID, m.Chat.ID); err != nil {
		if errors.Is(err, core.ErrNotTracking) {
			t.send(m.Chat.ID, "Tracking is not running in this chat.")
			return
		}
		t.replyError(m.Chat.ID, err)
		return
	}

	t.send(m.Chat.ID, "⏹ Token tracking stopped.")
}

func (t *Telegram) handleMatches(m *tb.Message) {
	t.sendMatches(m.Chat.ID, m.Sender.ID)
}

// handleMatchesCallback answers the inline button on match notifications
// with the same listing /matches produces.
func (t *Telegram) handleMatchesCallback(c *tb.Callback) {
	if c.Sender == nil || c.Message == nil || c.Message.Chat == nil {
		return
	}

	t.sendMatches(c.Message.Chat.ID, c.Sender.ID)

	if err := t.api.Respond(c, &tb.CallbackResponse{}); err != nil {
		t.log.WithError(err).Error("failed to answer callback")
	}
}

func (t *Telegram) sendMatches(chatID, userID int64) {
	matched, err := t.store.MatchedTokens(userID)
	if err != nil {
		t.replyError(chatID, err)
		return
	}
	if len(matched) == 0 {
		t.send(chatID, "You don't have any matched tokens yet.")
		return
	}

	for _, chunk := range formatMatchedTokens(matched) {
		t.send(chatID, chunk)
	}
}

func (t *Telegram) handleHistory(m *tb.Message) {
	history, err := t.store.History(m.Sender.ID)
	if err != nil {
		t.replyError(m.Chat.ID, err)
		return
	}
	if len(history) == 0 {
		t.send(m.Chat.ID, "You don't have any match history yet.")
		return
	}

	for _, chunk := range formatHistory(history) {
		t.send(m.Chat.ID, chunk)
	}
}

func (t *Telegram) handleClearMatches(m *tb.Message) {
	cleared, err := t.store.ClearMatches(m.Sender.ID)
	if err != nil {
		t.replyError(m.Chat.ID, err)
		return
	}
	if cleared == 0 {
		t.send(m.Chat.ID, "You don't have any matched tokens to clear.")
		return
	}

	t.send(m.Chat.ID, fmt.Sprintf("🧹 Cleared %d matched tokens. They remain in /history.", cleared))
}

func (t *Telegram) handleToggleSound(m *tb.Message) {
	enabled, err := t.store.ToggleSound(m.Sender.ID)
	if err != nil {
		t.replyError(m.Chat.ID, err)
		return
	}

	if enabled {
		t.send(m.Chat.ID, "🔊 Notification sound enabled.")
	} else {
		t.send(m.Chat.ID, "🔇 Notification sound disabled.")
	}
}

func (t *Telegram) handleRefresh(m *tb.Message) {
	records, err := t.tracker.ManualRefresh(t.ctx, m.Sender.ID)
	if err != nil {
		if errors.Is(err, core.ErrNoFilters) {
			t.send(m.Chat.ID, "You need at least one filter before refreshing. Add one with /add_filter.")
			return
		}
		t.replyError(m.Chat.ID, err)
		return
	}
	if len(records) == 0 {
		t.send(m.Chat.ID, "✅ No new matching tokens found.")
		return
	}

	matches := make([]core.Match, 0, len(records))
	for _, record := range records {
		matches = append(matches, core.Match{Token: record.Token, Filter: record.Filter})
	}

	t.send(m.Chat.ID, formatMatchBatch(matches))
}

func (t *Telegram) handleSearchToken(m *tb.Message) {
	query := strings.ToLower(strings.TrimSpace(m.Payload))
	if query == "" {
		t.send(m.Chat.ID, "Usage: `/search_token <address, name or symbol>`")
		return
	}

	tokens, err := t.primary.Latest(t.ctx, true)
	if err != nil {
		t.replyError(m.Chat.ID, err)
		return
	}

	t.send(m.Chat.ID, formatSearchResults(query, tokens))
}

func (t *Telegram) handleBelieveTracker(m *tb.Message) {
	minFollowers := 0
	if payload := strings.TrimSpace(m.Payload); payload != "" {
		n, err := strconv.Atoi(payload)
		if err != nil || n < 0 {
			t.send(m.Chat.ID, "Usage: `/believe_tracker <min_followers>` with a non-negative number")
			return
		}
		minFollowers = n
	}

	tokens, err := t.signal.Tokens(t.ctx, minFollowers, true)
	if err != nil {
		t.replyError(m.Chat.ID, err)
		return
	}

	t.send(m.Chat.ID, formatBelieveListing(minFollowers, tokens))
}

func (t *Telegram) replyError(chatID int64, err error) {
	t.log.WithError(err).Error("command failed")
	t.NotifyError(chatID, err)
}

func filterErrorText(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidFilterKind):
		return "❌ Unknown filter kind. Valid kinds: token, believe, twitter, website, wallet."
	case errors.Is(err, core.ErrInvalidFilterValue):
		return "❌ Invalid filter value. Believe filters need a non-negative number of followers."
	case errors.Is(err, core.ErrDuplicateFilter):
		return "❌ You already have this filter."
	case errors.Is(err, core.ErrFilterIndex):
		return "❌ No filter with that number. Check /list_filters."
	default:
		return fmt.Sprintf("🛑 ERROR\n-----\n%s", err.Error())
	}
}
