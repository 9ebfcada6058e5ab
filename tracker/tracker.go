// Package tracker runs the per-chat polling sessions that fetch tokens,
// apply the user's filters and hand new matches to the notifier.
package tracker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/StudioSol/set"
	"github.com/samber/lo"

	"github.com/solvirx/tokenwatch/core"
	"github.com/solvirx/tokenwatch/filter"
	"github.com/solvirx/tokenwatch/store"
)

type sessionKey struct {
	userID int64
	chatID int64
}

type session struct {
	userID int64
	chatID int64
	cancel context.CancelFunc
	done   chan struct{}
}

// Tracker is the registry of running tracking sessions, one per (user, chat)
// pair. A user can track the same filters from several chats at once; each
// chat keeps its own seen set so a token notifies at most once per chat,
// while the match store dedups globally across all of the user's chats.
type Tracker struct {
	store    *store.MatchStore
	primary  core.PrimarySource
	signal   core.SignalSource
	notifier core.Notifier
	log      core.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*session
	seen     map[sessionKey]*set.LinkedHashSetString
}

// New creates a tracker over the given sources, store and notifier.
func New(matchStore *store.MatchStore, primary core.PrimarySource, signal core.SignalSource, notifier core.Notifier, log core.Logger) *Tracker {
	return &Tracker{
		store:    matchStore,
		primary:  primary,
		signal:   signal,
		notifier: notifier,
		log:      log,
		sessions: make(map[sessionKey]*session),
		seen:     make(map[sessionKey]*set.LinkedHashSetString),
	}
}

// StartTracking launches the polling loop for the (user, chat) pair. The
// user must have at least one filter; a second start in the same chat is
// rejected. The loop stops when StopTracking is called or ctx is cancelled.
func (t *Tracker) StartTracking(ctx context.Context, userID, chatID int64) error {
	filters, err := t.store.Filters(userID)
	if err != nil {
		return err
	}
	if len(filters) == 0 {
		return core.ErrNoFilters
	}

	key := sessionKey{userID: userID, chatID: chatID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, running := t.sessions[key]; running {
		return core.ErrAlreadyTracking
	}

	// The seen set outlives the session so a stop/start cycle does not
	// re-notify tokens this chat already saw.
	if t.seen[key] == nil {
		t.seen[key] = set.NewLinkedHashSetString()
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	sess := &session{
		userID: userID,
		chatID: chatID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	t.sessions[key] = sess

	t.log.WithFields(map[string]any{
		"user_id": userID,
		"chat_id": chatID,
	}).Info("tracking session started")

	go t.run(sessionCtx, key, sess)

	return nil
}

// StopTracking cancels the session for the (user, chat) pair and waits for
// its loop to exit.
func (t *Tracker) StopTracking(userID, chatID int64) error {
	key := sessionKey{userID: userID, chatID: chatID}

	t.mu.Lock()
	sess, running := t.sessions[key]
	t.mu.Unlock()

	if !running {
		return core.ErrNotTracking
	}

	sess.cancel()
	<-sess.done

	t.log.WithFields(map[string]any{
		"user_id": userID,
		"chat_id": chatID,
	}).Info("tracking session stopped")

	return nil
}

// IsTracking reports whether a session is running for the (user, chat) pair.
func (t *Tracker) IsTracking(userID, chatID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, running := t.sessions[sessionKey{userID: userID, chatID: chatID}]
	return running
}

// StopAll cancels every running session, used on shutdown.
func (t *Tracker) StopAll() {
	t.mu.Lock()
	sessions := make([]*session, 0, len(t.sessions))
	for _, sess := range t.sessions {
		sessions = append(sessions, sess)
	}
	t.mu.Unlock()

	for _, sess := range sessions {
		sess.cancel()
		<-sess.done
	}
}

func (t *Tracker) remove(key sessionKey) {
	t.mu.Lock()
	delete(t.sessions, key)
	t.mu.Unlock()
}

// run is the session loop. A panic in a tick faults only this session: the
// chat gets an error notification and the session is unregistered while the
// rest of the bot keeps running.
func (t *Tracker) run(ctx context.Context, key sessionKey, sess *session) {
	defer close(sess.done)
	defer t.remove(key)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("tracking session crashed: %v", r)
			t.log.WithField("user_id", sess.userID).Error(err)
			t.notifier.NotifyError(sess.chatID, err)
		}
	}()

	for {
		t.tick(ctx, key, sess)

		interval, err := t.store.PollInterval(sess.userID)
		if err != nil || interval <= 0 {
			interval = core.DefaultPollInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// tick fetches one round of tokens and notifies the chat of anything new.
func (t *Tracker) tick(ctx context.Context, key sessionKey, sess *session) {
	filters, err := t.store.Filters(sess.userID)
	if err != nil {
		t.log.WithError(err).WithField("user_id", sess.userID).Error("failed to load filters")
		return
	}
	if len(filters) == 0 {
		return
	}

	matches := t.collect(ctx, filters)
	if ctx.Err() != nil {
		return
	}

	t.deliver(key, sess, matches)
}

// collect fetches from both feeds as the filter set requires and returns the
// filter-attributed candidates, in feed order.
func (t *Tracker) collect(ctx context.Context, filters []core.Filter) []core.Match {
	believeFilters, otherFilters := lo.FilterReject(filters, func(f core.Filter, _ int) bool {
		return f.Kind == core.FilterBelieve
	})

	var matches []core.Match

	if len(otherFilters) > 0 {
		tokens, err := t.primary.Latest(ctx, true)
		if err != nil {
			t.log.WithError(err).Warn("primary fetch failed")
		}
		for _, token := range tokens {
			if matched := filter.Match(token, otherFilters); matched != nil {
				matches = append(matches, core.Match{Token: token, Filter: *matched})
			}
		}
	}

	for _, threshold := range believeThresholds(believeFilters) {
		tokens, err := t.signal.Tokens(ctx, threshold.minFollowers, false)
		if err != nil {
			t.log.WithError(err).Warnf("signal fetch failed for min_followers=%d", threshold.minFollowers)
			continue
		}
		for _, token := range tokens {
			if matched := filter.Match(token, threshold.filters); matched != nil {
				matches = append(matches, core.Match{Token: token, Filter: *matched})
			}
		}
	}

	return matches
}

// deliver applies both dedup layers and sends one batched notification.
// The per-chat seen set decides whether this chat is notified; the store
// records the match globally so other chats of the same user do not record
// it again.
func (t *Tracker) deliver(key sessionKey, sess *session, candidates []core.Match) {
	t.mu.Lock()
	seen := t.seen[key]
	t.mu.Unlock()

	fresh := make([]core.Match, 0, len(candidates))
	for _, match := range candidates {
		address := match.Token.Address
		if address == "" {
			continue
		}

		// Global layer first: record regardless of this chat's seen set, so
		// a match found after another chat cleared it still lands in the
		// user's ledger. RecordMatch is idempotent on address.
		if _, _, err := t.store.RecordMatch(sess.userID, match.Token, match.Filter); err != nil {
			t.log.WithError(err).WithField("user_id", sess.userID).Error("failed to record match")
		}

		// Per-chat layer: announce at most once per chat.
		if seen.InArray(address) {
			continue
		}
		seen.Add(address)
		fresh = append(fresh, match)
	}

	if len(fresh) > 0 {
		t.notifier.NotifyMatches(sess.chatID, fresh)
	}
}

// ManualRefresh force-fetches both feeds once and records any new matches.
// It bypasses the per-chat seen sets: only the global matched list decides
// what counts as new, so the caller can render the results itself.
func (t *Tracker) ManualRefresh(ctx context.Context, userID int64) ([]core.MatchRecord, error) {
	filters, err := t.store.Filters(userID)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return nil, core.ErrNoFilters
	}

	believeFilters, otherFilters := lo.FilterReject(filters, func(f core.Filter, _ int) bool {
		return f.Kind == core.FilterBelieve
	})

	var records []core.MatchRecord

	record := func(token core.Token, matched *core.Filter) {
		rec, added, err := t.store.RecordMatch(userID, token, *matched)
		if err != nil {
			t.log.WithError(err).WithField("user_id", userID).Error("failed to record match")
			return
		}
		if added {
			records = append(records, rec)
		}
	}

	if len(otherFilters) > 0 {
		tokens, err := t.primary.Latest(ctx, true)
		if err != nil {
			return nil, err
		}
		for _, token := range tokens {
			if matched := filter.Match(token, otherFilters); matched != nil {
				record(token, matched)
			}
		}
	}

	for _, threshold := range believeThresholds(believeFilters) {
		tokens, err := t.signal.Tokens(ctx, threshold.minFollowers, true)
		if err != nil {
			return nil, err
		}
		for _, token := range tokens {
			if matched := filter.Match(token, threshold.filters); matched != nil {
				record(token, matched)
			}
		}
	}

	return records, nil
}

// believeThreshold groups believe filters that share a follower threshold,
// so each distinct threshold is fetched once per round.
type believeThreshold struct {
	minFollowers int
	filters      []core.Filter
}

func believeThresholds(filters []core.Filter) []believeThreshold {
	var out []believeThreshold
	index := make(map[int]int)

	for _, f := range filters {
		n, err := strconv.Atoi(f.Value)
		if err != nil || n < 0 {
			continue
		}

		i, ok := index[n]
		if !ok {
			index[n] = len(out)
			out = append(out, believeThreshold{minFollowers: n})
			i = index[n]
		}
		out[i].filters = append(out[i].filters, f)
	}

	return out
}
