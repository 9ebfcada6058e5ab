// Package store owns the per-user tracking state: filters, the global
// matched list and the append-only match history. All mutations go through
// the store so dedup and persistence stay consistent across concurrent
// sessions.
package store

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/solvirx/tokenwatch/core"
	"github.com/solvirx/tokenwatch/filter"
)

// MatchStore serializes access to each user's state with a per-user lock and
// writes through to storage after every mutation. State is loaded lazily on
// first access; users with no stored state start from defaults.
type MatchStore struct {
	storage     core.UserStorage
	log         core.Logger
	now         func() time.Time
	defaultPoll time.Duration

	mu    sync.Mutex
	users map[int64]*userEntry
}

type userEntry struct {
	mu    sync.Mutex
	state *core.UserState
}

// Option configures a MatchStore.
type Option func(*MatchStore)

// WithDefaultPollInterval sets the poll interval applied to users with no
// stored state (or a stored interval of zero).
func WithDefaultPollInterval(interval time.Duration) Option {
	return func(m *MatchStore) {
		if interval > 0 {
			m.defaultPoll = interval
		}
	}
}

// New creates a match store backed by the given storage.
func New(storage core.UserStorage, log core.Logger, options ...Option) *MatchStore {
	m := &MatchStore{
		storage:     storage,
		log:         log,
		now:         time.Now,
		defaultPoll: core.DefaultPollInterval,
		users:       make(map[int64]*userEntry),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

func (m *MatchStore) entry(userID int64) (*userEntry, error) {
	m.mu.Lock()
	e, ok := m.users[userID]
	if !ok {
		e = &userEntry{}
		m.users[userID] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	if e.state == nil {
		state, err := m.storage.LoadUserState(userID)
		if err != nil {
			e.mu.Unlock()
			return nil, fmt.Errorf("failed to load user state: %w", err)
		}
		if state == nil {
			state = core.NewUserState()
			state.PollInterval = m.defaultPoll
		}
		if state.PollInterval <= 0 {
			state.PollInterval = m.defaultPoll
		}
		e.state = state
	}

	return e, nil
}

func (m *MatchStore) persist(userID int64, state *core.UserState) error {
	if err := m.storage.SaveUserState(userID, state); err != nil {
		return fmt.Errorf("failed to persist user state: %w", err)
	}
	return nil
}

// ---------------------
// Filters
// ---------------------

// AddFilter validates, normalizes and stores a new filter. Believe values are
// canonicalized to their integer form so "0500" and "500" are the same rule.
func (m *MatchStore) AddFilter(userID int64, kind core.FilterKind, value string) (core.Filter, error) {
	if !kind.Valid() {
		return core.Filter{}, fmt.Errorf("%w: %q", core.ErrInvalidFilterKind, kind)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return core.Filter{}, fmt.Errorf("%w: empty value", core.ErrInvalidFilterValue)
	}

	if kind == core.FilterBelieve {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return core.Filter{}, fmt.Errorf("%w: believe threshold must be a non-negative integer", core.ErrInvalidFilterValue)
		}
		value = strconv.Itoa(n)
	}

	e, err := m.entry(userID)
	if err != nil {
		return core.Filter{}, err
	}
	defer e.mu.Unlock()

	candidate := core.NewFilter(kind, value)
	for _, existing := range e.state.Filters {
		if filter.AreEqual(existing, candidate) {
			return core.Filter{}, core.ErrDuplicateFilter
		}
	}

	e.state.Filters = append(e.state.Filters, candidate)
	if err := m.persist(userID, e.state); err != nil {
		return core.Filter{}, err
	}

	return candidate, nil
}

// RemoveFilter deletes the filter at the zero-based index, preserving the
// order of the rest.
func (m *MatchStore) RemoveFilter(userID int64, index int) (core.Filter, error) {
	e, err := m.entry(userID)
	if err != nil {
		return core.Filter{}, err
	}
	defer e.mu.Unlock()

	if index < 0 || index >= len(e.state.Filters) {
		return core.Filter{}, fmt.Errorf("%w: %d", core.ErrFilterIndex, index+1)
	}

	removed := e.state.Filters[index]
	e.state.Filters = append(e.state.Filters[:index], e.state.Filters[index+1:]...)

	if err := m.persist(userID, e.state); err != nil {
		return core.Filter{}, err
	}

	return removed, nil
}

// Filters returns a copy of the user's filters in insertion order.
func (m *MatchStore) Filters(userID int64) ([]core.Filter, error) {
	e, err := m.entry(userID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	out := make([]core.Filter, len(e.state.Filters))
	copy(out, e.state.Filters)
	return out, nil
}

// ---------------------
// Matches
// ---------------------

// RecordMatch adds the token to the global matched list and appends a history
// record. Idempotent on address: recording an already matched token is a
// no-op and reports added=false.
func (m *MatchStore) RecordMatch(userID int64, token core.Token, matched core.Filter) (core.MatchRecord, bool, error) {
	if token.Address == "" {
		return core.MatchRecord{}, false, nil
	}

	e, err := m.entry(userID)
	if err != nil {
		return core.MatchRecord{}, false, err
	}
	defer e.mu.Unlock()

	if e.state.HasMatched(token.Address) {
		return core.MatchRecord{}, false, nil
	}

	record := core.MatchRecord{
		Token:     token,
		Timestamp: m.now().UnixMilli(),
		Filter:    matched,
	}

	e.state.MatchedTokens = append(e.state.MatchedTokens, token)
	e.state.MatchHistory = append(e.state.MatchHistory, record)

	if err := m.persist(userID, e.state); err != nil {
		return core.MatchRecord{}, false, err
	}

	return record, true, nil
}

// MatchedTokens returns a copy of the user's global matched list.
func (m *MatchStore) MatchedTokens(userID int64) ([]core.Token, error) {
	e, err := m.entry(userID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	out := make([]core.Token, len(e.state.MatchedTokens))
	copy(out, e.state.MatchedTokens)
	return out, nil
}

// History returns a copy of the user's append-only match history.
func (m *MatchStore) History(userID int64) ([]core.MatchRecord, error) {
	e, err := m.entry(userID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	out := make([]core.MatchRecord, len(e.state.MatchHistory))
	copy(out, e.state.MatchHistory)
	return out, nil
}

// ClearMatches empties the global matched list after folding any matched
// token that history does not yet cover into history. Folded entries are
// re-attributed against the current filters; when none matches anymore a
// synthetic token filter records the provenance. History itself is never
// cleared, and per-chat seen sets are untouched so cleared tokens do not
// re-notify.
func (m *MatchStore) ClearMatches(userID int64) (int, error) {
	e, err := m.entry(userID)
	if err != nil {
		return 0, err
	}
	defer e.mu.Unlock()

	cleared := len(e.state.MatchedTokens)
	nowMillis := m.now().UnixMilli()

	for _, token := range e.state.MatchedTokens {
		if e.state.HistoryHas(token.Address) {
			continue
		}

		attributed := filter.Match(token, e.state.Filters)
		if attributed == nil {
			attributed = &core.Filter{
				ID:    fmt.Sprintf("auto-%d", nowMillis),
				Kind:  core.FilterToken,
				Value: token.Address,
			}
		}

		e.state.MatchHistory = append(e.state.MatchHistory, core.MatchRecord{
			Token:     token,
			Timestamp: nowMillis,
			Filter:    *attributed,
		})
	}

	e.state.MatchedTokens = e.state.MatchedTokens[:0]

	if err := m.persist(userID, e.state); err != nil {
		return 0, err
	}

	return cleared, nil
}

// ---------------------
// Preferences
// ---------------------

// ToggleSound flips the notification sound preference and returns the new value.
func (m *MatchStore) ToggleSound(userID int64) (bool, error) {
	e, err := m.entry(userID)
	if err != nil {
		return false, err
	}
	defer e.mu.Unlock()

	e.state.SoundEnabled = !e.state.SoundEnabled
	if err := m.persist(userID, e.state); err != nil {
		return false, err
	}

	return e.state.SoundEnabled, nil
}

// SoundEnabled reports whether match notifications should play a sound.
func (m *MatchStore) SoundEnabled(userID int64) (bool, error) {
	e, err := m.entry(userID)
	if err != nil {
		return false, err
	}
	defer e.mu.Unlock()

	return e.state.SoundEnabled, nil
}

// PollInterval returns the user's polling interval.
func (m *MatchStore) PollInterval(userID int64) (time.Duration, error) {
	e, err := m.entry(userID)
	if err != nil {
		return 0, err
	}
	defer e.mu.Unlock()

	return e.state.PollInterval, nil
}

// SetPollInterval updates the user's polling interval.
func (m *MatchStore) SetPollInterval(userID int64, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", interval)
	}

	e, err := m.entry(userID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	e.state.PollInterval = interval
	return m.persist(userID, e.state)
}
