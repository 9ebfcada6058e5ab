package core

import "time"

// DefaultPollInterval is how often a tracking session checks for new tokens
// when the user has not configured an interval.
const DefaultPollInterval = 5 * time.Second

// UserState holds everything persisted per user. Filters keep insertion order,
// which is also the index order used by filter removal. MatchedTokens is the
// global matched list, deduped by address. MatchHistory is append-only and is
// kept a superset of MatchedTokens over time.
type UserState struct {
	Filters       []Filter      `json:"filters"`
	MatchedTokens []Token       `json:"matched_tokens"`
	MatchHistory  []MatchRecord `json:"match_history"`
	SoundEnabled  bool          `json:"sound_enabled"`
	PollInterval  time.Duration `json:"poll_interval"`
}

// NewUserState returns the defaults applied when a user has no stored state.
func NewUserState() *UserState {
	return &UserState{
		Filters:       []Filter{},
		MatchedTokens: []Token{},
		MatchHistory:  []MatchRecord{},
		SoundEnabled:  true,
		PollInterval:  DefaultPollInterval,
	}
}

// HasMatched reports whether the address is already in the global matched list.
func (s *UserState) HasMatched(address string) bool {
	for _, t := range s.MatchedTokens {
		if t.Address == address {
			return true
		}
	}
	return false
}

// HistoryHas reports whether the address is already represented in history.
func (s *UserState) HistoryHas(address string) bool {
	for _, r := range s.MatchHistory {
		if r.Token.Address == address {
			return true
		}
	}
	return false
}
