package core

import "time"

// FilterKind enumerates the attribute a filter matches against.
type FilterKind string

const (
	FilterToken   FilterKind = "token"
	FilterTwitter FilterKind = "twitter"
	FilterWebsite FilterKind = "website"
	FilterWallet  FilterKind = "wallet"
	FilterBelieve FilterKind = "believe"
)

// FilterKinds lists every valid kind, in the order shown to users.
var FilterKinds = []FilterKind{FilterToken, FilterBelieve, FilterTwitter, FilterWebsite, FilterWallet}

// Valid reports whether the kind is one of the known filter kinds.
func (k FilterKind) Valid() bool {
	switch k {
	case FilterToken, FilterTwitter, FilterWebsite, FilterWallet, FilterBelieve:
		return true
	}
	return false
}

// Filter is a stored matching rule owned by a user. Immutable once created;
// identity is ID but equality for duplicate prevention is semantic, using the
// kind's normalization rules.
type Filter struct {
	ID    string     `json:"id"`
	Kind  FilterKind `json:"kind"`
	Value string     `json:"value"`
}

// NewFilter creates a filter with a timestamp-derived opaque ID.
func NewFilter(kind FilterKind, value string) Filter {
	return Filter{
		ID:    time.Now().UTC().Format("20060102150405.000000000"),
		Kind:  kind,
		Value: value,
	}
}

// Match pairs a token with the filter that matched it, for one notification row.
type Match struct {
	Token  Token  `json:"token"`
	Filter Filter `json:"filter"`
}

// MatchRecord is one append-only match history entry. Timestamp is epoch millis.
type MatchRecord struct {
	Token     Token  `json:"token"`
	Timestamp int64  `json:"timestamp"`
	Filter    Filter `json:"filter"`
}
