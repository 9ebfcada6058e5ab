// Package filter implements the normalization and matching rules for
// watch-list filters.
package filter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/solvirx/tokenwatch/core"
)

// Addresses are long; values above this length are treated as an address and
// matched exactly instead of as a name/symbol substring.
const addressValueLength = 30

var twitterURLRegexp = regexp.MustCompile(`(?:https?://)?(?:www\.)?(?:twitter\.com|x\.com)/(?:#!/)?@?([^/?\s]+)`)

// NormalizeTwitterHandle lower-cases a handle, unwraps full profile URLs and
// strips a leading @.
func NormalizeTwitterHandle(handle string) string {
	if handle == "" {
		return ""
	}

	normalized := strings.ToLower(handle)
	if match := twitterURLRegexp.FindStringSubmatch(normalized); len(match) == 2 && match[1] != "" {
		normalized = match[1]
	}

	return strings.TrimPrefix(normalized, "@")
}

// NormalizeURL lower-cases a URL and strips protocol, leading www. and
// trailing slashes.
func NormalizeURL(url string) string {
	if url == "" {
		return ""
	}

	normalized := strings.ToLower(url)
	normalized = strings.TrimPrefix(normalized, "https://")
	normalized = strings.TrimPrefix(normalized, "http://")
	normalized = strings.TrimPrefix(normalized, "www.")

	return strings.TrimRight(normalized, "/")
}

// AreEqual reports whether two filters are semantic duplicates: same kind and
// equal normalized values. Used to reject duplicate filters before adding.
func AreEqual(f1, f2 core.Filter) bool {
	if f1.Kind != f2.Kind {
		return false
	}

	switch f1.Kind {
	case core.FilterTwitter:
		return NormalizeTwitterHandle(f1.Value) == NormalizeTwitterHandle(f2.Value)
	case core.FilterWebsite:
		return NormalizeURL(f1.Value) == NormalizeURL(f2.Value)
	case core.FilterToken, core.FilterWallet:
		return strings.EqualFold(f1.Value, f2.Value)
	case core.FilterBelieve:
		n1, err1 := strconv.Atoi(f1.Value)
		n2, err2 := strconv.Atoi(f2.Value)
		if err1 == nil && err2 == nil {
			return n1 == n2
		}
		return f1.Value == f2.Value
	default:
		return f1.Value == f2.Value
	}
}

// Match evaluates a token against the filters in list order and returns the
// first one whose rule is satisfied, or nil. First match wins, never best
// match.
func Match(token core.Token, filters []core.Filter) *core.Filter {
	for i := range filters {
		if matches(token, filters[i]) {
			return &filters[i]
		}
	}
	return nil
}

func matches(token core.Token, f core.Filter) bool {
	value := strings.ToLower(f.Value)

	switch f.Kind {
	case core.FilterBelieve:
		// The follower threshold was applied at fetch time; source is the
		// only thing left to check.
		return token.Source == core.SourceSignal

	case core.FilterTwitter:
		filterHandle := NormalizeTwitterHandle(value)
		if handle := NormalizeTwitterHandle(token.Twitter); handle != "" && strings.Contains(handle, filterHandle) {
			return true
		}
		if username := NormalizeTwitterHandle(token.TwitterUsername); username != "" && strings.Contains(username, filterHandle) {
			return true
		}
		return false

	case core.FilterWebsite:
		website := strings.ToLower(token.Website)
		return website != "" && strings.Contains(website, value)

	case core.FilterToken:
		if len(value) > addressValueLength {
			return strings.ToLower(token.Address) == value
		}
		return strings.Contains(strings.ToLower(token.Name), value) ||
			strings.Contains(strings.ToLower(token.Symbol), value)

	case core.FilterWallet:
		return strings.ToLower(token.Deployer) == value || strings.ToLower(token.Creator) == value
	}

	return false
}
