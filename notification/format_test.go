package notification

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solvirx/tokenwatch/core"
)

func sampleMatch(i int) core.Match {
	return core.Match{
		Token: core.Token{
			Address: fmt.Sprintf("addr%d", i),
			Name:    fmt.Sprintf("Token %d", i),
			Symbol:  fmt.Sprintf("TOK%d", i),
			Website: "https://example.com",
			Twitter: "cooltoken",
			Source:  core.SourcePrimary,
		},
		Filter: core.NewFilter(core.FilterToken, "tok"),
	}
}

func TestFormatMatchBatch_CapsAtFive(t *testing.T) {
	matches := make([]core.Match, 7)
	for i := range matches {
		matches[i] = sampleMatch(i)
	}

	text := formatMatchBatch(matches)
	require.Contains(t, text, "Found 7 new matching tokens!")
	require.Contains(t, text, "5. TOK4 (Token 4)")
	require.NotContains(t, text, "TOK5")
	require.Contains(t, text, "...and 2 more. Check /matches for all.")
}

func TestFormatMatchBatch_TokenDetails(t *testing.T) {
	text := formatMatchBatch([]core.Match{sampleMatch(1)})

	require.Contains(t, text, "1. TOK1 (Token 1)")
	require.Contains(t, text, "🔗 CA: `addr1`")
	require.Contains(t, text, "🌐 Website: https://example.com")
	require.Contains(t, text, "🐦 Twitter: @cooltoken")
	require.Contains(t, text, "Matched filter: token - tok")
	require.NotContains(t, text, "[Believe]")
}

func TestFormatMatchBatch_TagsSignalTokens(t *testing.T) {
	match := sampleMatch(1)
	match.Token.Source = core.SourceSignal
	match.Filter = core.NewFilter(core.FilterBelieve, "1000")

	text := formatMatchBatch([]core.Match{match})
	require.Contains(t, text, "[Believe]")
	require.Contains(t, text, "Matched filter: believe - 1000")
}

func TestDisplayTwitter(t *testing.T) {
	require.Equal(t, "@handle", displayTwitter("handle"))
	require.Equal(t, "@handle", displayTwitter("@handle"))
	require.Equal(t, "https://x.com/handle", displayTwitter("https://x.com/handle"))
}

func TestFormatMatchedTokens_SingleMessage(t *testing.T) {
	tokens := []core.Token{
		{Address: "addr1", Name: "One", Symbol: "ONE"},
		{Address: "addr2", Name: "Two", Symbol: "TWO"},
	}

	chunks := formatMatchedTokens(tokens)
	require.Len(t, chunks, 1)
	require.Contains(t, chunks[0], "Your matched tokens (2 total)")
	require.Contains(t, chunks[0], "1. ONE (One)")
	require.Contains(t, chunks[0], "2. TWO (Two)")
}

func TestFormatMatchedTokens_ChunksLongLists(t *testing.T) {
	tokens := make([]core.Token, 200)
	for i := range tokens {
		tokens[i] = core.Token{
			Address: fmt.Sprintf("addr%03d-%s", i, strings.Repeat("x", 40)),
			Name:    fmt.Sprintf("Token %d", i),
			Symbol:  fmt.Sprintf("TOK%d", i),
			Website: "https://example.com/" + strings.Repeat("y", 30),
		}
	}

	chunks := formatMatchedTokens(tokens)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), maxMessageLength)
	}

	require.Contains(t, chunks[0], "(200 total)")
	require.Contains(t, chunks[1], "(part 2)")

	// Every token appears exactly once across all chunks.
	all := strings.Join(chunks, "")
	require.Equal(t, 1, strings.Count(all, "1. TOK0 "))
	require.Equal(t, 1, strings.Count(all, "200. TOK199 "))
}

func TestFormatHistory(t *testing.T) {
	history := []core.MatchRecord{{
		Token:     core.Token{Address: "addr1", Name: "One", Symbol: "ONE"},
		Timestamp: 1717243200000,
		Filter:    core.NewFilter(core.FilterWallet, "walletaddr"),
	}}

	chunks := formatHistory(history)
	require.Len(t, chunks, 1)
	require.Contains(t, chunks[0], "Your match history (1 total)")
	require.Contains(t, chunks[0], "1. ONE (One)")
	require.Contains(t, chunks[0], "Filter: wallet - walletaddr")
	require.Contains(t, chunks[0], "Matched: ")
}

func TestFormatSearchResults(t *testing.T) {
	tokens := []core.Token{
		{Address: "exactaddress123", Name: "Exact", Symbol: "EXACT"},
		{Address: "otheraddr", Name: "Pump Coin", Symbol: "PUMP"},
		{Address: "thirdaddr", Name: "Pumpkin", Symbol: "PKN"},
	}

	exact := formatSearchResults("exactaddress123", tokens)
	require.Contains(t, exact, "Exact match found")
	require.Contains(t, exact, "EXACT")

	partial := formatSearchResults("pump", tokens)
	require.Contains(t, partial, "Found 2 tokens matching 'pump'")
	require.Contains(t, partial, "PUMP")
	require.Contains(t, partial, "PKN")

	none := formatSearchResults("nothing", tokens)
	require.Contains(t, none, "No tokens found matching 'nothing'")
}

func TestFormatBelieveListing(t *testing.T) {
	require.Contains(t, formatBelieveListing(500, nil), "No believe tokens found with at least 500 followers")

	tokens := []core.Token{{
		Address:          "sigaddr",
		Name:             "Signal",
		Symbol:           "SIG",
		Twitter:          "sigcoin",
		TwitterFollowers: 1200,
		TwitterVerified:  true,
		Source:           core.SourceSignal,
	}}

	text := formatBelieveListing(1000, tokens)
	require.Contains(t, text, "at least 1000 followers (1 found)")
	require.Contains(t, text, "1. SIG (Signal)")
	require.Contains(t, text, "@sigcoin - 1200 followers ✔️")
}

func TestContainsMention(t *testing.T) {
	require.True(t, containsMention("/start_tracking @TrackerBot", "TrackerBot"))
	require.True(t, containsMention("/start_tracking@trackerbot", "TrackerBot"))
	require.False(t, containsMention("/start_tracking", "TrackerBot"))
	require.False(t, containsMention("/start_tracking @OtherBot1", "TrackerBot"))
	require.False(t, containsMention("/start_tracking @TrackerBot", ""))
}
