package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/solvirx/tokenwatch/core"
)

// formatMatchBatch renders one tick's new matches. At most notificationCap
// tokens are shown in full; the rest collapse into a trailing count.
func formatMatchBatch(matches []core.Match) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🚨 Found %d new matching tokens! 🚨\n\n", len(matches))

	shown := matches
	if len(shown) > notificationCap {
		shown = shown[:notificationCap]
	}

	for i, match := range shown {
		writeTokenBlock(&sb, i+1, match.Token)
		fmt.Fprintf(&sb, "   Matched filter: %s - %s\n\n", match.Filter.Kind, match.Filter.Value)
	}

	if len(matches) > notificationCap {
		fmt.Fprintf(&sb, "...and %d more. Check /matches for all.", len(matches)-notificationCap)
	}

	return sb.String()
}

func writeTokenBlock(sb *strings.Builder, index int, token core.Token) {
	fmt.Fprintf(sb, "%d. %s (%s)", index, token.DisplaySymbol(), token.DisplayName())
	if token.Source == core.SourceSignal {
		sb.WriteString(" [Believe]")
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "   🔗 CA: `%s`\n", token.Address)

	if token.Website != "" {
		fmt.Fprintf(sb, "   🌐 Website: %s\n", token.Website)
	}
	if token.Twitter != "" {
		fmt.Fprintf(sb, "   🐦 Twitter: %s\n", displayTwitter(token.Twitter))
	}
}

// displayTwitter prefixes bare handles with @, leaving URLs alone.
func displayTwitter(twitter string) string {
	if strings.HasPrefix(twitter, "@") || strings.HasPrefix(twitter, "http") {
		return twitter
	}
	return "@" + twitter
}

// formatMatchedTokens renders the full matched list as a series of messages,
// each under the Telegram length limit, with "part N" continuation headers.
func formatMatchedTokens(tokens []core.Token) []string {
	items := make([]string, 0, len(tokens))
	for i, token := range tokens {
		var sb strings.Builder
		writeTokenBlock(&sb, i+1, token)
		sb.WriteString("\n")
		items = append(items, sb.String())
	}

	first := fmt.Sprintf("🎯 Your matched tokens (%d total):\n\n", len(tokens))
	continuation := func(part int) string {
		return fmt.Sprintf("🎯 Your matched tokens (part %d):\n\n", part)
	}

	return chunkMessages(first, continuation, items)
}

// formatHistory renders the match history the same chunked way.
func formatHistory(history []core.MatchRecord) []string {
	items := make([]string, 0, len(history))
	for i, record := range history {
		matchTime := time.UnixMilli(record.Timestamp).Format("2006-01-02 15:04:05")
		items = append(items, fmt.Sprintf(
			"%d. %s (%s)\n   Matched: %s\n   Filter: %s - %s\n\n",
			i+1, record.Token.DisplaySymbol(), record.Token.DisplayName(),
			matchTime, record.Filter.Kind, record.Filter.Value,
		))
	}

	first := fmt.Sprintf("📜 Your match history (%d total):\n\n", len(history))
	continuation := func(part int) string {
		return fmt.Sprintf("📜 Your match history (part %d):\n\n", part)
	}

	return chunkMessages(first, continuation, items)
}

// chunkMessages packs items into messages of at most maxMessageLength
// characters. The first message opens with the given header, every overflow
// message with the continuation header for its part number.
func chunkMessages(first string, continuation func(part int) string, items []string) []string {
	var messages []string

	current := first
	part := 1

	for _, item := range items {
		if len(current)+len(item) > maxMessageLength {
			messages = append(messages, current)
			part++
			current = continuation(part) + item
			continue
		}
		current += item
	}

	if current != "" {
		messages = append(messages, current)
	}

	return messages
}

// formatSearchResults renders a /search_token reply: an exact address match
// wins outright, otherwise a substring scan over address, name and symbol.
func formatSearchResults(query string, tokens []core.Token) string {
	for _, token := range tokens {
		if strings.ToLower(token.Address) == query {
			var sb strings.Builder
			sb.WriteString("✅ Exact match found:\n\n")
			writeTokenBlock(&sb, 1, token)
			return sb.String()
		}
	}

	var matching []core.Token
	for _, token := range tokens {
		if strings.Contains(strings.ToLower(token.Address), query) ||
			strings.Contains(strings.ToLower(token.Name), query) ||
			strings.Contains(strings.ToLower(token.Symbol), query) {
			matching = append(matching, token)
		}
	}

	if len(matching) == 0 {
		return fmt.Sprintf("❌ No tokens found matching '%s'.", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 Found %d tokens matching '%s':\n\n", len(matching), query)

	shown := matching
	if len(shown) > searchResultCap {
		shown = shown[:searchResultCap]
	}
	for i, token := range shown {
		fmt.Fprintf(&sb, "%d. %s (%s)\n   Address: %s\n\n", i+1, token.DisplaySymbol(), token.DisplayName(), token.Address)
	}

	if len(matching) > searchResultCap {
		fmt.Fprintf(&sb, "...and %d more.", len(matching)-searchResultCap)
	}

	return sb.String()
}

// formatBelieveListing renders a /believe_tracker reply.
func formatBelieveListing(minFollowers int, tokens []core.Token) string {
	if len(tokens) == 0 {
		return fmt.Sprintf("No believe tokens found with at least %d followers.", minFollowers)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "⚡ Believe tokens with at least %d followers (%d found):\n\n", minFollowers, len(tokens))

	shown := tokens
	if len(shown) > believeListingCap {
		shown = shown[:believeListingCap]
	}
	for i, token := range shown {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, token.DisplaySymbol(), token.DisplayName())
		fmt.Fprintf(&sb, "   🔗 CA: `%s`\n", token.Address)
		if token.Twitter != "" {
			verified := ""
			if token.TwitterVerified {
				verified = " ✔️"
			}
			fmt.Fprintf(&sb, "   🐦 %s - %d followers%s\n", displayTwitter(token.Twitter), token.TwitterFollowers, verified)
		}
		sb.WriteString("\n")
	}

	if len(tokens) > believeListingCap {
		fmt.Fprintf(&sb, "...and %d more.", len(tokens)-believeListingCap)
	}

	return sb.String()
}
