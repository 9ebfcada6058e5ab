package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/solvirx/tokenwatch/core"
)

const (
	signalRateLimit = 4 * time.Second
	signalCacheTTL  = 30 * time.Minute
	signalPageCount = 50
)

// SignalClient fetches social-signal tokens. Each distinct minimum-follower
// threshold gets its own cache slot and rate-limit window. There is no
// placeholder fallback: on failure the last cached payload for the threshold
// is served, or an empty list.
type SignalClient struct {
	baseURL string
	fetcher *fetcher
	cache   *tokenCache
	log     core.Logger

	mu        sync.Mutex
	lastFetch map[string]time.Time
	now       func() time.Time
}

// NewSignalClient creates a signal feed client from feed settings.
func NewSignalClient(settings core.FeedSettings, log core.Logger) *SignalClient {
	return &SignalClient{
		baseURL:   settings.URL,
		fetcher:   newFetcher(settings.RequestTimeout, log),
		cache:     newTokenCache(),
		log:       log,
		lastFetch: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Tokens implements core.SignalSource.
func (s *SignalClient) Tokens(ctx context.Context, minFollowers int, forceRefresh bool) ([]core.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("believe-%d", minFollowers)
	now := s.now()

	if !forceRefresh && now.Sub(s.lastFetch[key]) < signalRateLimit {
		if tokens, ok := s.cache.get(key); ok {
			return tokens, nil
		}
	}

	url := fmt.Sprintf("%s/tokens?count=%d&min_followers=%d", s.baseURL, signalPageCount, minFollowers)
	body, err := s.fetcher.fetchWithRetry(ctx, url, s.headers())
	if err != nil {
		if tokens, ok := s.cache.get(key); ok {
			s.log.WithError(err).Warnf("signal feed unavailable, serving cached tokens for min_followers=%d", minFollowers)
			return tokens, nil
		}
		s.log.WithError(err).Warnf("signal feed unavailable for min_followers=%d", minFollowers)
		return []core.Token{}, nil
	}

	tokens := decodeSignalPayload(body, s.log)

	s.cache.put(key, tokens, signalCacheTTL)
	s.lastFetch[key] = now

	return tokens, nil
}

func (s *SignalClient) headers() map[string]string {
	return map[string]string{
		"Accept":     "application/json",
		"User-Agent": "tokenwatch/1.0",
	}
}

type signalTwitterInfo struct {
	FollowersCount int  `json:"followers_count"`
	IsBlueVerified bool `json:"is_blue_verified"`
}

type signalEntry struct {
	CAAddress      string             `json:"ca_address"`
	CoinName       string             `json:"coin_name"`
	CoinTicker     string             `json:"coin_ticker"`
	TwitterHandler string             `json:"twitter_handler"`
	Link           string             `json:"link"`
	CreatedAt      string             `json:"created_at"`
	TwitterInfo    *signalTwitterInfo `json:"twitter_info"`
}

func decodeSignalPayload(body []byte, log core.Logger) []core.Token {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		log.WithError(err).Error("signal payload is not a token array")
		return nil
	}

	tokens := make([]core.Token, 0, len(rows))
	for _, row := range rows {
		var entry signalEntry
		if err := json.Unmarshal(row, &entry); err != nil {
			log.WithError(err).Debug("skipping malformed signal entry")
			continue
		}

		token := core.Token{
			Address:   entry.CAAddress,
			Name:      entry.CoinName,
			Symbol:    entry.CoinTicker,
			Twitter:   entry.TwitterHandler,
			Website:   entry.Link,
			CreatedAt: entry.CreatedAt,
			Source:    core.SourceSignal,
		}
		if entry.TwitterInfo != nil {
			token.TwitterFollowers = entry.TwitterInfo.FollowersCount
			token.TwitterVerified = entry.TwitterInfo.IsBlueVerified
		}

		tokens = append(tokens, token)
	}

	return tokens
}
