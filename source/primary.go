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
	primaryRateLimit = 1500 * time.Millisecond
	primaryCacheTTL  = 30 * time.Minute
	primaryCacheKey  = "latest-tokens"
	primaryPageLimit = 50
)

// PrimaryClient fetches the latest token listings. It keeps a 30 minute TTL
// cache and a 1.5s rate-limit window; on total upstream failure it degrades
// to the last good cache entry and finally to a fixed placeholder set, so the
// scheduler never sees an empty primary result.
type PrimaryClient struct {
	baseURL string
	apiKey  string
	fetcher *fetcher
	cache   *tokenCache
	log     core.Logger

	mu           sync.Mutex
	lastFetch    time.Time
	lastResponse []core.Token
	now          func() time.Time
}

// NewPrimaryClient creates a primary feed client from feed settings.
func NewPrimaryClient(settings core.FeedSettings, log core.Logger) *PrimaryClient {
	return &PrimaryClient{
		baseURL: settings.URL,
		apiKey:  settings.APIKey,
		fetcher: newFetcher(settings.RequestTimeout, log),
		cache:   newTokenCache(),
		log:     log,
		now:     time.Now,
	}
}

// Latest implements core.PrimarySource. The rate-limit window applies only
// when not forcing; the TTL cache is consulted as a pre-check when not
// forcing and as the first fallback on failure either way.
func (p *PrimaryClient) Latest(ctx context.Context, forceRefresh bool) ([]core.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()

	if !forceRefresh {
		if now.Sub(p.lastFetch) < primaryRateLimit && p.lastResponse != nil {
			return p.lastResponse, nil
		}
		if tokens, ok := p.cache.get(primaryCacheKey); ok {
			return tokens, nil
		}
	}

	url := fmt.Sprintf("%s/tokens/latest?limit=%d", p.baseURL, primaryPageLimit)
	if forceRefresh {
		url += fmt.Sprintf("&_cb=%d", now.UnixMilli())
	}

	body, err := p.fetcher.fetchWithRetry(ctx, url, p.headers())
	if err != nil {
		if tokens, ok := p.cache.get(primaryCacheKey); ok {
			p.log.WithError(err).Warn("primary feed unavailable, serving cached tokens")
			return tokens, nil
		}

		p.log.WithError(err).Warn("primary feed unavailable, serving placeholder tokens")
		mocks := placeholderTokens()
		p.cache.put(primaryCacheKey, mocks, primaryCacheTTL)
		p.lastResponse = mocks
		p.lastFetch = now
		return mocks, nil
	}

	tokens := decodePrimaryPayload(body, p.log)
	if len(tokens) == 0 {
		if cached, ok := p.cache.get(primaryCacheKey); ok {
			p.log.Warn("no valid tokens in primary payload, serving cached tokens")
			return cached, nil
		}
		p.log.Warn("no valid tokens in primary payload, serving placeholder tokens")
		return placeholderTokens(), nil
	}

	p.cache.put(primaryCacheKey, tokens, primaryCacheTTL)
	p.lastResponse = tokens
	p.lastFetch = now

	return tokens, nil
}

func (p *PrimaryClient) headers() map[string]string {
	return map[string]string{
		"Accept":        "application/json",
		"Content-Type":  "application/json",
		"x-api-key":     p.apiKey,
		"Cache-Control": "no-cache, no-store, must-revalidate",
		"Pragma":        "no-cache",
		"Expires":       "0",
	}
}

// ---------------------
// Payload decoding
// ---------------------

type primaryMetric struct {
	USD float64 `json:"usd"`
}

type primaryTxns struct {
	Volume float64 `json:"volume"`
}

type primaryPool struct {
	TokenAddress string        `json:"tokenAddress"`
	Deployer     string        `json:"deployer"`
	MarketCap    primaryMetric `json:"marketCap"`
	Price        primaryMetric `json:"price"`
	Txns         primaryTxns   `json:"txns"`
	CreatedAt    json.Number   `json:"createdAt"`
}

type primaryTokenData struct {
	Mint            string `json:"mint"`
	Address         string `json:"address"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	Creator         string `json:"creator"`
	Website         string `json:"website"`
	Twitter         string `json:"twitter"`
	TwitterUsername string `json:"twitterUsername"`
}

type primaryEntry struct {
	Token *primaryTokenData `json:"token"`
	Pools []primaryPool     `json:"pools"`
	Txns  *primaryTxns      `json:"txns"`

	// Flat shape: some rows carry the token fields directly.
	Mint         string `json:"mint"`
	Address      string `json:"address"`
	TokenAddress string `json:"tokenAddress"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
}

func (e *primaryEntry) valid() bool {
	if e.Token != nil || len(e.Pools) > 0 {
		return true
	}
	hasAddress := e.Address != "" || e.Mint != "" || e.TokenAddress != ""
	hasIdentity := e.Name != "" || e.Symbol != ""
	return hasAddress && hasIdentity
}

// decodePrimaryPayload transforms the raw feed payload into tokens.
// Structurally invalid rows and rows without an address are skipped
// individually; a bad row never aborts the batch.
func decodePrimaryPayload(body []byte, log core.Logger) []core.Token {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		log.WithError(err).Error("primary payload is not a token array")
		return nil
	}

	tokens := make([]core.Token, 0, len(rows))
	for _, row := range rows {
		var entry primaryEntry
		if err := json.Unmarshal(row, &entry); err != nil {
			log.WithError(err).Debug("skipping malformed primary entry")
			continue
		}
		if !entry.valid() {
			continue
		}

		token, ok := entry.toToken()
		if !ok {
			continue
		}
		tokens = append(tokens, token)
	}

	return tokens
}

func (e *primaryEntry) toToken() (core.Token, bool) {
	data := e.Token
	if data == nil {
		data = &primaryTokenData{
			Mint:    e.Mint,
			Address: e.Address,
			Name:    e.Name,
			Symbol:  e.Symbol,
		}
	}

	var pool primaryPool
	if len(e.Pools) > 0 {
		pool = e.Pools[0]
	}

	address := firstNonEmpty(data.Mint, data.Address, pool.TokenAddress, e.TokenAddress)
	if address == "" {
		return core.Token{}, false
	}

	volume := pool.Txns.Volume
	if volume == 0 && e.Txns != nil {
		volume = e.Txns.Volume
	}

	return core.Token{
		Address:         address,
		Name:            data.Name,
		Symbol:          data.Symbol,
		Deployer:        pool.Deployer,
		Creator:         firstNonEmpty(data.Creator, pool.Deployer),
		Website:         data.Website,
		Twitter:         data.Twitter,
		TwitterUsername: data.TwitterUsername,
		Source:          core.SourcePrimary,
		MarketCap:       pool.MarketCap.USD,
		Price:           pool.Price.USD,
		Volume:          volume,
		CreatedAt:       pool.CreatedAt.String(),
	}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
