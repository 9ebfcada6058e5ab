package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solvirx/tokenwatch/core"
)

const primaryFixture = `[
	{
		"token": {
			"mint": "So1anaMint1111111111111111111111111111111",
			"name": "Alpha",
			"symbol": "ALPHA",
			"website": "https://alpha.example",
			"twitter": "https://x.com/alphatoken",
			"twitterUsername": "alphatoken"
		},
		"pools": [
			{
				"tokenAddress": "So1anaMint1111111111111111111111111111111",
				"deployer": "Dep1oyer11111111111111111111111111111111",
				"marketCap": {"usd": 125000.5},
				"price": {"usd": 0.0042},
				"txns": {"volume": 9000},
				"createdAt": 1717243200000
			}
		]
	},
	{
		"mint": "F1atMint22222222222222222222222222222222",
		"name": "Beta",
		"symbol": "BETA"
	},
	"not-an-object",
	{"name": "no address at all"}
]`

func newTestPrimary(t *testing.T, handler http.Handler) (*PrimaryClient, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewPrimaryClient(core.FeedSettings{
		URL:            srv.URL,
		APIKey:         "test-key",
		RequestTimeout: 5 * time.Second,
	}, core.NewNopLogger())
	client.fetcher.newBackoff = fastBackoff

	return client, srv
}

func TestPrimaryClient_DecodesMixedPayload(t *testing.T) {
	var gotQuery, gotKey string
	client, _ := newTestPrimary(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("x-api-key")
		w.Write([]byte(primaryFixture))
	}))

	tokens, err := client.Latest(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, "limit=50", gotQuery)
	require.Equal(t, "test-key", gotKey)

	// Malformed row and the addressless row are skipped, not fatal.
	require.Len(t, tokens, 2)

	alpha := tokens[0]
	require.Equal(t, "So1anaMint1111111111111111111111111111111", alpha.Address)
	require.Equal(t, "Alpha", alpha.Name)
	require.Equal(t, "ALPHA", alpha.Symbol)
	require.Equal(t, "Dep1oyer11111111111111111111111111111111", alpha.Deployer)
	require.Equal(t, "Dep1oyer11111111111111111111111111111111", alpha.Creator)
	require.Equal(t, "https://alpha.example", alpha.Website)
	require.Equal(t, "https://x.com/alphatoken", alpha.Twitter)
	require.Equal(t, "alphatoken", alpha.TwitterUsername)
	require.Equal(t, core.SourcePrimary, alpha.Source)
	require.InDelta(t, 125000.5, alpha.MarketCap, 0.001)
	require.InDelta(t, 0.0042, alpha.Price, 0.000001)
	require.InDelta(t, 9000.0, alpha.Volume, 0.001)
	require.Equal(t, "1717243200000", alpha.CreatedAt)

	beta := tokens[1]
	require.Equal(t, "F1atMint22222222222222222222222222222222", beta.Address)
	require.Equal(t, "Beta", beta.Name)
	require.Equal(t, core.SourcePrimary, beta.Source)
}

func TestPrimaryClient_RateLimitServesLastResponse(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestPrimary(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(primaryFixture))
	}))

	first, err := client.Latest(context.Background(), false)
	require.NoError(t, err)

	second, err := client.Latest(context.Background(), false)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, int32(1), hits.Load())
}

func TestPrimaryClient_ForceRefreshBypassesWindow(t *testing.T) {
	var hits atomic.Int32
	var lastQuery string
	client, _ := newTestPrimary(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		lastQuery = r.URL.RawQuery
		w.Write([]byte(primaryFixture))
	}))

	_, err := client.Latest(context.Background(), true)
	require.NoError(t, err)
	_, err = client.Latest(context.Background(), true)
	require.NoError(t, err)

	require.Equal(t, int32(2), hits.Load())
	require.Contains(t, lastQuery, "limit=50")
	require.Contains(t, lastQuery, "_cb=")
}

func TestPrimaryClient_FallsBackToCacheOnFailure(t *testing.T) {
	var fail atomic.Bool
	client, _ := newTestPrimary(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(primaryFixture))
	}))

	good, err := client.Latest(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, good, 2)

	fail.Store(true)

	tokens, err := client.Latest(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, good, tokens)
}

func TestPrimaryClient_FallsBackToPlaceholdersWithoutCache(t *testing.T) {
	client, _ := newTestPrimary(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))

	tokens, err := client.Latest(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, placeholderTokens(), tokens)
}

func TestPrimaryClient_EmptyPayloadPrefersCachedTokens(t *testing.T) {
	var empty atomic.Bool
	client, _ := newTestPrimary(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if empty.Load() {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(primaryFixture))
	}))

	good, err := client.Latest(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, good, 2)

	empty.Store(true)

	tokens, err := client.Latest(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, good, tokens)
}

func TestPrimaryClient_EmptyPayloadServesPlaceholders(t *testing.T) {
	client, _ := newTestPrimary(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))

	tokens, err := client.Latest(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, placeholderTokens(), tokens)
}
