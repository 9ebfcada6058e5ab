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

const signalFixture = `[
	{
		"ca_address": "Be1ieveCA111111111111111111111111111111",
		"coin_name": "Signal One",
		"coin_ticker": "SIG1",
		"twitter_handler": "sigone",
		"link": "https://sigone.example",
		"created_at": "2025-06-01T12:00:00Z",
		"twitter_info": {"followers_count": 1200, "is_blue_verified": true}
	},
	{
		"ca_address": "Be1ieveCA222222222222222222222222222222",
		"coin_name": "Signal Two",
		"coin_ticker": "SIG2",
		"twitter_handler": "sigtwo",
		"link": "https://sigtwo.example",
		"created_at": "2025-06-01T13:00:00Z"
	}
]`

func newTestSignal(t *testing.T, handler http.Handler) *SignalClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewSignalClient(core.FeedSettings{
		URL:            srv.URL,
		RequestTimeout: 5 * time.Second,
	}, core.NewNopLogger())
	client.fetcher.newBackoff = fastBackoff

	return client
}

func TestSignalClient_DecodesPayload(t *testing.T) {
	var gotQuery string
	client := newTestSignal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(signalFixture))
	}))

	tokens, err := client.Tokens(context.Background(), 1000, false)
	require.NoError(t, err)
	require.Equal(t, "count=50&min_followers=1000", gotQuery)
	require.Len(t, tokens, 2)

	one := tokens[0]
	require.Equal(t, "Be1ieveCA111111111111111111111111111111", one.Address)
	require.Equal(t, "Signal One", one.Name)
	require.Equal(t, "SIG1", one.Symbol)
	require.Equal(t, "sigone", one.Twitter)
	require.Equal(t, "https://sigone.example", one.Website)
	require.Equal(t, core.SourceSignal, one.Source)
	require.Equal(t, 1200, one.TwitterFollowers)
	require.True(t, one.TwitterVerified)

	two := tokens[1]
	require.Equal(t, core.SourceSignal, two.Source)
	require.Zero(t, two.TwitterFollowers)
	require.False(t, two.TwitterVerified)
}

func TestSignalClient_PerThresholdCaching(t *testing.T) {
	var hits atomic.Int32
	client := newTestSignal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(signalFixture))
	}))

	ctx := context.Background()

	_, err := client.Tokens(ctx, 100, false)
	require.NoError(t, err)
	_, err = client.Tokens(ctx, 100, false)
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load())

	// A different threshold is a separate cache slot and window.
	_, err = client.Tokens(ctx, 500, false)
	require.NoError(t, err)
	require.Equal(t, int32(2), hits.Load())
}

func TestSignalClient_FailureServesCachedThreshold(t *testing.T) {
	var fail atomic.Bool
	client := newTestSignal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(signalFixture))
	}))

	ctx := context.Background()

	good, err := client.Tokens(ctx, 100, true)
	require.NoError(t, err)
	require.Len(t, good, 2)

	fail.Store(true)

	tokens, err := client.Tokens(ctx, 100, true)
	require.NoError(t, err)
	require.Equal(t, good, tokens)
}

func TestSignalClient_FailureWithoutCacheReturnsEmpty(t *testing.T) {
	client := newTestSignal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))

	tokens, err := client.Tokens(context.Background(), 250, false)
	require.NoError(t, err)
	require.NotNil(t, tokens)
	require.Empty(t, tokens)
}
