package inventory

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const steamID = 76561198000000001

func newFetcher(url string) *Fetcher {
	return New(Config{BaseURL: url, SteamID: steamID, Count: 2, Backoff: 10 * time.Millisecond, HTTPTimeout: time.Second}, zap.NewNop())
}

func TestFetchPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fmt.Sprintf("/inventory/%d/730/2", steamID), r.URL.Path)
		assert.Equal(t, "english", r.URL.Query().Get("l"))
		assert.Equal(t, "2", r.URL.Query().Get("count"))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("start_assetid") {
		case "":
			fmt.Fprint(w, `{"success":1,"more_items":1,"last_assetid":"2",
				"assets":[{"assetid":"1","classid":"10","instanceid":"0","amount":"1"},
				          {"assetid":"2","classid":"11","instanceid":"5","amount":"1"}],
				"descriptions":[{"classid":"10","instanceid":"0","name":"AK-47 | Redline","market_hash_name":"AK-47 | Redline (Field-Tested)","tradable":1},
				                {"classid":"11","instanceid":"5","name":"Storage Unit","market_hash_name":"Storage Unit","tradable":0}]}`)
		case "2":
			fmt.Fprint(w, `{"success":1,
				"assets":[{"assetid":"3","classid":"10","instanceid":"0","amount":"1"}],
				"descriptions":[{"classid":"10","instanceid":"0","name":"AK-47 | Redline","market_hash_name":"AK-47 | Redline (Field-Tested)","tradable":1}]}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	items, err := newFetcher(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, uint64(1), items[0].AssetID)
	assert.Equal(t, "AK-47 | Redline", items[0].Name)
	assert.True(t, items[0].Tradable)
	assert.Equal(t, "Storage Unit", items[1].Name)
	assert.False(t, items[1].Tradable)
	assert.Equal(t, uint64(3), items[2].AssetID)
}

func TestFetchRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"success":1,"assets":[{"assetid":"9","classid":"1","instanceid":"0","amount":"1"}],"descriptions":[]}`)
	}))
	defer srv.Close()

	items, err := newFetcher(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newFetcher(srv.URL).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrRefreshExhausted)
	assert.Equal(t, int32(2), calls.Load(), "one attempt plus one retry")
}

func TestFetchPrivateInventoryNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newFetcher(srv.URL).Fetch(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRefreshExhausted)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchUnsuccessfulBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":0}`)
	}))
	defer srv.Close()

	_, err := newFetcher(srv.URL).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrRefreshExhausted)
}
