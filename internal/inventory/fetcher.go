// Package inventory fetches the full CS:GO backpack from the Steam community
// inventory endpoint. It is used to bootstrap the backpack store and to
// resolve SOCache updates for assets the GC has not told us about.
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/backpack"
)

const (
	appID     = 730
	contextID = 2

	maxBodySize = 32 << 20
)

// ErrRefreshExhausted is returned when the fetch failed and its single retry
// failed too.
var ErrRefreshExhausted = errors.New("inventory refresh exhausted")

// Config configures the fetcher.
type Config struct {
	BaseURL     string
	SteamID     uint64
	Language    string
	Count       int
	Backoff     time.Duration // fixed delay before the retry
	HTTPTimeout time.Duration
}

// Fetcher implements handler.BackpackFetcher over HTTP.
type Fetcher struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Fetcher {
	if cfg.Count <= 0 {
		cfg.Count = 2000
	}
	if cfg.Language == "" {
		cfg.Language = "english"
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 20 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Second
	}
	return &Fetcher{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.HTTPTimeout},
		log:  log.Named("inventory"),
	}
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// retryable reports whether another attempt could succeed. Private or
// missing inventories will not change by waiting.
func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// Fetch downloads every page of the inventory. A failed attempt is retried
// once after the configured backoff.
func (f *Fetcher) Fetch(ctx context.Context) ([]*backpack.Item, error) {
	var (
		items     []*backpack.Item
		permanent bool
		attempt   int
	)
	b := retry.WithMaxRetries(1, retry.NewConstant(f.cfg.Backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		var err error
		items, err = f.fetchAll(ctx)
		if err == nil {
			return nil
		}
		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			permanent = true
			return err
		}
		f.log.Warn("inventory fetch failed", zap.Int("attempt", attempt), zap.Error(err))
		return retry.RetryableError(err)
	})
	switch {
	case err == nil:
		f.log.Debug("inventory fetched", zap.Int("items", len(items)))
		return items, nil
	case permanent:
		return nil, fmt.Errorf("fetch inventory: %w", err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrRefreshExhausted, err)
	}
}

type page struct {
	Assets       []asset       `json:"assets"`
	Descriptions []description `json:"descriptions"`
	MoreItems    int           `json:"more_items"`
	LastAssetID  string        `json:"last_assetid"`
	Success      int           `json:"success"`
}

type asset struct {
	AssetID    string `json:"assetid"`
	ClassID    string `json:"classid"`
	InstanceID string `json:"instanceid"`
	Amount     string `json:"amount"`
}

type description struct {
	ClassID        string `json:"classid"`
	InstanceID     string `json:"instanceid"`
	Name           string `json:"name"`
	MarketHashName string `json:"market_hash_name"`
	Tradable       int    `json:"tradable"`
}

func (f *Fetcher) fetchAll(ctx context.Context) ([]*backpack.Item, error) {
	var (
		out   []*backpack.Item
		start string
	)
	for {
		p, err := f.fetchPage(ctx, start)
		if err != nil {
			return nil, err
		}
		items, err := p.items()
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if p.MoreItems == 0 || p.LastAssetID == "" {
			return out, nil
		}
		start = p.LastAssetID
	}
}

func (f *Fetcher) fetchPage(ctx context.Context, start string) (*page, error) {
	u, err := url.Parse(f.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	u = u.JoinPath("inventory", strconv.FormatUint(f.cfg.SteamID, 10), strconv.Itoa(appID), strconv.Itoa(contextID))
	q := url.Values{}
	q.Set("l", f.cfg.Language)
	q.Set("count", strconv.Itoa(f.cfg.Count))
	if start != "" {
		q.Set("start_assetid", start)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get inventory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &statusError{code: resp.StatusCode}
	}

	var p page
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}
	if p.Success != 1 {
		return nil, fmt.Errorf("inventory request unsuccessful (success=%d)", p.Success)
	}
	return &p, nil
}

func (p *page) items() ([]*backpack.Item, error) {
	type key struct{ class, instance string }
	descs := make(map[key]*description, len(p.Descriptions))
	for i := range p.Descriptions {
		d := &p.Descriptions[i]
		descs[key{d.ClassID, d.InstanceID}] = d
	}

	out := make([]*backpack.Item, 0, len(p.Assets))
	for _, a := range p.Assets {
		id, err := strconv.ParseUint(a.AssetID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("asset id %q: %w", a.AssetID, err)
		}
		it := &backpack.Item{AssetID: id, Quantity: 1}
		if n, err := strconv.ParseUint(a.Amount, 10, 32); err == nil {
			it.Quantity = uint32(n)
		}
		if d, ok := descs[key{a.ClassID, a.InstanceID}]; ok {
			it.Name = d.Name
			it.MarketHashName = d.MarketHashName
			it.Tradable = d.Tradable == 1
		}
		out = append(out, it)
	}
	return out, nil
}
