package oracle

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	simplejson "github.com/bitly/go-simplejson"
	"github.com/go-resty/resty/v2"
	"github.com/jpillora/backoff"
	logger "github.com/sirupsen/logrus"
)

// Identifiers at least this long are treated as contract/mint addresses and
// resolved via DexScreener; shorter ones as symbols via CoinGecko.
const mintLengthThreshold = 40

// PriceOracle resolves a current USD price and a display symbol for a token
// identifier. Lookups are best-effort: a miss or a network failure yields
// ok=false (and a fallback string for symbols), never an error.
type PriceOracle interface {
	PriceUSD(ctx context.Context, token string) (float64, bool)
	ResolveSymbol(ctx context.Context, token string) string
}

// Client resolves prices against DexScreener (mint addresses) and CoinGecko
// (symbols), with the Binance spot ticker as a fallback source for plain
// symbols. The CoinGecko coin universe is cached in-process after the first
// symbol lookup.
type Client struct {
	http        *resty.Client
	dexBase     string
	geckoBase   string
	spot        *binance.Client
	maxAttempts int

	mu       sync.Mutex
	coinList []coinEntry
}

type coinEntry struct {
	ID     string
	Symbol string
	Name   string
}

func NewClient(dexscreenerURL, coingeckoURL string) *Client {
	return &Client{
		http:        resty.New().SetTimeout(10 * time.Second),
		dexBase:     strings.TrimRight(dexscreenerURL, "/"),
		geckoBase:   strings.TrimRight(coingeckoURL, "/"),
		spot:        binance.NewClient("", ""),
		maxAttempts: 3,
	}
}

// PriceUSD implements the oracle contract from the engine's point of view:
// any failure along the way collapses into "unknown".
func (c *Client) PriceUSD(ctx context.Context, token string) (float64, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false
	}

	if len(token) >= mintLengthThreshold {
		return c.mintPrice(ctx, token)
	}

	lower := strings.ToLower(token)
	if lower == "sol" || lower == "solana" {
		return c.simplePrice(ctx, "solana")
	}

	if id := c.coinID(ctx, lower); id != "" {
		if price, ok := c.simplePrice(ctx, id); ok {
			return price, ok
		}
	}

	// CoinGecko had nothing; try the Binance spot ticker for the bare symbol.
	return c.binancePrice(ctx, token)
}

// ResolveSymbol returns a display symbol, falling back to an upper-cased
// truncation of the identifier when nothing resolves.
func (c *Client) ResolveSymbol(ctx context.Context, token string) string {
	token = strings.TrimSpace(token)
	fallback := strings.ToUpper(truncate(token, 8))
	if token == "" {
		return fallback
	}

	if len(token) >= mintLengthThreshold {
		js, err := c.getJSON(ctx, c.dexBase+"/latest/dex/tokens/"+token, nil)
		if err != nil {
			return fallback
		}
		if sym := js.Get("pairs").GetIndex(0).Get("baseToken").Get("symbol").MustString(); sym != "" {
			return strings.ToUpper(sym)
		}
		return fallback
	}

	id := c.coinID(ctx, strings.ToLower(token))
	if id == "" {
		return strings.ToUpper(token)
	}
	js, err := c.getJSON(ctx, c.geckoBase+"/api/v3/coins/"+id, nil)
	if err != nil {
		return strings.ToUpper(token)
	}
	if sym := js.Get("symbol").MustString(); sym != "" {
		return strings.ToUpper(sym)
	}
	return strings.ToUpper(token)
}

func (c *Client) mintPrice(ctx context.Context, mint string) (float64, bool) {
	js, err := c.getJSON(ctx, c.dexBase+"/latest/dex/tokens/"+mint, nil)
	if err != nil {
		return 0, false
	}
	pair := js.Get("pairs").GetIndex(0)
	raw := pair.Get("priceUsd").MustString()
	if raw == "" {
		raw = pair.Get("price").MustString()
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}

func (c *Client) simplePrice(ctx context.Context, id string) (float64, bool) {
	js, err := c.getJSON(ctx, c.geckoBase+"/api/v3/simple/price", map[string]string{
		"ids":           id,
		"vs_currencies": "usd",
	})
	if err != nil {
		return 0, false
	}
	price, err := js.GetPath(id, "usd").Float64()
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}

func (c *Client) binancePrice(ctx context.Context, symbol string) (float64, bool) {
	if c.spot == nil {
		return 0, false
	}
	pair := strings.ToUpper(symbol) + "USDT"
	prices, err := c.spot.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil || len(prices) == 0 {
		return 0, false
	}
	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}

// coinID maps a symbol, id or name onto a CoinGecko coin id, caching the
// coin universe after the first successful fetch.
func (c *Client) coinID(ctx context.Context, lower string) string {
	c.mu.Lock()
	list := c.coinList
	c.mu.Unlock()

	if list == nil {
		js, err := c.getJSON(ctx, c.geckoBase+"/api/v3/coins/list", nil)
		if err != nil {
			return ""
		}
		for i := 0; i < len(js.MustArray()); i++ {
			entry := js.GetIndex(i)
			list = append(list, coinEntry{
				ID:     entry.Get("id").MustString(),
				Symbol: entry.Get("symbol").MustString(),
				Name:   entry.Get("name").MustString(),
			})
		}
		c.mu.Lock()
		c.coinList = list
		c.mu.Unlock()
	}

	for _, e := range list {
		if e.Symbol == lower || e.ID == lower || strings.ToLower(e.Name) == lower {
			return e.ID
		}
	}
	return ""
}

// getJSON fetches a URL with bounded retries on transport errors and 5xx
// responses, pacing attempts with jittered backoff.
func (c *Client) getJSON(ctx context.Context, url string, query map[string]string) (*simplejson.Json, error) {
	boff := &backoff.Backoff{Min: 200 * time.Millisecond, Max: 2 * time.Second, Jitter: true}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(boff.Duration()):
			}
		}

		req := c.http.R().SetContext(ctx)
		if query != nil {
			req.SetQueryParams(query)
		}
		resp, err := req.Get(url)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode() >= 500 {
			lastErr = errStatus(resp.StatusCode())
			continue
		}
		if resp.IsError() {
			return nil, errStatus(resp.StatusCode())
		}
		return simplejson.NewJson(resp.Body())
	}

	logger.WithError(lastErr).WithField("url", url).Debug("oracle lookup gave up")
	return nil, lastErr
}

type errStatus int

func (e errStatus) Error() string {
	return "unexpected status " + strconv.Itoa(int(e))
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
