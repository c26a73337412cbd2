package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultPriceTimeout = 10 * time.Second

	// nanoDigits is the fixed-point scale of on-chain prices: 1 USD = 1e9 nanousd.
	nanoDigits = 9
)

// HTTPPriceProvider fetches the MINA/USD spot price from a JSON endpoint
// shaped like {"price": "0.245"} and rescales it to nanousd.
type HTTPPriceProvider struct {
	httpClient *http.Client
	url        string
	logger     *slog.Logger
}

func NewHTTPPriceProvider(url string, logger *slog.Logger) *HTTPPriceProvider {
	return &HTTPPriceProvider{
		httpClient: &http.Client{Timeout: defaultPriceTimeout},
		url:        url,
		logger:     logger.With("component", "price_provider"),
	}
}

type priceResponse struct {
	Price string `json:"price"`
}

func (p *HTTPPriceProvider) GetPrice(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return "", fmt.Errorf("create price request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("price endpoint returned http status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read price response: %w", err)
	}

	var pr priceResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return "", fmt.Errorf("decode price response: %w", err)
	}

	nano, err := ScaleToNano(pr.Price)
	if err != nil {
		return "", fmt.Errorf("scale price %q: %w", pr.Price, err)
	}

	p.logger.Debug("price fetched", "usd", pr.Price, "nanousd", nano)
	return nano, nil
}

// StaticPriceProvider returns a fixed nanousd price. Used on lightnet where
// no market feed exists.
type StaticPriceProvider struct {
	Price string
}

func (p *StaticPriceProvider) GetPrice(_ context.Context) (string, error) {
	if p.Price == "" {
		return "", fmt.Errorf("static price is not configured")
	}
	return p.Price, nil
}

// ScaleToNano converts a decimal USD string to an integer nanousd string.
// The conversion is pure string arithmetic; prices never pass through
// floating point. Fractional digits beyond nanousd precision are truncated.
func ScaleToNano(price string) (string, error) {
	price = strings.TrimSpace(price)
	if price == "" {
		return "", fmt.Errorf("price is empty")
	}
	if strings.HasPrefix(price, "-") {
		return "", fmt.Errorf("price %q is negative", price)
	}

	whole, frac := price, ""
	if i := strings.IndexByte(price, '.'); i >= 0 {
		whole, frac = price[:i], price[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	for _, r := range whole {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("price %q is not a decimal number", price)
		}
	}
	for _, r := range frac {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("price %q is not a decimal number", price)
		}
	}

	if len(frac) > nanoDigits {
		frac = frac[:nanoDigits]
	}
	frac += strings.Repeat("0", nanoDigits-len(frac))

	nano := strings.TrimLeft(whole+frac, "0")
	if nano == "" {
		nano = "0"
	}
	return nano, nil
}
