package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const maxPayloadBytes = 1 << 20

// Suggestion is a best-effort product description for an unknown barcode.
// Found is false whenever the lookup could not produce one.
type Suggestion struct {
	Barcode       string          `json:"barcode"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Brand         string          `json:"brand"`
	Specification string          `json:"specification"`
	Manufacturer  string          `json:"manufacturer"`
	Category      string          `json:"category"`
	ImageRef      string          `json:"image_ref"`
	Found         bool            `json:"found"`
}

// payload is the response body of the product database.
type payload struct {
	Name          *string          `json:"name"`
	Price         *decimal.Decimal `json:"price"`
	Brand         *string          `json:"brand"`
	Specification *string          `json:"specification"`
	Manufacturer  *string          `json:"manufacturer"`
	Category      *string          `json:"category"`
	ImageURL      *string          `json:"image_url"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

type Options struct {
	BaseURL string // empty disables lookups
	Timeout time.Duration
	Cache   Cache       // optional
	Images  *ImageStore // optional
}

type Client struct {
	baseURL string
	http    *http.Client
	cache   Cache
	images  *ImageStore
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		cache:   opts.Cache,
		images:  opts.Images,
	}
}

func (c *Client) Enabled() bool { return c.baseURL != "" }

// Lookup asks the product database about a barcode. Failures are logged and
// reported as an empty suggestion.
func (c *Client) Lookup(ctx context.Context, barcode string) Suggestion {
	empty := Suggestion{Barcode: barcode, Price: decimal.Zero}
	if !c.Enabled() || barcode == "" {
		return empty
	}

	p, err := c.payload(ctx, barcode)
	if err != nil {
		slog.WarnContext(ctx, "product lookup failed", "barcode", barcode, "error", err)
		return empty
	}
	if p == nil {
		return empty
	}

	s := Suggestion{
		Barcode:       barcode,
		Name:          str(p.Name),
		Price:         decimal.Zero,
		Brand:         str(p.Brand),
		Specification: str(p.Specification),
		Manufacturer:  str(p.Manufacturer),
		Category:      str(p.Category),
		Found:         true,
	}
	if p.Price != nil && !p.Price.IsNegative() {
		s.Price = p.Price.Round(2)
	}
	if img := str(p.ImageURL); img != "" && c.images != nil {
		ref, err := c.images.Save(ctx, barcode, img)
		if err != nil {
			slog.WarnContext(ctx, "product image download failed", "barcode", barcode, "error", err)
		} else {
			s.ImageRef = ref
		}
	}
	return s
}

// payload returns the cached or freshly fetched body. A nil payload with a nil
// error means the product database does not know the barcode.
func (c *Client) payload(ctx context.Context, barcode string) (*payload, error) {
	if c.cache != nil {
		raw, ok, err := c.cache.Get(ctx, barcode)
		if err != nil {
			slog.WarnContext(ctx, "lookup cache read failed", "barcode", barcode, "error", err)
		} else if ok {
			var p payload
			if err := json.Unmarshal(raw, &p); err == nil {
				return &p, nil
			}
		}
	}

	raw, err := c.fetch(ctx, barcode)
	if err != nil || raw == nil {
		return nil, err
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, barcode, raw); err != nil {
			slog.WarnContext(ctx, "lookup cache write failed", "barcode", barcode, "error", err)
		}
	}
	return &p, nil
}

func (c *Client) fetch(ctx context.Context, barcode string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(barcode), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return raw, nil
}
