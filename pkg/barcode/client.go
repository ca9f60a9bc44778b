// Package barcode looks up product details for an unknown barcode from an
// external catalogue API so operators can pre-fill a new product. Calls go
// through a circuit breaker; the lookup is advisory and never blocks
// product creation.
package barcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ghuser/retailstock/pkg/logger"
)

var (
	// ErrNotFound means the upstream catalogue has no record for the code.
	ErrNotFound = errors.New("barcode: not found")

	// ErrDisabled means no API endpoint is configured.
	ErrDisabled = errors.New("barcode: lookup disabled")

	// ErrUnavailable wraps upstream failures and an open circuit.
	ErrUnavailable = errors.New("barcode: upstream unavailable")
)

const maxResponseBytes = 1 << 20

// Suggestion is the upstream description of a barcode.
type Suggestion struct {
	Barcode       string           `json:"barcode"`
	Name          string           `json:"name"`
	Specification string           `json:"specification,omitempty"`
	Manufacturer  string           `json:"manufacturer,omitempty"`
	Trademark     string           `json:"trademark,omitempty"`
	Category      string           `json:"category,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	ImageURL      string           `json:"image_url,omitempty"`
	Note          string           `json:"note,omitempty"`
}

// Config configures the client.
type Config struct {
	BaseURL string
	AppCode string
	Timeout time.Duration
}

// Client calls the barcode API.
type Client struct {
	baseURL string
	appCode string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     logger.Logger
}

// NewClient returns a client; an empty BaseURL yields a client whose
// Lookup always returns ErrDisabled.
func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		appCode: cfg.AppCode,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "barcode-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Unknown codes are a normal answer, not an upstream failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("barcode: circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// envelope is the upstream response body.
type envelope struct {
	Code  int    `json:"showapi_res_code"`
	Error string `json:"showapi_res_error"`
	Body  struct {
		Flag      flag   `json:"flag"`
		Remark    string `json:"remark"`
		GoodsName string `json:"goodsName"`
		Spec      string `json:"spec"`
		ManuName  string `json:"manuName"`
		Price     string `json:"price"`
		GoodsType string `json:"goodsType"`
		Img       string `json:"img"`
		Note      string `json:"note"`
		Trademark string `json:"trademark"`
	} `json:"showapi_res_body"`
}

// flag accepts both true and "true".
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	*f = flag(strings.EqualFold(s, "true"))
	return nil
}

// Lookup fetches the upstream description of code.
func (c *Client) Lookup(ctx context.Context, code string) (*Suggestion, error) {
	if c.baseURL == "" {
		return nil, ErrDisabled
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotFound
	}
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, code)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return res.(*Suggestion), nil
}

func (c *Client) fetch(ctx context.Context, code string) (*Suggestion, error) {
	u := c.baseURL + "?" + url.Values{"code": {code}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("barcode: build request: %w", err)
	}
	req.Header.Set("Authorization", "APPCODE "+c.appCode)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("%w: api code %d: %s", ErrUnavailable, env.Code, env.Error)
	}
	if !bool(env.Body.Flag) || env.Body.GoodsName == "" {
		c.log.DebugContext(ctx, "barcode: no upstream record", "barcode", code, "remark", env.Body.Remark)
		return nil, ErrNotFound
	}

	s := &Suggestion{
		Barcode:       code,
		Name:          env.Body.GoodsName,
		Specification: env.Body.Spec,
		Manufacturer:  env.Body.ManuName,
		Trademark:     env.Body.Trademark,
		Category:      env.Body.GoodsType,
		ImageURL:      env.Body.Img,
		Note:          env.Body.Note,
	}
	if p, err := decimal.NewFromString(strings.TrimSpace(env.Body.Price)); err == nil && !p.IsNegative() {
		s.Price = &p
	}
	return s, nil
}
