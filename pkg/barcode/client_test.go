package barcode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ghuser/retailstock/pkg/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, AppCode: "secret"}, logger.Discard()), srv
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		wantErr  error
		wantName string
		wantCost string
	}{
		{
			name:     "string flag",
			body:     `{"showapi_res_code":0,"showapi_res_body":{"flag":"true","goodsName":"Cola 330ml","spec":"330ml","manuName":"Acme","price":"3.50"}}`,
			wantName: "Cola 330ml",
			wantCost: "3.5",
		},
		{
			name:     "bool flag without price",
			body:     `{"showapi_res_code":0,"showapi_res_body":{"flag":true,"goodsName":"Tea","price":""}}`,
			wantName: "Tea",
		},
		{
			name:    "unknown barcode",
			body:    `{"showapi_res_code":0,"showapi_res_body":{"flag":"false","remark":"no record"}}`,
			wantErr: ErrNotFound,
		},
		{
			name:    "api error",
			body:    `{"showapi_res_code":-1,"showapi_res_error":"quota exceeded"}`,
			wantErr: ErrUnavailable,
		},
		{
			name:    "upstream 500",
			status:  http.StatusInternalServerError,
			wantErr: ErrUnavailable,
		},
		{
			name:    "malformed body",
			body:    `<html>`,
			wantErr: ErrUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "APPCODE secret" {
					t.Errorf("unexpected Authorization header %q", got)
				}
				if got := r.URL.Query().Get("code"); got != "6901234567892" {
					t.Errorf("unexpected code %q", got)
				}
				if tt.status != 0 {
					w.WriteHeader(tt.status)
					return
				}
				_, _ = w.Write([]byte(tt.body))
			})

			s, err := c.Lookup(context.Background(), "6901234567892")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Name != tt.wantName || s.Barcode != "6901234567892" {
				t.Fatalf("unexpected suggestion: %+v", s)
			}
			if tt.wantCost == "" {
				if s.Price != nil {
					t.Fatalf("expected no price, got %s", s.Price)
				}
			} else if s.Price == nil || s.Price.String() != tt.wantCost {
				t.Fatalf("expected price %s, got %v", tt.wantCost, s.Price)
			}
		})
	}
}

func TestLookup_Disabled(t *testing.T) {
	c := NewClient(Config{}, logger.Discard())
	if _, err := c.Lookup(context.Background(), "1"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestLookup_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	for range 5 {
		if _, err := c.Lookup(context.Background(), "6901234567892"); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	}
	_, err := c.Lookup(context.Background(), "6901234567892")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from open circuit, got %v", err)
	}
	if calls.Load() != 5 {
		t.Fatalf("open circuit must not reach upstream: %d calls", calls.Load())
	}
}

func TestLookup_NotFoundDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"showapi_res_code":0,"showapi_res_body":{"flag":"false"}}`))
	})
	for range 8 {
		if _, err := c.Lookup(context.Background(), "6901234567892"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if calls.Load() != 8 {
		t.Fatalf("expected every lookup to reach upstream, got %d", calls.Load())
	}
}
