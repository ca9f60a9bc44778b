package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getsentry/sentry-go"

	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/services/inventory/domain"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantEvents int
		wantLog    bool
	}{
		{"internal failure is logged and reported", errors.New("connection reset"), http.StatusInternalServerError, 1, true},
		{"wrapped internal failure", fmt.Errorf("apply movement: %w", errors.New("deadlock")), http.StatusInternalServerError, 1, true},
		{"not found stays local", domain.ErrNotFound, http.StatusNotFound, 0, false},
		{"validation stays local", domain.Invalid("quantity must be positive"), http.StatusUnprocessableEntity, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &sentry.MockTransport{}
			client, err := sentry.NewClient(sentry.ClientOptions{Transport: transport})
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			hub := sentry.NewHub(client, sentry.NewScope())

			var buf bytes.Buffer
			log := logger.NewWithWriter(&buf, "debug")
			r := httptest.NewRequest(http.MethodPost, "/api/stock/movements", http.NoBody)
			r = r.WithContext(sentry.SetHubOnContext(r.Context(), hub))
			w := httptest.NewRecorder()

			writeError(w, r, log, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", w.Code, tt.wantStatus)
			}
			if n := len(transport.Events()); n != tt.wantEvents {
				t.Errorf("sentry events: got %d, want %d", n, tt.wantEvents)
			}
			if logged := strings.Contains(buf.String(), "request failed"); logged != tt.wantLog {
				t.Errorf("logged: got %v, want %v", logged, tt.wantLog)
			}
			if tt.wantStatus == http.StatusInternalServerError && strings.Contains(w.Body.String(), tt.err.Error()) {
				t.Errorf("internal error leaked to the client: %s", w.Body.String())
			}
		})
	}
}
