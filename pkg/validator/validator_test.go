package validator_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	pkgvalidator "github.com/ghuser/retailstock/pkg/validator"
)

type productReq struct {
	CategoryID string           `json:"category_id" validate:"omitempty,uuid"`
	Barcode    string           `json:"barcode"     validate:"required,min=1,max=64"`
	Price      decimal.Decimal  `json:"price"       validate:"dec_gte0"`
	Cost       *decimal.Decimal `json:"cost"        validate:"omitempty,dec_gte0"`
	Kind       string           `json:"kind"        validate:"omitempty,oneof=IN OUT ADJUST"`
}

func TestValidate(t *testing.T) {
	negative := decimal.NewFromInt(-1)
	tests := []struct {
		name      string
		req       productReq
		wantField string
		wantMsg   string
	}{
		{name: "valid", req: productReq{Barcode: "6901234567892", Price: decimal.RequireFromString("3.50")}},
		{name: "missing barcode", req: productReq{Price: decimal.Zero}, wantField: "barcode", wantMsg: "This field is required"},
		{name: "barcode too long", req: productReq{Barcode: strings.Repeat("9", 65)}, wantField: "barcode", wantMsg: "Maximum length is 64"},
		{name: "bad category", req: productReq{Barcode: "1", CategoryID: "nope"}, wantField: "category_id", wantMsg: "Must be a valid UUID"},
		{name: "negative price", req: productReq{Barcode: "1", Price: negative}, wantField: "price", wantMsg: "Must be a non-negative amount"},
		{name: "negative optional cost", req: productReq{Barcode: "1", Cost: &negative}, wantField: "cost", wantMsg: "Must be a non-negative amount"},
		{name: "unknown kind", req: productReq{Barcode: "1", Kind: "MOVE"}, wantField: "kind", wantMsg: "Must be one of: IN OUT ADJUST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pkgvalidator.Validate(&tt.req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			m := pkgvalidator.FormatValidationErrors(err)
			if m[tt.wantField] != tt.wantMsg {
				t.Fatalf("%s: got %q, want %q (all: %v)", tt.wantField, m[tt.wantField], tt.wantMsg, m)
			}
		})
	}
}

type rateReq struct {
	Rate decimal.Decimal `json:"rate" validate:"dec_gte0,dec_lte1"`
	Amt  decimal.Decimal `json:"amt"  validate:"dec_gt0"`
}

func TestValidate_DecimalBounds(t *testing.T) {
	ok := rateReq{Rate: decimal.RequireFromString("0.95"), Amt: decimal.RequireFromString("0.01")}
	if err := pkgvalidator.Validate(&ok); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	bad := rateReq{Rate: decimal.RequireFromString("1.2"), Amt: decimal.Zero}
	m := pkgvalidator.FormatValidationErrors(pkgvalidator.Validate(&bad))
	if m["rate"] != "Must not exceed 1" {
		t.Errorf("rate: got %q", m["rate"])
	}
	if m["amt"] != "Must be a positive amount" {
		t.Errorf("amt: got %q", m["amt"])
	}
}

func TestFormatValidationErrors_nonValidationError(t *testing.T) {
	m := pkgvalidator.FormatValidationErrors(http.ErrNoCookie)
	if len(m) != 0 {
		t.Errorf("expected empty map for non-validation error, got %v", m)
	}
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantOK   bool
		wantCode int
		wantBody string
	}{
		{name: "valid with string price", body: `{"barcode":"6901234567892","price":"12.50"}`, wantOK: true},
		{name: "valid with numeric price", body: `{"barcode":"6901234567892","price":12.5}`, wantOK: true},
		{name: "malformed json", body: `{bad json`, wantCode: http.StatusBadRequest, wantBody: "Invalid JSON"},
		{name: "missing barcode", body: `{"price":"1"}`, wantCode: http.StatusUnprocessableEntity, wantBody: "Validation failed"},
		{name: "negative price", body: `{"barcode":"1","price":"-0.01"}`, wantCode: http.StatusUnprocessableEntity, wantBody: "non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			req, ok := pkgvalidator.ValidateRequest[productReq](w, r)
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v (body %s)", ok, tt.wantOK, w.Body.String())
			}
			if tt.wantOK {
				if !req.Price.Equal(decimal.RequireFromString("12.5")) {
					t.Errorf("unexpected price %s", req.Price)
				}
				return
			}
			if w.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("expected %q in body, got: %s", tt.wantBody, w.Body.String())
			}
		})
	}
}
