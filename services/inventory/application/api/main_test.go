package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/pkg/auth"
	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/services/inventory/application/api"
	"github.com/ghuser/retailstock/services/inventory/application/handlers"
	"github.com/ghuser/retailstock/services/inventory/application/services"
	"github.com/ghuser/retailstock/services/inventory/infrastructure/persistence/memory"
)

const (
	adminUser = "admin"
	adminPass = "admin-password"
)

// newServer runs the API over the memory store with a bootstrap admin.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := logger.Discard()
	svcs := services.NewServices(services.Deps{
		Store:    memory.New(),
		Settings: services.DefaultSettings(),
		Logger:   log,
	})
	if _, err := svcs.Auth.EnsureAdmin(context.Background(), adminUser, adminPass); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	r := chi.NewRouter()
	store := sessionStore(t)
	r.Route("/api", func(r chi.Router) {
		api.Mount(r, svcs, store, log)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

var (
	authKey = []byte("test-auth-key-must-be-32-bytes!!")
	encKey  = []byte("test-enc-key-must-be-32-bytes!!!")
)

// sessionStore uses the production redis store when REDIS_URL is set and a
// cookie store otherwise. Both must issue cookies a plain-http client sends
// back.
func sessionStore(t *testing.T) sessions.Store {
	t.Helper()
	if url := os.Getenv("REDIS_URL"); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			t.Fatalf("parse REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(opts)
		t.Cleanup(func() { _ = rdb.Close() })
		return auth.NewSessionStore(rdb, authKey, encKey, false, time.Hour)
	}
	store := sessions.NewCookieStore(authKey, encKey)
	store.Options.Secure = false
	store.Options.SameSite = http.SameSiteLaxMode
	store.Options.HttpOnly = true
	return store
}

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, srv *httptest.Server) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &client{t: t, base: srv.URL + "/api", http: &http.Client{Jar: jar}}
}

// do sends body as JSON and decodes a JSON response into out when non-nil.
func (c *client) do(method, path string, body, out any) int {
	c.t.Helper()
	var rd io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		c.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode %d response: %v", method, path, resp.StatusCode, err)
		}
	}
	return resp.StatusCode
}

// must fails the test unless the request returns want.
func (c *client) must(want int, method, path string, body, out any) {
	c.t.Helper()
	if got := c.do(method, path, body, out); got != want {
		c.t.Fatalf("%s %s: status %d, want %d", method, path, got, want)
	}
}

func (c *client) login(username, password string) {
	c.t.Helper()
	c.must(http.StatusOK, http.MethodPost, "/auth/login", handlers.LoginRequest{Username: username, Password: password}, nil)
}

func TestAuth(t *testing.T) {
	srv := newServer(t)

	anon := newClient(t, srv)
	if got := anon.do(http.MethodGet, "/products", nil, nil); got != http.StatusUnauthorized {
		t.Fatalf("anonymous request: status %d, want 401", got)
	}
	if got := anon.do(http.MethodPost, "/auth/login", handlers.LoginRequest{Username: adminUser, Password: "wrong-password"}, nil); got != http.StatusUnauthorized {
		t.Fatalf("bad password: status %d, want 401", got)
	}
	if got := anon.do(http.MethodPost, "/auth/login", map[string]string{"username": adminUser}, nil); got != http.StatusUnprocessableEntity {
		t.Fatalf("missing password: status %d, want 422", got)
	}

	admin := newClient(t, srv)
	var me handlers.OperatorResponse
	admin.must(http.StatusOK, http.MethodPost, "/auth/login", handlers.LoginRequest{Username: "ADMIN", Password: adminPass}, &me)
	if me.Role != "admin" || me.Username != adminUser {
		t.Fatalf("unexpected operator: %+v", me)
	}
	admin.must(http.StatusOK, http.MethodGet, "/auth/me", nil, &me)

	var till handlers.OperatorResponse
	admin.must(http.StatusCreated, http.MethodPost, "/operators", handlers.CreateOperatorRequest{
		Username: "till1", Password: "till-password", Role: "cashier",
	}, &till)
	if got := admin.do(http.MethodPost, "/operators", handlers.CreateOperatorRequest{
		Username: "till1", Password: "till-password", Role: "cashier",
	}, nil); got != http.StatusConflict {
		t.Fatalf("duplicate operator: status %d, want 409", got)
	}

	cashier := newClient(t, srv)
	cashier.login("till1", "till-password")
	if got := cashier.do(http.MethodPost, "/operators", handlers.CreateOperatorRequest{
		Username: "till2", Password: "till-password", Role: "cashier",
	}, nil); got != http.StatusForbidden {
		t.Fatalf("cashier creating operator: status %d, want 403", got)
	}

	admin.must(http.StatusNoContent, http.MethodPost, "/auth/logout", nil, nil)
	if got := admin.do(http.MethodGet, "/auth/me", nil, nil); got != http.StatusUnauthorized {
		t.Fatalf("after logout: status %d, want 401", got)
	}
}

func TestStockAndSales(t *testing.T) {
	srv := newServer(t)
	admin := newClient(t, srv)
	admin.login(adminUser, adminPass)

	var cat handlers.CategoryResponse
	admin.must(http.StatusCreated, http.MethodPost, "/categories", handlers.CreateCategoryRequest{Name: "Beverages"}, &cat)

	var p handlers.ProductResponse
	admin.must(http.StatusCreated, http.MethodPost, "/products", handlers.CreateProductRequest{
		Barcode:      "6901234567892",
		Name:         "Cola 330ml",
		CategoryID:   &cat.ID,
		Price:        decimal.RequireFromString("3.50"),
		InitialStock: 10,
	}, &p)

	var byCode handlers.ProductResponse
	admin.must(http.StatusOK, http.MethodGet, "/products/barcode/6901234567892", nil, &byCode)
	if byCode.ID != p.ID {
		t.Fatalf("barcode lookup returned %s, want %s", byCode.ID, p.ID)
	}

	var short map[string]any
	if got := admin.do(http.MethodPost, "/stock/movements", handlers.MovementRequest{
		ProductID: p.ID, Kind: "OUT", Quantity: 15,
	}, &short); got != http.StatusConflict {
		t.Fatalf("oversized OUT: status %d, want 409", got)
	}
	if short["available"] != float64(10) || short["requested"] != float64(15) {
		t.Fatalf("unexpected insufficient stock body: %v", short)
	}
	if got := admin.do(http.MethodPost, "/stock/movements", map[string]any{
		"product_id": p.ID, "kind": "MOVE", "quantity": 1,
	}, nil); got != http.StatusUnprocessableEntity {
		t.Fatalf("unknown kind: status %d, want 422", got)
	}
	for _, q := range []int64{math.MinInt64, math.MaxInt64, math.MaxInt32 + 1} {
		if got := admin.do(http.MethodPost, "/stock/movements", map[string]any{
			"product_id": p.ID, "kind": "IN", "quantity": q,
		}, nil); got != http.StatusUnprocessableEntity {
			t.Fatalf("IN of %d: status %d, want 422", q, got)
		}
	}
	var level handlers.StockLevelResponse
	admin.must(http.StatusOK, http.MethodGet, "/stock/"+p.ID.String(), nil, &level)
	if level.Quantity != 10 {
		t.Fatalf("rejected movements changed stock to %d", level.Quantity)
	}

	var suff handlers.SufficientResponse
	admin.must(http.StatusOK, http.MethodGet, "/stock/"+p.ID.String()+"/sufficient?quantity=10", nil, &suff)
	if !suff.Sufficient {
		t.Fatal("10 on hand should cover 10")
	}
	if got := admin.do(http.MethodGet, "/stock/not-a-uuid", nil, nil); got != http.StatusBadRequest {
		t.Fatalf("bad product id: status %d, want 400", got)
	}

	admin.must(http.StatusCreated, http.MethodPost, "/operators", handlers.CreateOperatorRequest{
		Username: "till1", Password: "till-password", Role: "cashier",
	}, nil)
	cashier := newClient(t, srv)
	cashier.login("till1", "till-password")

	if got := cashier.do(http.MethodPost, "/products", handlers.CreateProductRequest{
		Barcode: "1", Name: "x", Price: decimal.NewFromInt(1),
	}, nil); got != http.StatusForbidden {
		t.Fatalf("cashier creating product: status %d, want 403", got)
	}

	var sale handlers.SaleResponse
	cashier.must(http.StatusCreated, http.MethodPost, "/sales", handlers.CreateSaleRequest{}, &sale)
	var added handlers.AddSaleItemResponse
	cashier.must(http.StatusCreated, http.MethodPost, "/sales/"+sale.ID.String()+"/items", handlers.AddSaleItemRequest{
		ProductID: p.ID, Quantity: 2,
	}, &added)
	if len(added.Warnings) != 0 || !added.Sale.TotalAmount.Equal(decimal.RequireFromString("7")) {
		t.Fatalf("unexpected add result: %+v", added)
	}
	cashier.must(http.StatusOK, http.MethodPost, "/sales/"+sale.ID.String()+"/complete", handlers.CompleteSaleRequest{PaymentMethod: "cash"}, &sale)
	if sale.Status != "completed" || !sale.FinalAmount.Equal(decimal.RequireFromString("7")) {
		t.Fatalf("unexpected completed sale: %+v", sale)
	}
	if got := cashier.do(http.MethodPost, "/sales/"+sale.ID.String()+"/cancel", handlers.CancelSaleRequest{Reason: "oops"}, nil); got != http.StatusForbidden {
		t.Fatalf("cashier refunding: status %d, want 403", got)
	}

	level = handlers.StockLevelResponse{}
	admin.must(http.StatusOK, http.MethodGet, "/stock/"+p.ID.String(), nil, &level)
	if level.Quantity != 8 {
		t.Fatalf("quantity after sale = %d, want 8", level.Quantity)
	}

	var moves handlers.ListResponse[handlers.MovementResponse]
	admin.must(http.StatusOK, http.MethodGet, "/stock/movements?product_id="+p.ID.String(), nil, &moves)
	if moves.Total != 2 || moves.Items[0].Kind != "OUT" || moves.Items[0].ReferenceType != "sale" {
		t.Fatalf("unexpected ledger: %+v", moves)
	}

	var low []handlers.StockViewResponse
	admin.must(http.StatusOK, http.MethodPut, "/stock/"+p.ID.String()+"/warning-level", handlers.WarningLevelRequest{WarningLevel: 8}, nil)
	admin.must(http.StatusOK, http.MethodGet, "/stock/low", nil, &low)
	if len(low) != 1 || low[0].Barcode != "6901234567892" {
		t.Fatalf("unexpected low stock list: %+v", low)
	}
}

func TestInventoryCheckFlow(t *testing.T) {
	srv := newServer(t)
	admin := newClient(t, srv)
	admin.login(adminUser, adminPass)

	var p handlers.ProductResponse
	admin.must(http.StatusCreated, http.MethodPost, "/products", handlers.CreateProductRequest{
		Barcode: "6902", Name: "Tea", Price: decimal.NewFromInt(5), InitialStock: 12,
	}, &p)

	var check handlers.CheckDetailResponse
	admin.must(http.StatusCreated, http.MethodPost, "/inventory-checks", handlers.CreateCheckRequest{Name: "Month end"}, &check)
	if check.Status != "draft" || len(check.Items) != 1 || check.Items[0].SystemQuantity != 12 {
		t.Fatalf("unexpected check: %+v", check)
	}
	base := "/inventory-checks/" + check.ID.String()
	item := check.Items[0].ID.String()

	if got := admin.do(http.MethodPut, base+"/items/"+item, handlers.RecordCountRequest{ActualQuantity: 9}, nil); got != http.StatusUnprocessableEntity {
		t.Fatalf("counting a draft: status %d, want 422", got)
	}
	admin.must(http.StatusOK, http.MethodPost, base+"/start", nil, nil)
	if got := admin.do(http.MethodPost, base+"/complete", nil, nil); got != http.StatusUnprocessableEntity {
		t.Fatalf("completing with uncounted items: status %d, want 422", got)
	}

	var counted handlers.CheckItemResponse
	admin.must(http.StatusOK, http.MethodPut, base+"/items/"+item, handlers.RecordCountRequest{ActualQuantity: 9, Notes: "broken seal"}, &counted)
	if counted.Difference == nil || *counted.Difference != -3 {
		t.Fatalf("unexpected counted item: %+v", counted)
	}
	admin.must(http.StatusOK, http.MethodPost, base+"/complete", nil, nil)

	var summary map[string]any
	admin.must(http.StatusOK, http.MethodGet, base+"/summary", nil, &summary)
	if summary["shortage_items"] != float64(1) {
		t.Fatalf("unexpected summary: %v", summary)
	}

	var approved handlers.CheckResponse
	admin.must(http.StatusOK, http.MethodPost, base+"/approve", handlers.ApproveCheckRequest{AdjustStock: true}, &approved)
	if approved.Status != "approved" || !approved.Adjusted {
		t.Fatalf("unexpected approval: %+v", approved)
	}
	if got := admin.do(http.MethodPost, base+"/approve", handlers.ApproveCheckRequest{AdjustStock: true}, nil); got != http.StatusUnprocessableEntity {
		t.Fatalf("second approval: status %d, want 422", got)
	}

	var level handlers.StockLevelResponse
	admin.must(http.StatusOK, http.MethodGet, "/stock/"+p.ID.String(), nil, &level)
	if level.Quantity != 9 {
		t.Fatalf("quantity after approval = %d, want 9", level.Quantity)
	}

	resp, err := admin.http.Get(admin.base + base + "/export")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(resp.Header.Get("Content-Type"), "spreadsheetml") {
		t.Fatalf("export: status %d, content type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(body, []byte("PK")) {
		t.Fatal("export is not a zip container")
	}
}

func TestMembers(t *testing.T) {
	srv := newServer(t)
	admin := newClient(t, srv)
	admin.login(adminUser, adminPass)

	admin.must(http.StatusCreated, http.MethodPost, "/member-levels", handlers.CreateLevelRequest{
		Name: "Bronze", DiscountRate: decimal.NewFromInt(1), IsDefault: true,
	}, nil)
	if got := admin.do(http.MethodPost, "/member-levels", map[string]any{
		"name": "Broken", "discount_rate": "1.5",
	}, nil); got != http.StatusUnprocessableEntity {
		t.Fatalf("rate above 1: status %d, want 422", got)
	}

	var m handlers.MemberResponse
	admin.must(http.StatusCreated, http.MethodPost, "/members", handlers.CreateMemberRequest{Name: "Li Wei", Phone: "13800000031"}, &m)
	if m.MemberCode != "M13800000031" {
		t.Fatalf("member code = %q", m.MemberCode)
	}

	var rec handlers.RechargeResponse
	admin.must(http.StatusCreated, http.MethodPost, "/members/"+m.ID.String()+"/recharge", handlers.RechargeRequest{
		Amount: decimal.NewFromInt(100), PaymentMethod: "wechat",
	}, &rec)
	if !rec.Member.Balance.Equal(decimal.NewFromInt(100)) || !rec.ActualAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected recharge: %+v", rec)
	}
	if got := admin.do(http.MethodPost, "/members/"+m.ID.String()+"/points", handlers.AdjustPointsRequest{Delta: -1}, nil); got != http.StatusUnprocessableEntity {
		t.Fatalf("negative points: status %d, want 422", got)
	}

	var txs handlers.ListResponse[handlers.MemberTransactionResponse]
	admin.must(http.StatusOK, http.MethodGet, "/members/"+m.ID.String()+"/transactions", nil, &txs)
	if txs.Total != 1 || txs.Items[0].Type != "RECHARGE" {
		t.Fatalf("unexpected transactions: %+v", txs)
	}

	var found handlers.ListResponse[handlers.MemberResponse]
	admin.must(http.StatusOK, http.MethodGet, "/members?q=0031", nil, &found)
	if found.Total != 1 {
		t.Fatalf("search found %d members", found.Total)
	}
}

func TestOperationLogs(t *testing.T) {
	srv := newServer(t)
	admin := newClient(t, srv)
	admin.login(adminUser, adminPass)

	var p handlers.ProductResponse
	admin.must(http.StatusCreated, http.MethodPost, "/products", handlers.CreateProductRequest{
		Barcode: "6903", Name: "Green tea", Price: decimal.NewFromInt(6), InitialStock: 4,
	}, &p)
	admin.must(http.StatusCreated, http.MethodPost, "/stock/movements", handlers.MovementRequest{
		ProductID: p.ID, Kind: "IN", Quantity: 6, Note: "weekly delivery",
	}, nil)
	admin.must(http.StatusCreated, http.MethodPost, "/operators", handlers.CreateOperatorRequest{
		Username: "till1", Password: "till-password", Role: "cashier",
	}, nil)

	var trail handlers.ListResponse[handlers.OperationLogResponse]
	admin.must(http.StatusOK, http.MethodGet, "/operation-logs?related_id="+p.ID.String(), nil, &trail)
	if trail.Total != 2 || trail.Items[0].Action != "stock.in" || trail.Items[1].Action != "product.created" {
		t.Fatalf("unexpected product trail: %+v", trail)
	}
	if trail.Items[0].OperatorName != adminUser || trail.Items[0].Type != "INVENTORY" {
		t.Fatalf("unexpected entry: %+v", trail.Items[0])
	}

	var ops handlers.ListResponse[handlers.OperationLogResponse]
	admin.must(http.StatusOK, http.MethodGet, "/operation-logs?operation_type=OPERATOR&q=till1", nil, &ops)
	if ops.Total != 1 || ops.Items[0].Action != "operator.created" {
		t.Fatalf("unexpected operator trail: %+v", ops)
	}

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"bad operator id", "?operator_id=nope", http.StatusBadRequest},
		{"bad since", "?since=yesterday", http.StatusBadRequest},
		{"unknown type", "?operation_type=OTHER", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := admin.do(http.MethodGet, "/operation-logs"+tt.query, nil, nil); got != tt.want {
				t.Errorf("status %d, want %d", got, tt.want)
			}
		})
	}

	cashier := newClient(t, srv)
	cashier.login("till1", "till-password")
	if got := cashier.do(http.MethodGet, "/operation-logs", nil, nil); got != http.StatusForbidden {
		t.Fatalf("cashier reading logs: status %d, want 403", got)
	}
}
