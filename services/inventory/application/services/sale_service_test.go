package services_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ghuser/retailstock/services/inventory/application/services"
	"github.com/ghuser/retailstock/services/inventory/domain"
	"github.com/ghuser/retailstock/services/inventory/domain/events"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
)

// tiers installs Bronze (default, no discount), Silver (10% off from 100
// points) and Gold (20% off from 500 points).
func (f *fixture) tiers() map[string]*models.MemberLevel {
	f.t.Helper()
	out := map[string]*models.MemberLevel{}
	for _, req := range []services.LevelRequest{
		{Name: "Bronze", DiscountRate: dec("1"), IsDefault: true},
		{Name: "Silver", DiscountRate: dec("0.9"), PointsThreshold: 100, Priority: 1},
		{Name: "Gold", DiscountRate: dec("0.8"), PointsThreshold: 500, Priority: 2},
	} {
		l, err := f.svc.Members.CreateLevel(f.ctx, f.admin, req)
		if err != nil {
			f.t.Fatalf("CreateLevel(%s): %v", req.Name, err)
		}
		out[req.Name] = l
	}
	return out
}

func (f *fixture) member(phone string, balance string) *models.Member {
	f.t.Helper()
	m, err := f.svc.Members.Create(f.ctx, f.admin, services.MemberRequest{Name: "Member " + phone, Phone: phone})
	if err != nil {
		f.t.Fatalf("Create member: %v", err)
	}
	if balance != "" {
		if m, _, err = f.svc.Members.Recharge(f.ctx, f.admin, m.ID, services.RechargeRequest{
			Amount: dec(balance), PaymentMethod: models.PayCash,
		}); err != nil {
			f.t.Fatalf("Recharge: %v", err)
		}
	}
	return m
}

// sell opens a sale and adds qty of each product.
func (f *fixture) sell(cashier models.Actor, memberID *uuid.UUID, lines map[*models.Product]int) *models.Sale {
	f.t.Helper()
	sale, err := f.svc.Sales.Create(f.ctx, cashier, memberID, "")
	if err != nil {
		f.t.Fatalf("Create sale: %v", err)
	}
	for p, qty := range lines {
		if _, err := f.svc.Sales.AddItem(f.ctx, cashier, sale.ID, p.ID, qty, nil); err != nil {
			f.t.Fatalf("AddItem(%s): %v", p.Barcode, err)
		}
	}
	got, err := f.svc.Sales.Get(f.ctx, sale.ID)
	if err != nil {
		f.t.Fatal(err)
	}
	return got
}

func transactionTypes(t *testing.T, f *fixture, memberID uuid.UUID) []models.MemberTransactionType {
	t.Helper()
	txs, _, err := f.svc.Members.ListTransactions(f.ctx, memberID, repositories.QueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	out := make([]models.MemberTransactionType, len(txs))
	for i, tx := range txs {
		out[i] = tx.Type
	}
	return out
}

func TestSale_AddAndRemoveItems(t *testing.T) {
	f := newFixture(t)
	cashier := actor(models.RoleCashier)
	a := f.product("8001", "2.50", "1.00", 10)
	b := f.product("8002", "4.00", "2.00", 10)

	sale, err := f.svc.Sales.Create(f.ctx, cashier, nil, "walk-in")
	if err != nil {
		t.Fatal(err)
	}
	first, err := f.svc.Sales.AddItem(f.ctx, cashier, sale.ID, a.ID, 3, nil)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if !first.Item.Subtotal.Equal(dec("7.50")) || len(first.Warnings) != 0 {
		t.Errorf("item = %+v, warnings %v", first.Item, first.Warnings)
	}
	res, err := f.svc.Sales.AddItem(f.ctx, cashier, sale.ID, b.ID, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Sale.TotalAmount.Equal(dec("15.50")) || len(res.Sale.Items) != 2 {
		t.Errorf("total = %s with %d items", res.Sale.TotalAmount, len(res.Sale.Items))
	}
	if f.quantity(a.ID) != 7 || f.quantity(b.ID) != 8 {
		t.Errorf("stock = %d/%d, want 7/8", f.quantity(a.ID), f.quantity(b.ID))
	}
	out := f.movements(a.ID)
	if last := out[len(out)-1]; last.Kind != models.MovementOut || last.ReferenceType != models.RefSale || *last.ReferenceID != sale.ID {
		t.Errorf("sale movement = %+v", last)
	}

	updated, err := f.svc.Sales.RemoveItem(f.ctx, cashier, sale.ID, first.Item.ID)
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if !updated.TotalAmount.Equal(dec("8")) || len(updated.Items) != 1 {
		t.Errorf("after remove total = %s with %d items", updated.TotalAmount, len(updated.Items))
	}
	if f.quantity(a.ID) != 10 {
		t.Errorf("stock of A = %d, want 10", f.quantity(a.ID))
	}
	back := f.movements(a.ID)
	if last := back[len(back)-1]; last.Kind != models.MovementIn || last.ReferenceType != models.RefSaleItemRemove {
		t.Errorf("return movement = %+v", last)
	}
	if _, err := f.svc.Sales.RemoveItem(f.ctx, cashier, sale.ID, first.Item.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second remove: got %v", err)
	}
}

func TestSale_AddItemFailures(t *testing.T) {
	f := newFixture(t)
	cashier := actor(models.RoleCashier)
	p := f.product("8003", "10.00", "5.00", 20)
	retired := f.product("8004", "1.00", "1.00", 5)
	if _, err := f.svc.Catalog.SetProductActive(f.ctx, f.admin, retired.ID, false); err != nil {
		t.Fatal(err)
	}
	sale, err := f.svc.Sales.Create(f.ctx, cashier, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	negative := dec("-1")

	tests := []struct {
		name      string
		actor     models.Actor
		productID uuid.UUID
		qty       int
		price     *decimal.Decimal
		want      error
	}{
		{"insufficient stock", cashier, p.ID, 30, nil, domain.ErrInsufficientStock},
		{"zero quantity", cashier, p.ID, 0, nil, domain.ErrValidation},
		{"negative price", cashier, p.ID, 1, &negative, domain.ErrValidation},
		{"inactive product", cashier, retired.ID, 1, nil, domain.ErrValidation},
		{"unknown product", cashier, uuid.New(), 1, nil, domain.ErrNotFound},
		{"stock keeper cannot sell", actor(models.RoleStockKeeper), p.ID, 1, nil, domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Sales.AddItem(f.ctx, tt.actor, sale.ID, tt.productID, tt.qty, tt.price)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	got, err := f.svc.Sales.Get(f.ctx, sale.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Items) != 0 || !got.TotalAmount.IsZero() {
		t.Errorf("failed adds must leave the sale empty: %+v", got)
	}
	if f.quantity(p.ID) != 20 || len(f.movements(p.ID)) != 1 {
		t.Error("failed adds must not touch stock")
	}
}

func TestSale_PriceWarnings(t *testing.T) {
	f := newFixture(t)
	cashier := actor(models.RoleCashier)
	p := f.product("8005", "10.00", "5.00", 20)
	sale, err := f.svc.Sales.Create(f.ctx, cashier, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		price string
		want  int
	}{
		{"10.00", 0},
		{"5.00", 0},
		{"4.99", 1},
		{"20.00", 0},
		{"25.00", 1},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			price := dec(tt.price)
			res, err := f.svc.Sales.AddItem(f.ctx, cashier, sale.ID, p.ID, 1, &price)
			if err != nil {
				t.Fatalf("AddItem: %v", err)
			}
			if len(res.Warnings) != tt.want {
				t.Errorf("warnings = %v, want %d", res.Warnings, tt.want)
			}
			if !res.Item.ActualPrice.Equal(price) || !res.Item.Price.Equal(dec("10")) {
				t.Errorf("item prices = %s/%s", res.Item.Price, res.Item.ActualPrice)
			}
		})
	}
}

func TestSale_MemberLifecycle(t *testing.T) {
	f := newFixture(t)
	levels := f.tiers()
	cashier := actor(models.RoleCashier)
	p := f.product("8006", "10.00", "6.00", 20)
	m := f.member("13800000001", "")
	if m.LevelID != levels["Bronze"].ID {
		t.Fatalf("new member level = %s, want Bronze", m.LevelID)
	}

	first := f.sell(cashier, &m.ID, map[*models.Product]int{p: 12})
	done, err := f.svc.Sales.Complete(f.ctx, cashier, first.ID, services.CompleteRequest{PaymentMethod: models.PayCash})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !done.FinalAmount.Equal(dec("120")) || !done.DiscountAmount.IsZero() || done.PointsEarned != 120 {
		t.Errorf("first sale = %+v", done)
	}
	m, err = f.svc.Members.Get(f.ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if m.Points != 120 || m.PurchaseCount != 1 || !m.TotalSpend.Equal(dec("120")) {
		t.Errorf("member after first sale = %+v", m)
	}
	if m.LevelID != levels["Silver"].ID {
		t.Errorf("member should be promoted to Silver")
	}
	types := transactionTypes(t, f, m.ID)
	want := []models.MemberTransactionType{models.TxLevelUpgrade, models.TxPointsEarn, models.TxPurchase}
	if len(types) != len(want) {
		t.Fatalf("transactions = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("transaction %d = %s, want %s", i, types[i], want[i])
		}
	}

	if _, _, err := f.svc.Members.Recharge(f.ctx, cashier, m.ID, services.RechargeRequest{
		Amount: dec("50"), PaymentMethod: models.PayWechat,
	}); err != nil {
		t.Fatal(err)
	}
	second := f.sell(cashier, &m.ID, map[*models.Product]int{p: 2})
	done, err = f.svc.Sales.Complete(f.ctx, cashier, second.ID, services.CompleteRequest{PaymentMethod: models.PayBalance})
	if err != nil {
		t.Fatalf("Complete with balance: %v", err)
	}
	if !done.DiscountAmount.Equal(dec("2")) || !done.FinalAmount.Equal(dec("18")) || !done.BalancePaid.Equal(dec("18")) {
		t.Errorf("second sale = %+v", done)
	}
	m, _ = f.svc.Members.Get(f.ctx, m.ID)
	if !m.Balance.Equal(dec("32")) || m.Points != 138 {
		t.Errorf("member after balance sale: balance %s points %d", m.Balance, m.Points)
	}
	if f.quantity(p.ID) != 6 {
		t.Errorf("stock = %d, want 6", f.quantity(p.ID))
	}

	if _, err := f.svc.Sales.Cancel(f.ctx, cashier, done.ID, "customer changed mind"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("cashier refund: got %v", err)
	}
	cancelled, err := f.svc.Sales.Cancel(f.ctx, actor(models.RoleManager), done.ID, "customer changed mind")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != models.SaleCancelled || cancelled.Remark != "cancelled: customer changed mind" {
		t.Errorf("cancelled sale = %+v", cancelled)
	}
	m, _ = f.svc.Members.Get(f.ctx, m.ID)
	if !m.Balance.Equal(dec("50")) || m.Points != 120 || m.PurchaseCount != 1 || !m.TotalSpend.Equal(dec("120")) {
		t.Errorf("member after refund = %+v", m)
	}
	if m.LevelID != levels["Silver"].ID {
		t.Error("refund must not demote the member")
	}
	if f.quantity(p.ID) != 8 {
		t.Errorf("stock after cancel = %d, want 8", f.quantity(p.ID))
	}
	mv := f.movements(p.ID)
	if last := mv[len(mv)-1]; last.ReferenceType != models.RefSaleCancel || last.Quantity != 2 {
		t.Errorf("cancel movement = %+v", last)
	}
	if got := transactionTypes(t, f, m.ID)[0]; got != models.TxRefund {
		t.Errorf("latest transaction = %s, want REFUND", got)
	}

	topics := f.outboxTopics()
	if count(topics, events.TopicSaleCompleted) != 2 || count(topics, events.TopicSaleCancelled) != 1 {
		t.Errorf("outbox topics = %v", topics)
	}
}

func TestSale_CompletePayments(t *testing.T) {
	tests := []struct {
		name     string
		member   bool
		balance  string
		req      services.CompleteRequest
		wantErr  error
		wantPaid string
	}{
		{name: "cash without member", req: services.CompleteRequest{PaymentMethod: models.PayCash}, wantPaid: "0"},
		{name: "balance without member", req: services.CompleteRequest{PaymentMethod: models.PayBalance}, wantErr: domain.ErrValidation},
		{name: "balance too low", member: true, balance: "10", req: services.CompleteRequest{PaymentMethod: models.PayBalance}, wantErr: domain.ErrInsufficientBalance},
		{name: "mixed", member: true, balance: "50", req: services.CompleteRequest{PaymentMethod: models.PayMixed, BalanceAmount: ptr(dec("20"))}, wantPaid: "20"},
		{name: "mixed over total", member: true, balance: "50", req: services.CompleteRequest{PaymentMethod: models.PayMixed, BalanceAmount: ptr(dec("40"))}, wantErr: domain.ErrValidation},
		{name: "mixed without amount", member: true, balance: "50", req: services.CompleteRequest{PaymentMethod: models.PayMixed}, wantErr: domain.ErrValidation},
		{name: "unknown method", req: services.CompleteRequest{PaymentMethod: "barter"}, wantErr: domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.tiers()
			cashier := actor(models.RoleCashier)
			p := f.product("8007", "10.00", "5.00", 10)
			var memberID *uuid.UUID
			if tt.member {
				m := f.member("13800000002", tt.balance)
				memberID = &m.ID
			}
			sale := f.sell(cashier, memberID, map[*models.Product]int{p: 3})

			done, err := f.svc.Sales.Complete(f.ctx, cashier, sale.ID, tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got %v, want %v", err, tt.wantErr)
				}
				got, err := f.svc.Sales.Get(f.ctx, sale.ID)
				if err != nil {
					t.Fatal(err)
				}
				if got.Status != models.SaleOpen {
					t.Errorf("failed completion left status %s", got.Status)
				}
				if memberID != nil {
					m, _ := f.svc.Members.Get(f.ctx, *memberID)
					if !m.Balance.Equal(dec(tt.balance)) || m.Points != 0 {
						t.Errorf("failed completion touched the member: %+v", m)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Complete: %v", err)
			}
			if done.Status != models.SaleCompleted || !done.BalancePaid.Equal(dec(tt.wantPaid)) || done.PointsEarned != 30 {
				t.Errorf("sale = %+v", done)
			}
			if memberID != nil {
				m, _ := f.svc.Members.Get(f.ctx, *memberID)
				want := dec(tt.balance).Sub(dec(tt.wantPaid))
				if !m.Balance.Equal(want) {
					t.Errorf("balance = %s, want %s", m.Balance, want)
				}
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestSale_StateRules(t *testing.T) {
	f := newFixture(t)
	f.tiers()
	cashier := actor(models.RoleCashier)
	p := f.product("8008", "3.00", "1.00", 10)

	empty, err := f.svc.Sales.Create(f.ctx, cashier, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Sales.Complete(f.ctx, cashier, empty.ID, services.CompleteRequest{PaymentMethod: models.PayCash}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty sale: got %v", err)
	}

	open := f.sell(cashier, nil, map[*models.Product]int{p: 4})
	cancelled, err := f.svc.Sales.Cancel(f.ctx, cashier, open.ID, "")
	if err != nil {
		t.Fatalf("cashier may void an open sale: %v", err)
	}
	if cancelled.Status != models.SaleCancelled || f.quantity(p.ID) != 10 {
		t.Errorf("void: status %s, stock %d", cancelled.Status, f.quantity(p.ID))
	}
	if _, err := f.svc.Sales.Cancel(f.ctx, f.admin, open.ID, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("double cancel: got %v", err)
	}
	if _, err := f.svc.Sales.AddItem(f.ctx, cashier, open.ID, p.ID, 1, nil); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("add to cancelled sale: got %v", err)
	}
	if f.quantity(p.ID) != 10 {
		t.Error("rejected add must not take stock")
	}

	m := f.member("13800000003", "")
	inactive := false
	if _, err := f.svc.Members.Update(f.ctx, f.admin, m.ID, services.MemberUpdate{IsActive: &inactive}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Sales.Create(f.ctx, cashier, &m.ID, ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("inactive member: got %v", err)
	}
	missing := uuid.New()
	if _, err := f.svc.Sales.Create(f.ctx, cashier, &missing, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown member: got %v", err)
	}
}

func TestSale_List(t *testing.T) {
	f := newFixture(t)
	cashier := actor(models.RoleCashier)
	p := f.product("8009", "1.00", "1.00", 10)
	sale := f.sell(cashier, nil, map[*models.Product]int{p: 1})
	if _, err := f.svc.Sales.Complete(f.ctx, cashier, sale.ID, services.CompleteRequest{PaymentMethod: models.PayCard}); err != nil {
		t.Fatal(err)
	}
	f.sell(cashier, nil, map[*models.Product]int{p: 1})

	sales, total, err := f.svc.Sales.List(f.ctx, repositories.SaleFilter{Status: models.SaleCompleted})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || sales[0].ID != sale.ID {
		t.Errorf("completed sales = %d", total)
	}
	if _, _, err := f.svc.Sales.List(f.ctx, repositories.SaleFilter{Status: "refunded"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown status: got %v", err)
	}
	now := time.Now()
	earlier := now.Add(-time.Hour)
	if _, _, err := f.svc.Sales.List(f.ctx, repositories.SaleFilter{Since: &now, Until: &earlier}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("inverted range: got %v", err)
	}
}
