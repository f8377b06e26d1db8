package record

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/hitoshi/pumpbook/internal/metrics"
	"github.com/hitoshi/pumpbook/internal/model"
	"github.com/hitoshi/pumpbook/internal/repository/memory"
)

// --- ヘルパー ---

type countingRecorder struct {
	metrics.Nop
	created map[string]int
}

func (r *countingRecorder) RecordRecordCreated(kind string) {
	if r.created == nil {
		r.created = make(map[string]int)
	}
	r.created[kind]++
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *countingRecorder) {
	store := memory.NewStore(nil)
	rec := &countingRecorder{}
	svc := NewService(Repositories{
		FuelSales:      store.FuelSales,
		CreditSales:    store.CreditSales,
		IncomeExpenses: store.IncomeExpenses,
		FuelRates:      store.FuelRates,
	}, nil, rec)
	svc.now = func() time.Time { return fixedNow }
	return svc, rec
}

func str(s string) *string   { return &s }
func num(f float64) *float64 { return &f }

func validFuelSale() FuelSaleInput {
	return FuelSaleInput{
		Date:           str("2024-06-01"),
		FuelType:       str("petrol"),
		NozzleID:       str("N1"),
		OpeningReading: num(100),
		ClosingReading: num(150),
		Liters:         num(50),
		Rate:           num(102.5),
		Amount:         num(5125),
	}
}

func assertValidationField(t *testing.T, err error, field string) {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Field != field {
		t.Errorf("Field = %q, want %q (reason: %s)", verr.Field, field, verr.Reason)
	}
}

// --- テスト ---

func TestCreateFuelSale_AssignsServerFields(t *testing.T) {
	svc, rec := newTestService()

	sale, err := svc.CreateFuelSale(context.Background(), "u1", validFuelSale())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sale.ID == "" {
		t.Error("ID should be assigned")
	}
	if sale.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", sale.UserID)
	}
	if !sale.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v, want %v", sale.CreatedAt, fixedNow)
	}
	if rec.created[string(model.RecordKindFuelSale)] != 1 {
		t.Errorf("created metric = %v", rec.created)
	}

	list, err := svc.ListFuelSales(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].ID != sale.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestCreateFuelSale_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(in *FuelSaleInput)
		field  string
	}{
		{"date missing", func(in *FuelSaleInput) { in.Date = nil }, "date"},
		{"date malformed", func(in *FuelSaleInput) { in.Date = str("01/06/2024") }, "date"},
		{"date impossible", func(in *FuelSaleInput) { in.Date = str("2024-02-30") }, "date"},
		{"fuel_type missing", func(in *FuelSaleInput) { in.FuelType = nil }, "fuel_type"},
		{"fuel_type blank", func(in *FuelSaleInput) { in.FuelType = str("   ") }, "fuel_type"},
		{"fuel_type markup only", func(in *FuelSaleInput) { in.FuelType = str("<b></b>") }, "fuel_type"},
		{"nozzle missing", func(in *FuelSaleInput) { in.NozzleID = nil }, "nozzle_id"},
		{"opening negative", func(in *FuelSaleInput) { in.OpeningReading = num(-1) }, "opening_reading"},
		{"closing NaN", func(in *FuelSaleInput) { in.ClosingReading = num(math.NaN()) }, "closing_reading"},
		{"liters infinite", func(in *FuelSaleInput) { in.Liters = num(math.Inf(1)) }, "liters"},
		{"rate missing", func(in *FuelSaleInput) { in.Rate = nil }, "rate"},
		{"amount missing", func(in *FuelSaleInput) { in.Amount = nil }, "amount"},
		{"closing below opening", func(in *FuelSaleInput) { in.ClosingReading = num(99) }, "closing_reading"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, rec := newTestService()
			in := validFuelSale()
			tt.modify(&in)

			_, err := svc.CreateFuelSale(context.Background(), "u1", in)
			assertValidationField(t, err, tt.field)

			list, _ := svc.ListFuelSales(context.Background(), "u1", "")
			if len(list) != 0 {
				t.Errorf("invalid record should not be stored: %+v", list)
			}
			if len(rec.created) != 0 {
				t.Errorf("metric should not be recorded: %v", rec.created)
			}
		})
	}
}

func TestCreateFuelSale_ZeroValuesAllowed(t *testing.T) {
	svc, _ := newTestService()
	in := validFuelSale()
	in.OpeningReading = num(0)
	in.ClosingReading = num(0)
	in.Liters = num(0)
	in.Amount = num(0)

	if _, err := svc.CreateFuelSale(context.Background(), "u1", in); err != nil {
		t.Errorf("zero readings should be accepted: %v", err)
	}
}

func TestCreateFuelSale_SanitizesText(t *testing.T) {
	svc, _ := newTestService()
	in := validFuelSale()
	in.FuelType = str("  <script>alert(1)</script>diesel ")

	sale, err := svc.CreateFuelSale(context.Background(), "u1", in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sale.FuelType != "diesel" {
		t.Errorf("FuelType = %q, want diesel", sale.FuelType)
	}
}

// 記号を含むプレーンテキストは文字参照に変換されずに保存されること
func TestCreateCreditSale_PlainTextRoundTrips(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateCreditSale(ctx, "u1", CreditSaleInput{
		Date:         str("2024-06-01"),
		CustomerName: str("O'Brien & Sons"),
		Amount:       num(800),
		Description:  str("diesel < petrol"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sales, err := svc.ListCreditSales(ctx, "u1", "")
	if err != nil {
		t.Fatalf("ListCreditSales: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("len = %d, want 1", len(sales))
	}
	if sales[0].CustomerName != "O'Brien & Sons" {
		t.Errorf("CustomerName = %q, want %q", sales[0].CustomerName, "O'Brien & Sons")
	}
	if sales[0].Description == nil || *sales[0].Description != "diesel < petrol" {
		t.Errorf("Description = %v, want %q", sales[0].Description, "diesel < petrol")
	}
}

func TestCreateCreditSale(t *testing.T) {
	svc, rec := newTestService()

	sale, err := svc.CreateCreditSale(context.Background(), "u1", CreditSaleInput{
		Date:         str("2024-06-01"),
		CustomerName: str("ACME Transport"),
		Amount:       num(1200),
		Description:  str("   "),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sale.Description != nil {
		t.Errorf("blank description should be nil, got %q", *sale.Description)
	}
	if rec.created[string(model.RecordKindCreditSale)] != 1 {
		t.Errorf("created metric = %v", rec.created)
	}

	_, err = svc.CreateCreditSale(context.Background(), "u1", CreditSaleInput{
		Date:   str("2024-06-01"),
		Amount: num(1),
	})
	assertValidationField(t, err, "customer_name")
}

func TestCreateIncomeExpense_Type(t *testing.T) {
	tests := []struct {
		typ     *string
		wantErr bool
	}{
		{str("income"), false},
		{str("expense"), false},
		{str("Income"), true},
		{str("refund"), true},
		{nil, true},
	}

	for _, tt := range tests {
		svc, _ := newTestService()
		entry, err := svc.CreateIncomeExpense(context.Background(), "u1", IncomeExpenseInput{
			Date:        str("2024-06-01"),
			Type:        tt.typ,
			Category:    str("salary"),
			Amount:      num(5000),
			Description: str("June"),
		})
		if tt.wantErr {
			assertValidationField(t, err, "type")
			continue
		}
		if err != nil {
			t.Errorf("type %q: unexpected error: %v", *tt.typ, err)
			continue
		}
		if string(entry.Type) != *tt.typ {
			t.Errorf("Type = %q, want %q", entry.Type, *tt.typ)
		}
		if entry.Description == nil || *entry.Description != "June" {
			t.Errorf("Description = %v", entry.Description)
		}
	}
}

func TestCreateFuelRate(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.CreateFuelRate(context.Background(), "u1", FuelRateInput{
		Date:     str("2024-06-01"),
		FuelType: str("diesel"),
		Rate:     num(89.6),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.CreateFuelRate(context.Background(), "u1", FuelRateInput{
		Date:     str("2024-06-01"),
		FuelType: str("diesel"),
		Rate:     num(-0.5),
	})
	assertValidationField(t, err, "rate")
}

func TestList_ScopedByUserAndDate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, c := range []struct{ user, date string }{
		{"u1", "2024-06-01"},
		{"u1", "2024-06-02"},
		{"u2", "2024-06-01"},
	} {
		if _, err := svc.CreateFuelRate(ctx, c.user, FuelRateInput{
			Date: str(c.date), FuelType: str("petrol"), Rate: num(100),
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	all, _ := svc.ListFuelRates(ctx, "u1", "")
	if len(all) != 2 {
		t.Errorf("u1 all = %d, want 2", len(all))
	}
	for _, r := range all {
		if r.UserID != "u1" {
			t.Errorf("other user's record leaked: %+v", r)
		}
	}

	day, _ := svc.ListFuelRates(ctx, "u1", "2024-06-02")
	if len(day) != 1 || day[0].Date != "2024-06-02" {
		t.Errorf("u1 on 2024-06-02 = %+v", day)
	}

	none, err := svc.ListFuelRates(ctx, "u3", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("unknown user should get an empty list, got %#v", none)
	}
}

func TestBackup(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	user := &model.User{ID: "u1", Email: "a@example.com", Name: "A"}

	if _, err := svc.CreateFuelSale(ctx, "u1", validFuelSale()); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateCreditSale(ctx, "u1", CreditSaleInput{
		Date: str("2024-06-01"), CustomerName: str("B"), Amount: num(10),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateFuelSale(ctx, "u2", validFuelSale()); err != nil {
		t.Fatal(err)
	}

	backup, err := svc.Backup(ctx, user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backup.User != user {
		t.Error("backup should carry the requesting user")
	}
	if len(backup.FuelSales) != 1 || len(backup.CreditSales) != 1 {
		t.Errorf("fuel=%d credit=%d, want 1 and 1", len(backup.FuelSales), len(backup.CreditSales))
	}
	if backup.IncomeExpenses == nil || len(backup.IncomeExpenses) != 0 {
		t.Errorf("IncomeExpenses = %#v, want empty", backup.IncomeExpenses)
	}
	if backup.FuelRates == nil || len(backup.FuelRates) != 0 {
		t.Errorf("FuelRates = %#v, want empty", backup.FuelRates)
	}
	if !backup.BackupDate.Equal(fixedNow) {
		t.Errorf("BackupDate = %v, want %v", backup.BackupDate, fixedNow)
	}
}

func TestValidationError_Message(t *testing.T) {
	err := invalid("date", "required")
	if err.Error() != "invalid date: required" {
		t.Errorf("Error() = %q", err.Error())
	}
}
