package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-01-31")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d != NewDate(2026, 1, 31) {
		t.Fatalf("unexpected date %v", d)
	}
	for _, bad := range []string{"", "2026-02-30", "31/01/2026", "2026-1-5"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrValidation) {
			t.Fatalf("%q expected validation error, got %v", bad, err)
		}
	}
}

func TestDateDaysUntil(t *testing.T) {
	from := NewDate(2026, 2, 27)
	if got := from.DaysUntil(NewDate(2026, 3, 1)); got != 2 {
		t.Fatalf("expected 2 days, got %d", got)
	}
	if got := from.DaysUntil(NewDate(2026, 2, 20)); got != -7 {
		t.Fatalf("expected -7 days, got %d", got)
	}
	// Beyond the ~292 year range of time.Duration.
	if got := NewDate(2026, 10, 18).DaysUntil(NewDate(2500, 1, 1)); got != 172835 {
		t.Fatalf("expected 172835 days, got %d", got)
	}
	if got := NewDate(9999, 12, 31).DaysUntil(NewDate(1, 1, 1)); got != -3652058 {
		t.Fatalf("expected -3652058 days, got %d", got)
	}
}

func TestPeriod(t *testing.T) {
	p, err := ParsePeriod("2024-02")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if p.String() != "2024-02" {
		t.Fatalf("unexpected period %s", p)
	}
	if p.End() != NewDate(2024, 2, 29) {
		t.Fatalf("unexpected period end %s", p.End())
	}
	if NewDate(2024, 2, 15).Period() != p {
		t.Fatalf("date should fall into %s", p)
	}
	if _, err := ParsePeriod("2024-13"); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected invalid period, got %v", err)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -5}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for negative, got %v", err)
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Date:        NewDate(2025, 1, 1),
		Amount:      Money{Cents: 100},
		Category:    "food",
		Subcategory: "groceries",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{Date: Date{}, Amount: Money{Cents: 1}, Category: "c", Subcategory: "s"},
		{Date: NewDate(2025, 1, 1), Amount: Money{Cents: -1}, Category: "c", Subcategory: "s"},
		{Date: NewDate(2025, 1, 1), Amount: Money{Cents: 1}, Category: " ", Subcategory: "s"},
		{Date: NewDate(2025, 1, 1), Amount: Money{Cents: 1}, Category: "c", Subcategory: ""},
	}
	for i, e := range bads {
		if err := e.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("bad case %d expected validation error, got %v", i, err)
		}
	}
}

func TestGoalValidate(t *testing.T) {
	good := Goal{
		Name:         "Emergency fund",
		TargetAmount: Money{Cents: 100000},
		TargetDate:   NewDate(2027, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	neg := good
	neg.CurrentProgress = Money{Cents: -1}
	if err := neg.Validate(); !errors.Is(err, ErrNegativeProgress) {
		t.Fatalf("expected negative progress error, got %v", err)
	}

	unnamed := good
	unnamed.Name = "  "
	if err := unnamed.Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected empty name error, got %v", err)
	}
}

func TestStorageErrorIs(t *testing.T) {
	cause := errors.New("disk full")
	err := error(&StorageError{Op: "insert expense", Err: cause})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage match")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved")
	}
	if errors.Is(err, ErrValidation) {
		t.Fatalf("storage errors must not look like validation errors")
	}
}

func TestExpenseJSON(t *testing.T) {
	e := Expense{ID: 3, Date: NewDate(2026, 1, 31), Amount: Money{Cents: 500}, Category: "misc", Subcategory: "other"}
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":3,"date":"2026-01-31","amount":5.00,"category":"misc","subcategory":"other"}`
	if string(b) != want {
		t.Fatalf("json = %s, want %s", b, want)
	}

	var back Expense
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Date.Equal(e.Date.Time) || back.Amount != e.Amount {
		t.Fatalf("round trip = %+v, want %+v", back, e)
	}
}
