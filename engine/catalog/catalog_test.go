package catalog

import (
	"errors"
	"testing"
)

func TestMoneyString(t *testing.T) {
	tests := []struct {
		in   Money
		want string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{129990, "1299.90"},
		{-250, "-2.50"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("Money(%d).String() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFromFloatRounds(t *testing.T) {
	if got := FromFloat(12.345); got != 1235 {
		t.Errorf("FromFloat(12.345) = %d, want 1235", got)
	}
	if got := FromFloat(-12.345); got != -1235 {
		t.Errorf("FromFloat(-12.345) = %d, want -1235", got)
	}
}

func TestWithinTolerance(t *testing.T) {
	base := Money(10000)
	if !Money(10400).WithinTolerance(base, 0.05) {
		t.Error("10400 should be within 5% of 10000")
	}
	if Money(10600).WithinTolerance(base, 0.05) {
		t.Error("10600 should not be within 5% of 10000")
	}
	if Money(100).WithinTolerance(0, 0.05) {
		t.Error("nonzero value should never match zero reference")
	}
}

func TestDiscountFractionClamped(t *testing.T) {
	tests := []struct {
		name   string
		listed Money
		eff    Money
		want   float64
	}{
		{"half off", 20000, 10000, 0.5},
		{"no discount", 10000, 10000, 0},
		{"effective above listed", 10000, 12000, 0},
		{"zero listed", 0, 500, 0},
		{"free", 10000, 0, 1},
	}
	for _, tt := range tests {
		o := PriceObservation{Listed: tt.listed, Effective: tt.eff}
		if got := o.DiscountFraction(); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
		if f := o.DiscountFraction(); f < 0 || f > 1 {
			t.Errorf("%s: fraction %v outside [0,1]", tt.name, f)
		}
	}
}

func TestAggregateStatus(t *testing.T) {
	ok := PairOutcome{Store: "a", Query: "q"}
	bad := PairOutcome{Store: "b", Query: "q", Err: "blocked"}

	tests := []struct {
		name     string
		outcomes []PairOutcome
		want     RunStatus
	}{
		{"all ok", []PairOutcome{ok, ok}, RunCompleted},
		{"mixed", []PairOutcome{ok, bad}, RunPartial},
		{"all failed", []PairOutcome{bad, bad}, RunFailed},
		{"empty", nil, RunCompleted},
	}
	for _, tt := range tests {
		r := ScrapingRun{Outcomes: tt.outcomes}
		if got := r.AggregateStatus(); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(Transient("s", "u", 503, nil)) {
		t.Error("503 should be retryable")
	}
	if IsRetryable(HardBlock("s", "u", 403)) {
		t.Error("hard block must not be retryable")
	}
	if IsRetryable(BadSchema("s", "price")) {
		t.Error("schema mismatch must not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("unclassified errors are not retryable")
	}
}

func TestClassifyStatus(t *testing.T) {
	if err := ClassifyStatus("s", "u", 200); err != nil {
		t.Fatalf("200 should classify to nil, got %v", err)
	}
	if err := ClassifyStatus("s", "u", 429); !errors.Is(err, ErrTransient) {
		t.Errorf("429 should be transient, got %v", err)
	}
	if err := ClassifyStatus("s", "u", 500); !errors.Is(err, ErrTransient) {
		t.Errorf("500 should be transient, got %v", err)
	}
	if err := ClassifyStatus("s", "u", 403); !errors.Is(err, ErrHardBlock) {
		t.Errorf("403 should be a hard block, got %v", err)
	}
	if err := ClassifyStatus("s", "u", 404); !errors.Is(err, ErrBadSchema) {
		t.Errorf("404 should be a schema error, got %v", err)
	}

	var fe *FetchError
	if err := ClassifyStatus("falabella", "http://x", 502); !errors.As(err, &fe) || fe.Status != 502 {
		t.Errorf("expected FetchError with status 502, got %v", err)
	}
}
