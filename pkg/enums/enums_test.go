package enums

import "testing"

func TestSubscriptionStatusCancellable(t *testing.T) {
	cases := map[SubscriptionStatus]bool{
		SubscriptionStatusCreated:   true,
		SubscriptionStatusTrial:     true,
		SubscriptionStatusActive:    true,
		SubscriptionStatusQueued:    true,
		SubscriptionStatusCancelled: false,
		SubscriptionStatusFinished:  false,
	}
	for status, want := range cases {
		if got := status.Cancellable(); got != want {
			t.Fatalf("%s: expected cancellable=%v got %v", status, want, got)
		}
	}
}

func TestParseSubscriptionStatus(t *testing.T) {
	if _, err := ParseSubscriptionStatus(7); err == nil {
		t.Fatal("expected error for unknown status")
	}
	got, err := ParseSubscriptionStatus(2)
	if err != nil || got != SubscriptionStatusTrial {
		t.Fatalf("unexpected parse result %v %v", got, err)
	}
	if got.String() != "trial" {
		t.Fatalf("unexpected name %q", got.String())
	}
}

func TestParsePlanStatusAndInterval(t *testing.T) {
	if _, err := ParsePlanStatus(3); err == nil {
		t.Fatal("expected error for unknown plan status")
	}
	if _, err := ParseIntervalUnit(0); err == nil {
		t.Fatal("expected error for unknown interval")
	}
	if u, err := ParseIntervalUnit(3); err != nil || u != IntervalUnitMonth {
		t.Fatalf("unexpected interval %v %v", u, err)
	}
}

func TestParseCurrencyNormalizes(t *testing.T) {
	c, err := ParseCurrency(" pen ")
	if err != nil || c != CurrencyPEN {
		t.Fatalf("unexpected currency %v %v", c, err)
	}
	if _, err := ParseCurrency("BTC"); err == nil {
		t.Fatal("expected error for unsupported currency")
	}
}

func TestSourceKindOf(t *testing.T) {
	if k, err := SourceKindOf("tkn_test_abcdef1234567890"); err != nil || k != SourceKindToken {
		t.Fatalf("unexpected kind %v %v", k, err)
	}
	if k, err := SourceKindOf("crd_live_abc"); err != nil || k != SourceKindCard {
		t.Fatalf("unexpected kind %v %v", k, err)
	}
	if _, err := SourceKindOf("ype_123"); err == nil {
		t.Fatal("expected error for unknown prefix")
	}
}
