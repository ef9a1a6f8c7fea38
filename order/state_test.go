package order

import "testing"

func TestStatusConstants(t *testing.T) {
	if StatusNew == "" || StatusFilled == "" {
		t.Fatalf("status constants not set")
	}
}

func TestSideOpposite(t *testing.T) {
	if Buy.Opposite() != Sell || Sell.Opposite() != Buy {
		t.Fatalf("unexpected opposite sides")
	}
	if Buy.Label() != "bid" || Sell.Label() != "ask" {
		t.Fatalf("unexpected labels")
	}
}

func TestOrderUnfilled(t *testing.T) {
	o := Order{Quantity: 2, Filled: 0.5}
	if o.Unfilled() != 1.5 {
		t.Fatalf("expected 1.5 got %f", o.Unfilled())
	}
	o.Filled = 3
	if o.Unfilled() != 0 {
		t.Fatalf("overfilled order should report 0")
	}
}
