package catalog

import "testing"

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	tests := []struct {
		kind     Kind
		duration int
		price    int64
	}{
		{QuickGuidance, 10, 1700},
		{DeepDive, 30, 9700},
		{IntensiveHealing, 60, 29700},
	}

	for _, tt := range tests {
		st, err := c.Lookup(tt.kind)
		if err != nil {
			t.Fatalf("Lookup(%s) returned error: %v", tt.kind, err)
		}
		if st.DurationMinutes != tt.duration {
			t.Errorf("%s: duration %d, want %d", tt.kind, st.DurationMinutes, tt.duration)
		}
		if st.PriceCents != tt.price {
			t.Errorf("%s: price %d, want %d", tt.kind, st.PriceCents, tt.price)
		}
	}
}

func TestLookupUnknownKind(t *testing.T) {
	c := Default()
	if _, err := c.Lookup("crystal_reading"); err == nil {
		t.Error("expected error for unknown kind")
	}
	if c.Contains("crystal_reading") {
		t.Error("Contains should be false for unknown kind")
	}
}

func TestAllSortedByPrice(t *testing.T) {
	all := Default().All()
	if len(all) != 3 {
		t.Fatalf("expected 3 session types, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].PriceCents < all[i-1].PriceCents {
			t.Errorf("All() not sorted by price: %v", all)
		}
	}
}
