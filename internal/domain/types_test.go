package domain

import (
	"encoding/json"
	"testing"
)

func TestOptionTypeString(t *testing.T) {
	tests := []struct {
		in   OptionType
		want string
	}{
		{OptionTypeCall, "CALL"},
		{OptionTypePut, "PUT"},
		{OptionType("X"), "X"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("OptionType(%q).String() = %q, want %q", string(tt.in), got, tt.want)
		}
	}
	if OptionType("X").Valid() {
		t.Error("OptionType(\"X\").Valid() = true, want false")
	}
}

func TestOptionTradePremium(t *testing.T) {
	tr := OptionTrade{Price: 1.25, Quantity: 40}
	if got := tr.Premium(); got != 5000 {
		t.Errorf("Premium() = %v, want %v", got, 5000.0)
	}

	// Zero-value trade has zero premium.
	if got := (OptionTrade{}).Premium(); got != 0 {
		t.Errorf("zero Premium() = %v, want 0", got)
	}
}

func TestOptionTradeJSONOmitsTimeOnlyFlag(t *testing.T) {
	b, err := json.Marshal(OptionTrade{Type: OptionTypeCall})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := m["isTimeOnly"]; ok {
		t.Error("isTimeOnly should be omitted when false")
	}
	if m["type"] != "C" {
		t.Errorf("type = %v, want %q", m["type"], "C")
	}
}
