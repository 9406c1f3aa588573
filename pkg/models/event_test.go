package models

import "testing"

func TestNewAttackEvent(t *testing.T) {
	src := Location{Country: "CN", Lat: 35.9, Lng: 104.2}
	dst := Location{Country: "US", Lat: 37.8, Lng: -95.7}

	event, err := NewAttackEvent(src, dst, TypeDDoS, 4, 0.8, 1705320000000)
	if err != nil {
		t.Fatalf("NewAttackEvent failed: %v", err)
	}
	if event.ID == "" {
		t.Error("Expected non-empty event ID")
	}
	if event.Source.Country != "CN" || event.Target.Country != "US" {
		t.Errorf("Unexpected countries: %s -> %s", event.Source.Country, event.Target.Country)
	}
	if event.Type != TypeDDoS {
		t.Errorf("Expected type ddos, got %s", event.Type)
	}

	other, err := NewAttackEvent(src, dst, TypeBot, 1, 0.5, 1705320000000)
	if err != nil {
		t.Fatalf("NewAttackEvent failed: %v", err)
	}
	if other.ID == event.ID {
		t.Error("Expected unique IDs for separate events")
	}
}

func TestNewAttackEvent_Invariants(t *testing.T) {
	us := Location{Country: "US"}
	cn := Location{Country: "CN"}

	tests := []struct {
		name       string
		source     Location
		target     Location
		severity   int
		confidence float64
	}{
		{"same country", us, Location{Country: "US", Lat: 1, Lng: 1}, 3, 0.5},
		{"severity too low", us, cn, 0, 0.5},
		{"severity too high", us, cn, 6, 0.5},
		{"negative confidence", us, cn, 3, -0.1},
		{"confidence above one", us, cn, 3, 1.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAttackEvent(tt.source, tt.target, TypeDDoS, tt.severity, tt.confidence, 0)
			if err == nil {
				t.Error("Expected construction error, got nil")
			}
		})
	}
}

func TestNewAttackEvent_Bounds(t *testing.T) {
	us := Location{Country: "US"}
	cn := Location{Country: "CN"}

	for _, severity := range []int{1, 5} {
		if _, err := NewAttackEvent(us, cn, TypeBruteforce, severity, 0.5, 0); err != nil {
			t.Errorf("severity %d should be valid: %v", severity, err)
		}
	}
	for _, confidence := range []float64{0, 1} {
		if _, err := NewAttackEvent(us, cn, TypeBruteforce, 3, confidence, 0); err != nil {
			t.Errorf("confidence %v should be valid: %v", confidence, err)
		}
	}
}
