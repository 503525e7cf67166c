package scheduling

import (
	"errors"
	"testing"
)

func TestToInternalStatus(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Confirmé", StatusConfirmed},
		{"En attente", StatusPending},
		{"Annulé", StatusCancelled},
	}
	for _, tt := range tests {
		got, err := ToInternalStatus(tt.label)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.label, err)
		}
		if got != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.label, tt.want, got)
		}
	}
}

func TestToInternalStatus_RejectsOtherLabels(t *testing.T) {
	for _, label := range []string{"Terminé", "confirme", "confirmé", "En Attente", "", "Annule"} {
		if _, err := ToInternalStatus(label); !errors.Is(err, ErrUnknownStatus) {
			t.Errorf("%q: expected ErrUnknownStatus, got %v", label, err)
		}
		if IsInputLabel(label) {
			t.Errorf("%q: expected not an input label", label)
		}
	}
}

func TestToDisplayLabel(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{StatusConfirmed, "Confirmé"},
		{StatusPending, "En attente"},
		{StatusCancelled, "Annulé"},
		{StatusCompleted, "Terminé"},
		{"unknown_token", "Unknown_token"},
		{"équipe", "Équipe"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ToDisplayLabel(tt.token); got != tt.want {
			t.Errorf("ToDisplayLabel(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestStatus_RoundTrip(t *testing.T) {
	for _, label := range InputLabels {
		token, err := ToInternalStatus(label)
		if err != nil {
			t.Fatalf("%q: %v", label, err)
		}
		if !IsStatusToken(token) {
			t.Errorf("%q: token %s not recognised", label, token)
		}
		if got := ToDisplayLabel(token); got != label {
			t.Errorf("round trip %q -> %s -> %q", label, token, got)
		}
	}
}
