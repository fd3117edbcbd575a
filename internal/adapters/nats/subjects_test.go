package natsadapter

import (
	"testing"

	"github.com/samirrijal/geodrop/internal/core/domain"
)

func TestClaimSubject(t *testing.T) {
	tests := []struct {
		event domain.ClaimEvent
		want  string
	}{
		{domain.ClaimEvent{Cell: "dr5ru", Outcome: "claimed"}, "geodrop.claims.dr5ru.claimed"},
		{domain.ClaimEvent{Outcome: "ineligible"}, "geodrop.claims.none.ineligible"},
	}
	for _, tt := range tests {
		if got := ClaimSubject(&tt.event); got != tt.want {
			t.Errorf("ClaimSubject(%+v) = %q, want %q", tt.event, got, tt.want)
		}
	}
}

func TestCellSubject(t *testing.T) {
	if got := CellSubject(""); got != "geodrop.claims.>" {
		t.Errorf("CellSubject(\"\") = %q", got)
	}
	if got := CellSubject("dr5ru"); got != "geodrop.claims.dr5ru.*" {
		t.Errorf("CellSubject(dr5ru) = %q", got)
	}
}
