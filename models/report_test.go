package models

import (
	"testing"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"Low", SeverityLow, false},
		{"medium", SeverityMedium, false},
		{" HIGH ", SeverityHigh, false},
		{"Critical", SeverityCritical, false},
		{"Extreme", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSeverity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSeverity(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseSeverity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusOpen, StatusInProgress, true},
		{StatusOpen, StatusResolved, true},
		{StatusInProgress, StatusResolved, true},
		{StatusInProgress, StatusOpen, false},
		{StatusResolved, StatusOpen, false},
		{StatusResolved, StatusInProgress, false},
		{StatusResolved, StatusResolved, false},
		{StatusOpen, Status("Closed"), false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%q -> %q = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
