package application_test

import (
	"testing"

	"github.com/wirgen/wyoming-vosk/internal/application"
)

func TestResolveMode(t *testing.T) {
	cutoff := 30

	tests := []struct {
		name   string
		limit  bool
		cutoff *int
		want   application.Mode
	}{
		{"neither set", false, nil, application.ModeOpen},
		{"cutoff set", false, &cutoff, application.ModeCorrected},
		{"limit set", true, nil, application.ModeLimited},
		{"limit wins over cutoff", true, &cutoff, application.ModeLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := application.ResolveMode(tt.limit, tt.cutoff); got != tt.want {
				t.Errorf("ResolveMode(%v, %v) = %v, want %v", tt.limit, tt.cutoff, got, tt.want)
			}
		})
	}
}

func TestMode_String(t *testing.T) {
	tests := []struct {
		mode application.Mode
		want string
	}{
		{application.ModeOpen, "open"},
		{application.ModeCorrected, "corrected"},
		{application.ModeLimited, "limited"},
		{application.Mode(42), "Mode(42)"},
	}

	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q, want %q", int(tt.mode), got, tt.want)
		}
	}
}
