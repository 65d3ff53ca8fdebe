package domain

import (
	"errors"
	"testing"
)

func TestValidateQuestion(t *testing.T) {
	cases := []struct {
		name     string
		question string
		wantErr  bool
	}{
		{"normal", "What does chapter 3 cover?", false},
		{"single word", "why", false},
		{"empty", "", true},
		{"whitespace only", " \t\n ", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateQuestion(tc.question)
			if tc.wantErr && !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateThreshold(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	cases := []struct {
		name      string
		threshold *float64
		wantErr   bool
	}{
		{"nil means no filtering", nil, false},
		{"zero", f(0), false},
		{"one", f(1), false},
		{"middle", f(0.7), false},
		{"negative", f(-0.1), true},
		{"above one", f(1.01), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateThreshold(tc.threshold)
			if tc.wantErr && !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateK(t *testing.T) {
	if err := ValidateK(1); err != nil {
		t.Errorf("k=1: %v", err)
	}
	if err := ValidateK(100); err != nil {
		t.Errorf("k=100: %v", err)
	}
	for _, k := range []int{0, -5} {
		if err := ValidateK(k); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("k=%d: expected ErrInvalidArgument, got %v", k, err)
		}
	}
}
