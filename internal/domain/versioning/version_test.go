package versioning

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"docflow/internal/domain"
)

func TestParseFormatRoundTrip(t *testing.T) {
	for major := 1; major <= 12; major++ {
		for patch := 0; patch <= 12; patch++ {
			gotMajor, gotPatch, err := Parse(Format(major, patch))
			if err != nil {
				t.Fatalf("parse %d.%d: %v", major, patch, err)
			}
			if gotMajor != major || gotPatch != patch {
				t.Fatalf("round trip %d.%d returned %d.%d", major, patch, gotMajor, gotPatch)
			}
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	inputs := []string{"", "1", "1.", ".1", "1.0.0", "v1.0", "1.a", " 1.0", "1.0 ", "-1.0", "99999999999999999999.0"}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, _, err := Parse(input)
			if !errors.Is(err, domain.ErrMalformedVersion) {
				t.Fatalf("expected MalformedVersion for %q, got %v", input, err)
			}
		})
	}
}

func TestBump(t *testing.T) {
	tests := []struct {
		version string
		kind    Kind
		want    string
	}{
		{"1.0", Patch, "1.1"},
		{"1.9", Patch, "1.10"},
		{"1.4", Major, "2.0"},
		{"3.0", Major, "4.0"},
	}
	for _, tt := range tests {
		got, err := Bump(tt.version, tt.kind)
		if err != nil {
			t.Fatalf("bump %s %s: %v", tt.version, tt.kind, err)
		}
		if got != tt.want {
			t.Fatalf("bump %s %s: expected %s, got %s", tt.version, tt.kind, tt.want, got)
		}
	}
	if _, err := Bump("x", Patch); !errors.Is(err, domain.ErrMalformedVersion) {
		t.Fatalf("expected MalformedVersion, got %v", err)
	}
	if _, err := Bump("1.0", Kind("MINOR")); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestBumpRejectsOverflow(t *testing.T) {
	maxed := strconv.Itoa(math.MaxInt)
	for _, tt := range []struct {
		version string
		kind    Kind
	}{
		{maxed + ".0", Major},
		{"1." + maxed, Patch},
	} {
		if _, err := Bump(tt.version, tt.kind); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("bump %s %s: expected InvalidArgument, got %v", tt.version, tt.kind, err)
		}
	}
	if got, err := Bump("1."+maxed, Major); err != nil || got != "2.0" {
		t.Fatalf("major bump must reset a maxed patch, got %s %v", got, err)
	}
}

func TestDowngradeInvertsBump(t *testing.T) {
	for _, version := range []string{"1.0", "1.1", "2.7", "10.0"} {
		bumped, err := Bump(version, Patch)
		if err != nil {
			t.Fatalf("bump: %v", err)
		}
		back, err := Downgrade(bumped, Patch)
		if err != nil {
			t.Fatalf("downgrade: %v", err)
		}
		if back != version {
			t.Fatalf("patch inverse of %s returned %s", version, back)
		}
	}
	for _, version := range []string{"1.0", "2.0", "7.0"} {
		bumped, err := Bump(version, Major)
		if err != nil {
			t.Fatalf("bump: %v", err)
		}
		back, err := Downgrade(bumped, Major)
		if err != nil {
			t.Fatalf("downgrade: %v", err)
		}
		if back != version {
			t.Fatalf("major inverse of %s returned %s", version, back)
		}
	}
}

func TestDowngradeFloor(t *testing.T) {
	for _, kind := range []Kind{Major, Patch} {
		if _, err := Downgrade(Initial, kind); !errors.Is(err, domain.ErrVersionUnderflow) {
			t.Fatalf("downgrade %s %s: expected VersionUnderflow, got %v", Initial, kind, err)
		}
	}
	if _, err := Downgrade("2.0", Patch); !errors.Is(err, domain.ErrVersionUnderflow) {
		t.Fatalf("patch downgrade must not borrow from major, got %v", err)
	}
	got, err := Downgrade("2.5", Major)
	if err != nil || got != "1.0" {
		t.Fatalf("expected 1.0, got %q (%v)", got, err)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.2", "1.10", -1},
		{"2.0", "1.99", 1},
	}
	for _, tt := range tests {
		got, err := Compare(tt.a, tt.b)
		if err != nil {
			t.Fatalf("compare %s %s: %v", tt.a, tt.b, err)
		}
		if got != tt.want {
			t.Fatalf("compare %s %s: expected %d, got %d", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestParseKind(t *testing.T) {
	if kind, err := ParseKind(" major "); err != nil || kind != Major {
		t.Fatalf("expected MAJOR, got %q (%v)", kind, err)
	}
	if _, err := ParseKind("minor"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}
