// Package versioning handles the "major.patch" identifiers attached to every
// document revision. All functions are pure.
package versioning

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"docflow/internal/domain"
)

// Initial is the version every new document starts from, and the floor for Downgrade.
const Initial = "1.0"

type Kind string

const (
	Major Kind = "MAJOR"
	Patch Kind = "PATCH"
)

var versionPattern = regexp.MustCompile(`^\d+\.\d+$`)

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(raw))) {
	case Major:
		return Major, nil
	case Patch:
		return Patch, nil
	default:
		return "", domain.Errorf(domain.KindInvalidArgument, "unknown bump kind %q", raw)
	}
}

func Parse(version string) (major, patch int, err error) {
	if !versionPattern.MatchString(version) {
		return 0, 0, domain.Errorf(domain.KindMalformedVersion, "version %q must match major.patch", version)
	}
	majorRaw, patchRaw, _ := strings.Cut(version, ".")
	major, err = strconv.Atoi(majorRaw)
	if err != nil {
		return 0, 0, domain.Errorf(domain.KindMalformedVersion, "major component of %q out of range", version)
	}
	patch, err = strconv.Atoi(patchRaw)
	if err != nil {
		return 0, 0, domain.Errorf(domain.KindMalformedVersion, "patch component of %q out of range", version)
	}
	return major, patch, nil
}

func Format(major, patch int) string {
	return strconv.Itoa(major) + "." + strconv.Itoa(patch)
}

// Bump increments major (resetting patch) or patch. A component already at
// math.MaxInt cannot be bumped.
func Bump(version string, kind Kind) (string, error) {
	major, patch, err := Parse(version)
	if err != nil {
		return "", err
	}
	switch kind {
	case Major:
		if major == math.MaxInt {
			return "", overflow(version, kind)
		}
		return Format(major+1, 0), nil
	case Patch:
		if patch == math.MaxInt {
			return "", overflow(version, kind)
		}
		return Format(major, patch+1), nil
	default:
		return "", domain.Errorf(domain.KindInvalidArgument, "unknown bump kind %q", kind)
	}
}

// Downgrade is the inverse of Bump. It never goes below Initial and a patch
// downgrade never borrows from major.
func Downgrade(version string, kind Kind) (string, error) {
	major, patch, err := Parse(version)
	if err != nil {
		return "", err
	}
	switch kind {
	case Major:
		if major-1 < 1 {
			return "", underflow(version, kind)
		}
		return Format(major-1, 0), nil
	case Patch:
		if patch-1 < 0 {
			return "", underflow(version, kind)
		}
		return Format(major, patch-1), nil
	default:
		return "", domain.Errorf(domain.KindInvalidArgument, "unknown bump kind %q", kind)
	}
}

// Compare orders two versions numerically: -1, 0 or 1.
func Compare(a, b string) (int, error) {
	aMajor, aPatch, err := Parse(a)
	if err != nil {
		return 0, err
	}
	bMajor, bPatch, err := Parse(b)
	if err != nil {
		return 0, err
	}
	if aMajor != bMajor {
		return cmpInt(aMajor, bMajor), nil
	}
	return cmpInt(aPatch, bPatch), nil
}

func underflow(version string, kind Kind) error {
	return domain.Errorf(domain.KindVersionUnderflow, "cannot downgrade %s of %s below %s", strings.ToLower(string(kind)), version, Initial)
}

func overflow(version string, kind Kind) error {
	return domain.Errorf(domain.KindInvalidArgument, "cannot bump %s of %s past %d", strings.ToLower(string(kind)), version, math.MaxInt)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
