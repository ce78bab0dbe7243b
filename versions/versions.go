// Package versions holds the ordered set of target Minecraft versions that
// compatibility checks are run against.
package versions

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrInvalidFormat   = errors.New("invalid version format")
	ErrDuplicate       = errors.New("version already present")
	ErrIndexOutOfRange = errors.New("version index out of range")
)

var versionPattern = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)

// Version is a MAJOR.MINOR[.PATCH] Minecraft version string.
type Version struct {
	raw   string
	parts []int
}

// Parse validates raw and splits it into numeric components.
func Parse(raw string) (Version, error) {
	if !versionPattern.MatchString(raw) {
		return Version{}, fmt.Errorf("%w: %q (expected e.g. 1.21 or 1.21.5)", ErrInvalidFormat, raw)
	}
	fields := strings.Split(raw, ".")
	parts := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q: %v", ErrInvalidFormat, raw, err)
		}
		parts[i] = n
	}
	return Version{raw: raw, parts: parts}, nil
}

func (v Version) String() string { return v.raw }

// Compare orders versions component by component as integers. The shorter
// version is padded with zeros, so "1.21" and "1.21.0" compare equal.
func (v Version) Compare(other Version) int {
	n := max(len(v.parts), len(other.parts))
	for i := 0; i < n; i++ {
		a, b := component(v.parts, i), component(other.parts, i)
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
	}
	return 0
}

func component(parts []int, i int) int {
	if i < len(parts) {
		return parts[i]
	}
	return 0
}

// Set is an ascending, duplicate-free list of target versions.
// Duplicates are detected by exact string, not by numeric equality.
// A Set is not safe for concurrent use; collection.Store guards it.
type Set struct {
	items []Version
}

// NewSet builds a set from persisted values. Invalid or duplicate entries are
// skipped and reported in the returned error; the valid ones are kept.
func NewSet(raw []string) (*Set, error) {
	s := &Set{}
	var errs []error
	for _, r := range raw {
		if err := s.Add(r); err != nil {
			errs = append(errs, err)
		}
	}
	return s, errors.Join(errs...)
}

// Add validates raw, rejects exact duplicates, inserts it and re-sorts.
func (s *Set) Add(raw string) error {
	raw = strings.TrimSpace(raw)
	v, err := Parse(raw)
	if err != nil {
		return err
	}
	if s.Contains(raw) {
		return fmt.Errorf("%w: %s", ErrDuplicate, raw)
	}
	s.items = append(s.items, v)
	sort.SliceStable(s.items, func(i, j int) bool {
		return s.items[i].Compare(s.items[j]) < 0
	})
	return nil
}

// Remove deletes the entry at index and returns it.
func (s *Set) Remove(index int) (string, error) {
	if index < 0 || index >= len(s.items) {
		return "", fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(s.items))
	}
	removed := s.items[index].raw
	s.items = append(s.items[:index], s.items[index+1:]...)
	return removed, nil
}

func (s *Set) Contains(raw string) bool {
	for _, v := range s.items {
		if v.raw == raw {
			return true
		}
	}
	return false
}

func (s *Set) Len() int { return len(s.items) }

func (s *Set) Empty() bool { return len(s.items) == 0 }

// Values returns a copy of the version strings in order.
func (s *Set) Values() []string {
	out := make([]string, len(s.items))
	for i, v := range s.items {
		out[i] = v.raw
	}
	return out
}

// Key is the canonical ordered join used in compatibility cache keys.
func (s *Set) Key() string {
	return strings.Join(s.Values(), "_")
}

func (s *Set) Clone() *Set {
	return &Set{items: append([]Version(nil), s.items...)}
}
