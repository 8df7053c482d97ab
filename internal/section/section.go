package section

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taskcal/internal/civil"
)

// ErrUnknownSection is returned by Parse for anything outside A..G.
var ErrUnknownSection = errors.New("unknown day section")

// Section buckets a local hour of the day. Tasks on a board are ordered by
// section first.
type Section string

const (
	A Section = "A" // 07-10
	B Section = "B" // 10-13
	C Section = "C" // 13-17
	D Section = "D" // 17-19
	E Section = "E" // 19-22
	F Section = "F" // 22-24
	G Section = "G" // 00-07
)

type hourRange struct {
	section    Section
	start, end int
}

// table partitions [0, 24) in board order.
var table = []hourRange{
	{A, 7, 10},
	{B, 10, 13},
	{C, 13, 17},
	{D, 17, 19},
	{E, 19, 22},
	{F, 22, 24},
	{G, 0, 7},
}

// All returns every section in board order.
func All() []Section {
	out := make([]Section, 0, len(table))
	for _, r := range table {
		out = append(out, r.section)
	}
	return out
}

// Classify returns the section of t's hour in JST.
func Classify(t time.Time) Section {
	return ClassifyHour(t.In(civil.JST).Hour())
}

// ClassifyHour maps an hour 0-23 to its section. Hours outside that range are
// reduced modulo 24.
func ClassifyHour(h int) Section {
	h = ((h % 24) + 24) % 24
	for _, r := range table {
		if h >= r.start && h < r.end {
			return r.section
		}
	}
	panic(fmt.Sprintf("section: hour %d not covered by table", h))
}

// Parse accepts "A".."G", case-insensitive.
func Parse(s string) (Section, error) {
	candidate := Section(strings.ToUpper(strings.TrimSpace(s)))
	for _, r := range table {
		if r.section == candidate {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSection, s)
}

// Order is the position of s on a board (A=0 ... G=6); unknown sections sort last.
func (s Section) Order() int {
	for i, r := range table {
		if r.section == s {
			return i
		}
	}
	return len(table)
}

// Range returns the half-open [start, end) local hours of s.
func (s Section) Range() (start, end int, ok bool) {
	for _, r := range table {
		if r.section == s {
			return r.start, r.end, true
		}
	}
	return 0, 0, false
}

func (s Section) String() string { return string(s) }
