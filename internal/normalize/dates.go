package normalize

import (
	"fmt"
	"strings"
	"time"
)

// Timestamp layouts found in MIMIC CSV extracts and hand-written fixtures.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"01/02/2006 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a zone-less timestamp as wall-clock time in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampFormats {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// WallClockIn reinterprets the wall-clock reading of t as local time in loc.
// Source columnar files store zone-less timestamps, which decode as UTC.
func WallClockIn(t time.Time, loc *time.Location) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), loc)
}

// gapLookback reaches from a nonexistent wall time back to an instant
// safely before the transition that skipped it.
const gapLookback = 12 * time.Hour

// ToUTC converts a zone-less source timestamp, recorded in loc, to UTC.
// A wall time skipped by a spring-forward transition is shifted forward by
// the gap: it is read with the offset in force before the transition, so
// 02:30 on a New York spring-forward day becomes 03:30 EDT.
func ToUTC(t time.Time, loc *time.Location) time.Time {
	local := WallClockIn(t, loc)
	if sameWallClock(local, t) {
		return local.UTC()
	}
	_, before := local.Add(-gapLookback).Zone()
	return WallClockIn(t, time.UTC).Add(-time.Duration(before) * time.Second)
}

// Nonexistent reports whether the wall-clock reading of t does not occur in
// loc.
func Nonexistent(t time.Time, loc *time.Location) bool {
	return !sameWallClock(WallClockIn(t, loc), t)
}

func sameWallClock(a, b time.Time) bool {
	ay, amo, ad := a.Date()
	by, bmo, bd := b.Date()
	ah, ami, as := a.Clock()
	bh, bmi, bs := b.Clock()
	return ay == by && amo == bmo && ad == bd && ah == bh && ami == bmi && as == bs
}
