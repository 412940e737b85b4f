// Package datetime provides date and time utility functions.
package datetime

import (
	"time"

	"github.com/iwvelando/credit-simulator/pkg/constants"
)

const (
	// ReferenceDateLayout is the DD/MM/YYYY layout printed in messages.
	ReferenceDateLayout = constants.ReferenceDateLayout
)

// ReferenceDate formats t as DD/MM/YYYY in loc. A nil loc keeps t's own location.
func ReferenceDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(ReferenceDateLayout)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// LoadLocation resolves an IANA zone name, falling back to UTC for an empty name.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
