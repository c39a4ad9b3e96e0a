package models

import (
	"fmt"
	"time"

	errs "reviewscraper/pkg/errors"
)

// DateLayout is the calendar date format accepted on input and written on output
const DateLayout = "2006-01-02"

// DateWindow is an inclusive range of calendar dates.
// The zero value is not valid; construct with ParseDateWindow or NewDateWindow.
type DateWindow struct {
	start time.Time
	end   time.Time
}

// ParseDateWindow parses two YYYY-MM-DD strings into a window
func ParseDateWindow(start, end string) (DateWindow, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateWindow{}, errs.Config(errs.ErrInvalidDateFormat, fmt.Sprintf("start date %q", start))
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateWindow{}, errs.Config(errs.ErrInvalidDateFormat, fmt.Sprintf("end date %q", end))
	}
	return NewDateWindow(s, e)
}

// NewDateWindow builds a window from two instants, keeping only their calendar dates
func NewDateWindow(start, end time.Time) (DateWindow, error) {
	s, e := civil(start), civil(end)
	if s.After(e) {
		return DateWindow{}, errs.Config(errs.ErrInvalidRange,
			fmt.Sprintf("%s is after %s", s.Format(DateLayout), e.Format(DateLayout)))
	}
	return DateWindow{start: s, end: e}, nil
}

// Start returns the first included date
func (w DateWindow) Start() time.Time { return w.start }

// End returns the last included date
func (w DateWindow) End() time.Time { return w.end }

// Contains reports whether d's calendar date lies within the window, bounds included
func (w DateWindow) Contains(d time.Time) bool {
	c := civil(d)
	return !c.Before(w.start) && !c.After(w.end)
}

// EndsAfter reports whether the window extends past the calendar date of now
func (w DateWindow) EndsAfter(now time.Time) bool {
	return w.end.After(civil(now))
}

// Days returns the number of calendar days covered
func (w DateWindow) Days() int {
	return int(w.end.Sub(w.start).Hours()/24) + 1
}

func (w DateWindow) String() string {
	return w.start.Format(DateLayout) + ".." + w.end.Format(DateLayout)
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
