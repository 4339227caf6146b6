// Package schedule advances recurring obligation due dates.
//
// Each frequency has its own strategy, looked up in a registry, so new
// rules can be added without touching the callers.
package schedule

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"carteira/internal/core"
)

// Advancer is the strategy interface for moving a due date forward by one period.
type Advancer interface {
	// Advance returns the next due date after due. It must return a date
	// strictly after due.
	Advance(due core.Date) core.Date
}

// MonthStep advances by a fixed number of calendar months, keeping the day
// of month. Days missing from the target month roll over into the next one.
type MonthStep struct {
	Months int
}

func (s MonthStep) Advance(due core.Date) core.Date {
	return due.AddMonths(s.Months)
}

// AnnualStep advances by one calendar year.
type AnnualStep struct{}

func (AnnualStep) Advance(due core.Date) core.Date {
	return core.Date{Time: due.AddDate(1, 0, 0)}
}

// BusinessDay lands on the Nth Monday-to-Friday of the month following due.
// The day component of due is ignored and there is no holiday calendar.
type BusinessDay struct {
	N int
}

func (b BusinessDay) Advance(due core.Date) core.Date {
	d := due.FirstOfMonth().AddMonths(1)
	count := 0
	for {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
			if count >= b.N {
				return d
			}
		}
		d = d.AddDays(1)
	}
}

var (
	mu         sync.RWMutex
	strategies = map[core.Frequency]Advancer{
		core.Monthly:          MonthStep{Months: 1},
		core.Bimonthly:        MonthStep{Months: 2},
		core.Quarterly:        MonthStep{Months: 3},
		core.Semiannual:       MonthStep{Months: 6},
		core.Annual:           AnnualStep{},
		core.FifthBusinessDay: BusinessDay{N: 5},
	}
)

// Get returns the strategy registered for frequency.
// Unknown frequencies return an error wrapping core.ErrUnknownFrequency.
func Get(frequency core.Frequency) (Advancer, error) {
	mu.RLock()
	defer mu.RUnlock()
	a, ok := strategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownFrequency, frequency)
	}
	return a, nil
}

// Register adds or replaces the strategy for a frequency.
func Register(frequency core.Frequency, a Advancer) {
	mu.Lock()
	defer mu.Unlock()
	strategies[frequency] = a
}

// Supported reports whether a strategy exists for frequency.
func Supported(frequency core.Frequency) bool {
	_, err := Get(frequency)
	return err == nil
}

// Frequencies lists the registered frequencies in lexical order.
func Frequencies() []core.Frequency {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]core.Frequency, 0, len(strategies))
	for f := range strategies {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Advance moves due forward by one period of frequency.
func Advance(due core.Date, frequency core.Frequency) (core.Date, error) {
	a, err := Get(frequency)
	if err != nil {
		return core.Date{}, err
	}
	next := a.Advance(due)
	if !next.After(due) {
		return core.Date{}, fmt.Errorf("frequency %q did not advance %s", frequency, due)
	}
	return next, nil
}

// RollForward applies Advance starting at start until the result is
// strictly after reference.
func RollForward(start core.Date, frequency core.Frequency, reference core.Date) (core.Date, error) {
	a, err := Get(frequency)
	if err != nil {
		return core.Date{}, err
	}
	next := start
	for !next.After(reference) {
		candidate := a.Advance(next)
		if !candidate.After(next) {
			return core.Date{}, fmt.Errorf("frequency %q did not advance %s", frequency, next)
		}
		next = candidate
	}
	return next, nil
}
