package domain

import (
	"fmt"
	"strings"
	"time"
)

// PeriodType selects how a reporting window is cut into date ranges
type PeriodType string

const (
	PeriodMonthly   PeriodType = "monthly"
	PeriodQuarterly PeriodType = "quarterly"
	PeriodYearly    PeriodType = "yearly"
	Period60Day     PeriodType = "60-day"
	Period90Day     PeriodType = "90-day"
	PeriodCustom    PeriodType = "custom"
)

const (
	monthlyPeriods   = 12
	quarterlyPeriods = 4
	yearlyPeriods    = 3
	rollingPeriods   = 6
)

const dateLabelFormat = "2006-01-02"

// ParsePeriodType parses a period name, accepting a few short aliases
func ParsePeriodType(s string) (PeriodType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly", "month":
		return PeriodMonthly, nil
	case "quarterly", "quarter":
		return PeriodQuarterly, nil
	case "yearly", "year":
		return PeriodYearly, nil
	case "60-day", "60d":
		return Period60Day, nil
	case "90-day", "90d":
		return Period90Day, nil
	case "custom":
		return PeriodCustom, nil
	default:
		return "", fmt.Errorf("%w: unknown period type %q", ErrInvalidPeriod, s)
	}
}

// DateRange is a closed interval of instants [Start, End] with a display label
type DateRange struct {
	Start time.Time
	End   time.Time
	Label string
}

// NewDateRange builds a range labelled with its first and last day
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{
		Start: start,
		End:   end,
		Label: start.Format(dateLabelFormat) + ".." + end.Format(dateLabelFormat),
	}
}

// Contains reports whether t falls inside the range, boundaries included
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// GeneratePeriods cuts the window ending at reference into a fixed number of ranges, oldest first:
//   - monthly: 12 calendar months ending with the reference month
//   - quarterly: 4 calendar quarters ending with the reference quarter
//   - yearly: 3 calendar years ending with the reference year
//   - 60-day / 90-day: 6 rolling windows, window i starts N*(6-i) days before reference
//   - custom: the caller-supplied range, unchanged
//
// The custom range is ignored for every other period type.
func GeneratePeriods(periodType PeriodType, reference time.Time, custom *DateRange) ([]DateRange, error) {
	switch periodType {
	case PeriodMonthly:
		return calendarPeriods(reference, monthlyPeriods, 1, monthLabel), nil
	case PeriodQuarterly:
		return calendarPeriods(startOfQuarter(reference), quarterlyPeriods, 3, quarterLabel), nil
	case PeriodYearly:
		return calendarPeriods(startOfYear(reference), yearlyPeriods, 12, yearLabel), nil
	case Period60Day:
		return rollingPeriodRanges(reference, 60), nil
	case Period90Day:
		return rollingPeriodRanges(reference, 90), nil
	case PeriodCustom:
		if custom == nil {
			return nil, fmt.Errorf("%w: custom period requires a date range", ErrInvalidPeriod)
		}
		if custom.End.Before(custom.Start) {
			return nil, fmt.Errorf("%w: custom period ends before it starts", ErrInvalidPeriod)
		}
		r := *custom
		if r.Label == "" {
			r.Label = NewDateRange(r.Start, r.End).Label
		}
		return []DateRange{r}, nil
	default:
		return nil, fmt.Errorf("%w: unknown period type %q", ErrInvalidPeriod, string(periodType))
	}
}

// calendarPeriods builds count consecutive windows of stepMonths months.
// The newest window starts on the month of anchor.
func calendarPeriods(anchor time.Time, count, stepMonths int, label func(time.Time) string) []DateRange {
	first := startOfMonth(anchor)
	periods := make([]DateRange, 0, count)
	for i := count - 1; i >= 0; i-- {
		start := first.AddDate(0, -i*stepMonths, 0)
		end := start.AddDate(0, stepMonths, 0).Add(-time.Nanosecond)
		periods = append(periods, DateRange{Start: start, End: end, Label: label(start)})
	}
	return periods
}

// rollingPeriodRanges builds 6 back-to-back windows of days length ending at reference
func rollingPeriodRanges(reference time.Time, days int) []DateRange {
	periods := make([]DateRange, 0, rollingPeriods)
	for i := 0; i < rollingPeriods; i++ {
		start := reference.AddDate(0, 0, -days*(rollingPeriods-i))
		end := start.AddDate(0, 0, days)
		periods = append(periods, NewDateRange(start, end))
	}
	return periods
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func startOfQuarter(t time.Time) time.Time {
	month := time.Month((int(t.Month())-1)/3*3 + 1)
	return time.Date(t.Year(), month, 1, 0, 0, 0, 0, t.Location())
}

func startOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}

func monthLabel(start time.Time) string { return start.Format("2006-01") }

func quarterLabel(start time.Time) string {
	return fmt.Sprintf("%d-Q%d", start.Year(), (int(start.Month())-1)/3+1)
}

func yearLabel(start time.Time) string { return start.Format("2006") }
