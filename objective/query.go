package objective

import "time"

// =============================================================================
// QUERY - Which objectives apply to a (types, year, month) request
// =============================================================================

// Query selects candidate objectives for one merge pass.
//
// Selection rule for a record r:
//   - r.Type is one of Types and r.Year == Year, and
//   - with Month set: (monthly and r.Month == Month) or quarterly or yearly
//   - with Month nil: yearly or quarterly
//
// Quarterly objectives are not narrowed to the quarter containing Month.
type Query struct {
	Types []Type
	Year  int
	Month *int
}

// Matches applies the selection rule to one record.
func (q Query) Matches(r Record) bool {
	if r.Year != q.Year || !q.hasType(r.Type) {
		return false
	}
	if q.Month != nil {
		switch r.Period {
		case PeriodMonth:
			return r.Month != nil && *r.Month == *q.Month
		case PeriodQuarter, PeriodYear:
			return true
		}
		return false
	}
	return r.Period == PeriodYear || r.Period == PeriodQuarter
}

func (q Query) hasType(t Type) bool {
	for _, want := range q.Types {
		if want == t {
			return true
		}
	}
	return false
}

// Filter keeps the records matching q, in source order.
func Filter(records []Record, q Query) []Record {
	var out []Record
	for _, r := range records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// MERGE PERIOD RESOLUTION - From dashboard request parameters
// =============================================================================

// Dashboard granularities accepted by the data endpoints.
const (
	GranularityWeek  = "week"
	GranularityMonth = "month"
)

// ResolveYear returns *year, or the current year when absent.
func ResolveYear(year *int, now time.Time) int {
	if year != nil && *year > 0 {
		return *year
	}
	return now.Year()
}

// ResolveMonth derives the month used to select objectives:
//   - month granularity with an explicit month: that month
//   - week granularity with a YYYY-MM-DD date: the date's month
//   - month granularity without a month: the current month
//   - anything else: nil (yearly and quarterly objectives only)
func ResolveMonth(granularity string, month *int, date string, now time.Time) *int {
	switch granularity {
	case GranularityMonth:
		if month != nil && *month >= 1 && *month <= 12 {
			return IntPtr(*month)
		}
		return IntPtr(int(now.Month()))
	case GranularityWeek:
		if date == "" {
			return nil
		}
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil
		}
		return IntPtr(int(d.Month()))
	}
	return nil
}
