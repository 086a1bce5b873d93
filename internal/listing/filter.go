package listing

import (
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"quicktasker/gig-service/internal/apperr"
	"quicktasker/gig-service/internal/model"
)

// Order selects the creation-time ordering of a listing page.
type Order int

const (
	NewestFirst Order = iota
	OldestFirst
)

// ParseOrder converts the "order" query value. Empty means NewestFirst.
func ParseOrder(s string) (Order, bool) {
	switch s {
	case "", "newest":
		return NewestFirst, true
	case "oldest":
		return OldestFirst, true
	}
	return NewestFirst, false
}

// Filter holds the recognised listing filters. Zero-value fields match
// everything.
type Filter struct {
	City     string
	WageType model.WageType
	WageFrom *float64
	WageTo   *float64
	DateFrom *time.Time
	DateTo   *time.Time
	Order    Order
}

// ParseFilter reads a Filter from query parameters. Malformed values are
// reported per parameter as a validation error.
func ParseFilter(q url.Values) (Filter, error) {
	var (
		f    Filter
		errs = map[string]string{}
	)

	f.City = strings.TrimSpace(q.Get("city"))

	if v := q.Get("wageType"); v != "" {
		wt, err := model.ParseWageType(v)
		if err != nil {
			errs["wageType"] = "wageType must be per_day or per_hour"
		}
		f.WageType = wt
	}

	parseWage := func(key string) *float64 {
		v := strings.TrimSpace(q.Get(key))
		if v == "" {
			return nil
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(n) {
			errs[key] = key + " must be a number"
			return nil
		}
		return &n
	}
	f.WageFrom = parseWage("wageFrom")
	f.WageTo = parseWage("wageTo")

	parseDate := func(key string) *time.Time {
		v := strings.TrimSpace(q.Get(key))
		if v == "" {
			return nil
		}
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			errs[key] = key + " must be YYYY-MM-DD"
			return nil
		}
		return &d
	}
	f.DateFrom = parseDate("dateFrom")
	f.DateTo = parseDate("dateTo")

	order, ok := ParseOrder(q.Get("order"))
	if !ok {
		errs["order"] = "order must be newest or oldest"
	}
	f.Order = order

	if len(errs) > 0 {
		return Filter{}, &apperr.ValidationError{Msg: "Invalid filter", Fields: errs}
	}
	return f, nil
}

// Apply returns the listings of src that pass every filter in f, sorted by
// creation time in f.Order. Listings without an id are dropped. src is not
// modified.
func Apply(src []model.Listing, f Filter) []model.Listing {
	out := make([]model.Listing, 0, len(src))
	for _, l := range src {
		if l.ID != "" {
			out = append(out, l)
		}
	}

	slices.SortStableFunc(out, func(a, b model.Listing) int {
		if f.Order == OldestFirst {
			return a.CreatedAt.Compare(b.CreatedAt)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return slices.DeleteFunc(out, func(l model.Listing) bool { return !f.Match(l) })
}

// Match reports whether l passes every non-empty filter of f.
func (f Filter) Match(l model.Listing) bool {
	if f.City != "" && !strings.Contains(strings.ToLower(l.City), strings.ToLower(f.City)) {
		return false
	}
	if f.WageType != "" && l.WageType != f.WageType {
		return false
	}

	from, to := 0.0, math.Inf(1)
	if f.WageFrom != nil {
		from = *f.WageFrom
	}
	if f.WageTo != nil {
		to = *f.WageTo
	}
	if l.Wage < from || l.Wage > to {
		return false
	}

	created := day(l.CreatedAt)
	if f.DateFrom != nil && created.Before(day(*f.DateFrom)) {
		return false
	}
	if f.DateTo != nil && created.After(day(*f.DateTo)) {
		return false
	}
	return true
}

// day truncates t to its UTC calendar date.
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
