package form

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"quicktasker/gig-service/internal/model"
)

// Listing form field names.
const (
	FieldCity          = "city"
	FieldAddress       = "address"
	FieldLat           = "lat"
	FieldLng           = "lng"
	FieldPhone         = "phone"
	FieldWage          = "wage"
	FieldWageType      = "wage_type"
	FieldDateFrom      = "date_from"
	FieldDateTo        = "date_to"
	FieldHoursPerDay   = "hours_per_day"
	FieldWorkersNeeded = "workers_needed"
	FieldDescription   = "description"
)

const dateTag = "datetime=2006-01-02"

// MaxWorkersNeeded is the largest worker count the jobs table can hold.
const MaxWorkersNeeded = math.MaxInt32

// ListingFields is the rule set of the job posting form.
var ListingFields = []Field{
	{Name: FieldCity, Required: true, RequiredMsg: "Please enter the city"},
	{Name: FieldAddress, Required: true, RequiredMsg: "Please enter the address"},
	{Name: FieldLat, Rules: []Rule{{"numeric", "Invalid latitude"}}},
	{Name: FieldLng, Rules: []Rule{{"numeric", "Invalid longitude"}}},
	{
		Name: FieldPhone, Required: true, RequiredMsg: "Please enter a phone number",
		Rules: []Rule{{"phone", "Please enter a valid phone number"}},
	},
	{
		Name: FieldWage, Required: true, RequiredMsg: "Please enter the wage",
		Rules: []Rule{{"numeric", "Wage must be a number"}},
		Check: nonNegative(FieldWage, "Wage must not be negative"),
	},
	{
		Name: FieldWageType, Required: true, RequiredMsg: "Please choose how the wage is paid",
		Rules: []Rule{{"oneof=per_day per_hour", "Wage type must be per_day or per_hour"}},
	},
	{Name: FieldDateFrom, Rules: []Rule{{dateTag, "Start date must be YYYY-MM-DD"}}},
	{
		Name:  FieldDateTo,
		Rules: []Rule{{dateTag, "End date must be YYYY-MM-DD"}},
		Check: func(values map[string]string) string {
			from, err := time.Parse(time.DateOnly, values[FieldDateFrom])
			if err != nil {
				return ""
			}
			to, _ := time.Parse(time.DateOnly, values[FieldDateTo])
			if to.Before(from) {
				return "End date must not be before the start date"
			}
			return ""
		},
	},
	{
		Name:  FieldHoursPerDay,
		Rules: []Rule{{"numeric", "Hours per day must be a number"}},
		Check: nonNegative(FieldHoursPerDay, "Hours per day must not be negative"),
	},
	{
		Name:  FieldWorkersNeeded,
		Rules: []Rule{{"number", "Worker count must be a whole number"}},
		Check: func(values map[string]string) string {
			n, err := strconv.ParseInt(strings.TrimSpace(values[FieldWorkersNeeded]), 10, 64)
			if err != nil || n > MaxWorkersNeeded {
				return "Worker count is too large"
			}
			return ""
		},
	},
	{Name: FieldDescription, Required: true, RequiredMsg: "Please describe the job"},
}

// nonNegative checks that the numeric value of field is not below zero.
func nonNegative(field, msg string) func(map[string]string) string {
	return func(values map[string]string) string {
		v, err := strconv.ParseFloat(strings.TrimSpace(values[field]), 64)
		if err == nil && v < 0 {
			return msg
		}
		return ""
	}
}

// NewListingForm returns a job posting form seeded with values.
func NewListingForm(val *Validator, values map[string]string) *Form {
	return NewForm(val, ListingFields, values)
}

// DecodeValues reads a JSON object and renders every scalar member as a
// string, so that {"wage": 1000} and {"wage": "1000"} are equivalent.
func DecodeValues(r io.Reader) (map[string]string, error) {
	var raw map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode form: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		default:
			return nil, fmt.Errorf("decode form: field %q must be a scalar", k)
		}
	}
	return out, nil
}

// ListingFromForm converts a validated listing form into a Listing. The
// poster's identity fields are filled by the caller.
func ListingFromForm(f *Form) (model.Listing, error) {
	wage, err := strconv.ParseFloat(f.Value(FieldWage), 64)
	if err != nil {
		return model.Listing{}, fmt.Errorf("wage: %w", err)
	}
	wt, err := model.ParseWageType(f.Value(FieldWageType))
	if err != nil {
		return model.Listing{}, err
	}

	l := model.Listing{
		City:        f.Value(FieldCity),
		Address:     f.Value(FieldAddress),
		Description: f.Value(FieldDescription),
		UserPhone:   f.Value(FieldPhone),
		Wage:        wage,
		WageType:    wt,
		Applicants:  []string{},
		Status:      model.StatusOpen,
	}

	if l.Lat, err = optFloat(f.Value(FieldLat)); err != nil {
		return model.Listing{}, fmt.Errorf("lat: %w", err)
	}
	if l.Lng, err = optFloat(f.Value(FieldLng)); err != nil {
		return model.Listing{}, fmt.Errorf("lng: %w", err)
	}
	if l.HoursPerDay, err = optFloat(f.Value(FieldHoursPerDay)); err != nil {
		return model.Listing{}, fmt.Errorf("hours_per_day: %w", err)
	}
	if l.DateFrom, err = optDate(f.Value(FieldDateFrom)); err != nil {
		return model.Listing{}, fmt.Errorf("date_from: %w", err)
	}
	if l.DateTo, err = optDate(f.Value(FieldDateTo)); err != nil {
		return model.Listing{}, fmt.Errorf("date_to: %w", err)
	}
	if v := f.Value(FieldWorkersNeeded); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return model.Listing{}, fmt.Errorf("workers_needed: invalid value %q", v)
		}
		l.WorkersNeeded = &n
	}
	return l, nil
}

func optFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
