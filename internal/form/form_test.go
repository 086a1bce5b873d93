package form

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func validListingValues() map[string]string {
	return map[string]string{
		FieldCity:          "Novi Sad",
		FieldAddress:       "Bulevar oslobodjenja 1",
		FieldPhone:         "+381 64 123 4567",
		FieldWage:          "1000",
		FieldWageType:      "per_day",
		FieldDateFrom:      "2024-01-05",
		FieldDateTo:        "2024-01-07",
		FieldHoursPerDay:   "8",
		FieldWorkersNeeded: "2",
		FieldDescription:   "Help moving furniture",
	}
}

func TestValidate_RequiredFieldsTrimmed(t *testing.T) {
	values := validListingValues()
	values[FieldCity] = "   "
	values[FieldDescription] = ""
	f := NewListingForm(New(), values)

	if f.Validate() {
		t.Fatal("Validate() = true, want false")
	}
	want := map[string]string{
		FieldCity:        "Please enter the city",
		FieldDescription: "Please describe the job",
	}
	if diff := cmp.Diff(want, f.Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_FieldFormats(t *testing.T) {
	cases := []struct {
		field string
		value string
		want  string
	}{
		{FieldPhone, "abc", "Please enter a valid phone number"},
		{FieldWage, "a lot", "Wage must be a number"},
		{FieldWageType, "per_week", "Wage type must be per_day or per_hour"},
		{FieldDateFrom, "05.01.2024", "Start date must be YYYY-MM-DD"},
		{FieldDateTo, "2024-01-01", "End date must not be before the start date"},
		{FieldWorkersNeeded, "-1", "Worker count must be a whole number"},
		{FieldHoursPerDay, "eight", "Hours per day must be a number"},
		{FieldWage, "-5", "Wage must not be negative"},
		{FieldHoursPerDay, "-1.5", "Hours per day must not be negative"},
		{FieldWorkersNeeded, "99999999999", "Worker count is too large"},
		{FieldWorkersNeeded, "99999999999999999999", "Worker count is too large"},
	}
	for _, c := range cases {
		values := validListingValues()
		values[c.field] = c.value
		f := NewListingForm(New(), values)
		if f.Validate() {
			t.Errorf("%s=%q: Validate() = true, want false", c.field, c.value)
			continue
		}
		if got := f.Errors[c.field]; got != c.want {
			t.Errorf("%s=%q: error = %q, want %q", c.field, c.value, got, c.want)
		}
		if len(f.Errors) != 1 {
			t.Errorf("%s=%q: unexpected extra errors %v", c.field, c.value, f.Errors)
		}
	}
}

func TestValidate_NumericBounds(t *testing.T) {
	for field, value := range map[string]string{
		FieldWage:          "0",
		FieldHoursPerDay:   "0",
		FieldWorkersNeeded: "2147483647",
	} {
		values := validListingValues()
		values[field] = value
		if f := NewListingForm(New(), values); !f.Validate() {
			t.Errorf("%s=%q: Validate() = false, errors %v", field, value, f.Errors)
		}
	}
}

func TestValidate_OptionalFieldsMayBeEmpty(t *testing.T) {
	values := validListingValues()
	for _, k := range []string{FieldDateFrom, FieldDateTo, FieldHoursPerDay, FieldWorkersNeeded} {
		delete(values, k)
	}
	f := NewListingForm(New(), values)
	if !f.Validate() {
		t.Errorf("Validate() = false, errors %v", f.Errors)
	}
}

func TestSubmit_InvalidNeverInserts(t *testing.T) {
	values := validListingValues()
	values[FieldPhone] = "abc"
	f := NewListingForm(New(), values)

	called := false
	err := f.Submit(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Submit() error = %v, want ErrInvalid", err)
	}
	if called {
		t.Error("insert must not be called for an invalid form")
	}
	if f.Errors[FieldPhone] == "" {
		t.Error("phone error should stay visible")
	}
	if f.State() != Idle {
		t.Errorf("State() = %v, want Idle", f.State())
	}
}

func TestSubmit_FailureKeepsValues(t *testing.T) {
	f := NewListingForm(New(), validListingValues())

	err := f.Submit(context.Background(), func(context.Context) error {
		return errors.New(`new row violates check constraint "jobs_wage_type_check"`)
	})
	if err == nil {
		t.Fatal("Submit() expected error")
	}
	if !strings.Contains(f.SubmitError, "jobs_wage_type_check") {
		t.Errorf("SubmitError = %q, want the raw store error", f.SubmitError)
	}
	if f.Values[FieldCity] != "Novi Sad" {
		t.Error("values should be kept for correction")
	}
	if f.State() != Idle {
		t.Errorf("State() = %v, want Idle", f.State())
	}

	if err := f.Submit(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if f.State() != Done || f.SubmitError != "" {
		t.Errorf("after success State() = %v, SubmitError = %q", f.State(), f.SubmitError)
	}
}

func TestSubmit_RejectsConcurrentSubmission(t *testing.T) {
	f := NewListingForm(New(), validListingValues())
	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error)

	go func() {
		done <- f.Submit(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := f.Submit(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrSubmitting) {
		t.Errorf("second Submit() error = %v, want ErrSubmitting", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("first Submit() error = %v", err)
	}
}

func TestListingFromForm(t *testing.T) {
	f := NewListingForm(New(), validListingValues())
	if !f.Validate() {
		t.Fatalf("Validate() errors %v", f.Errors)
	}
	l, err := ListingFromForm(f)
	if err != nil {
		t.Fatal(err)
	}
	if l.Wage != 1000 || l.WageType != "per_day" {
		t.Errorf("wage = %v %v", l.Wage, l.WageType)
	}
	if l.WorkersNeeded == nil || *l.WorkersNeeded != 2 {
		t.Errorf("WorkersNeeded = %v, want 2", l.WorkersNeeded)
	}
	if l.DateTo == nil || l.DateTo.Day() != 7 {
		t.Errorf("DateTo = %v", l.DateTo)
	}
	if l.Lat != nil {
		t.Errorf("Lat = %v, want nil", *l.Lat)
	}
}

func TestDecodeValues(t *testing.T) {
	got, err := DecodeValues(strings.NewReader(`{"wage": 1000, "city": "Belgrade", "lat": 44.8125, "hours_per_day": null}`))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"wage": "1000", "city": "Belgrade", "lat": "44.8125", "hours_per_day": ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DecodeValues mismatch (-want +got):\n%s", diff)
	}

	if _, err := DecodeValues(strings.NewReader(`{"applicants": ["a"]}`)); err == nil {
		t.Error("DecodeValues with an array member expected error")
	}
}
