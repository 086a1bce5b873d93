package form

import (
	"context"
	"errors"
	"testing"
)

func TestWizard_StepValidatesOnlyItsFields(t *testing.T) {
	f := NewListingForm(New(), map[string]string{
		FieldCity:    "Novi Sad",
		FieldAddress: "Zmaj Jovina 3",
		FieldPhone:   "abc",
	})
	w := NewWizard(f, ListingSteps)

	if _, err := w.Next(context.Background(), nil); err != nil {
		t.Fatalf("location step: %v (errors %v)", err, f.Errors)
	}
	if w.Index() != 1 {
		t.Fatalf("Index() = %d, want 1", w.Index())
	}
	if _, ok := f.Errors[FieldDescription]; ok {
		t.Error("description must not be validated on the location step")
	}

	if _, err := w.Next(context.Background(), nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("phone step error = %v, want ErrInvalid", err)
	}
	if w.Index() != 1 {
		t.Errorf("invalid step must not advance, Index() = %d", w.Index())
	}
}

func TestWizard_BackNeverValidates(t *testing.T) {
	f := NewListingForm(New(), validListingValues())
	w := NewWizard(f, ListingSteps)
	if _, err := w.Next(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	f.Set(FieldCity, "")
	f.Set(FieldPhone, "abc")
	w.Back()
	w.Back()

	if w.Index() != 0 {
		t.Errorf("Index() = %d, want 0", w.Index())
	}
	if len(f.Errors) != 0 {
		t.Errorf("Back() produced errors %v", f.Errors)
	}
}

func TestWizard_FinalStepInserts(t *testing.T) {
	f := NewListingForm(New(), validListingValues())
	w := NewWizard(f, ListingSteps)

	inserts := 0
	insert := func(context.Context) error {
		inserts++
		return nil
	}
	for i := 0; i < len(ListingSteps)-1; i++ {
		submitted, err := w.Next(context.Background(), insert)
		if err != nil || submitted {
			t.Fatalf("step %d: submitted=%v err=%v", i+1, submitted, err)
		}
	}
	if inserts != 0 {
		t.Fatalf("insert called before the final step")
	}

	submitted, err := w.Next(context.Background(), insert)
	if err != nil || !submitted {
		t.Fatalf("final step: submitted=%v err=%v", submitted, err)
	}
	if inserts != 1 {
		t.Errorf("insert called %d times, want 1", inserts)
	}
}

func TestStepByNumber(t *testing.T) {
	s, err := StepByNumber(ListingSteps, 7)
	if err != nil || s.Name != "description" {
		t.Errorf("StepByNumber(7) = %v, %v", s, err)
	}
	for _, n := range []int{0, 8} {
		if _, err := StepByNumber(ListingSteps, n); err == nil {
			t.Errorf("StepByNumber(%d) expected error", n)
		}
	}
}
