package form

import (
	"context"
	"fmt"
)

// Step is one page of a multi-step form.
type Step struct {
	Name   string
	Fields []string
}

// ListingSteps is the seven-step job posting flow.
var ListingSteps = []Step{
	{Name: "location", Fields: []string{FieldCity, FieldAddress, FieldLat, FieldLng}},
	{Name: "phone", Fields: []string{FieldPhone}},
	{Name: "wage", Fields: []string{FieldWage, FieldWageType}},
	{Name: "dates", Fields: []string{FieldDateFrom, FieldDateTo}},
	{Name: "hours", Fields: []string{FieldHoursPerDay}},
	{Name: "workers", Fields: []string{FieldWorkersNeeded}},
	{Name: "description", Fields: []string{FieldDescription}},
}

// StepByNumber returns the 1-based step n of steps.
func StepByNumber(steps []Step, n int) (Step, error) {
	if n < 1 || n > len(steps) {
		return Step{}, fmt.Errorf("step must be between 1 and %d", len(steps))
	}
	return steps[n-1], nil
}

// Wizard walks a Form through steps. Only the final step submits.
type Wizard struct {
	Form    *Form
	steps   []Step
	current int
}

// NewWizard starts at the first step.
func NewWizard(f *Form, steps []Step) *Wizard {
	return &Wizard{Form: f, steps: steps}
}

// ResumeWizard returns a Wizard positioned on the 1-based step n, for flows
// that carry the collected values from request to request.
func ResumeWizard(f *Form, steps []Step, n int) (*Wizard, error) {
	if _, err := StepByNumber(steps, n); err != nil {
		return nil, err
	}
	return &Wizard{Form: f, steps: steps, current: n - 1}, nil
}

// Index returns the 0-based index of the current step.
func (w *Wizard) Index() int { return w.current }

// Step returns the current step.
func (w *Wizard) Step() Step { return w.steps[w.current] }

// Last reports whether the current step is the final one.
func (w *Wizard) Last() bool { return w.current == len(w.steps)-1 }

// Next validates the fields of the current step and advances. On the final
// step it submits the whole form through insert and reports submitted=true
// on success.
func (w *Wizard) Next(ctx context.Context, insert func(context.Context) error) (submitted bool, err error) {
	if !w.Form.ValidateFields(w.Step().Fields...) {
		return false, ErrInvalid
	}
	if !w.Last() {
		w.current++
		return false, nil
	}
	if err := w.Form.Submit(ctx, insert); err != nil {
		return false, err
	}
	return true, nil
}

// Back moves to the previous step without validating anything.
func (w *Wizard) Back() {
	if w.current > 0 {
		w.current--
	}
}
