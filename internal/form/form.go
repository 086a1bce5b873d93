// Package form collects structured input, validates it field by field and
// submits it only when every field is valid.
package form

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"

	"quicktasker/gig-service/internal/apperr"
)

var (
	// ErrInvalid is returned by Submit and Wizard.Next when a field failed validation.
	ErrInvalid = errors.New("form has errors")
	// ErrSubmitting is returned when Submit is called while a submission is in flight.
	ErrSubmitting = errors.New("form is already submitting")
)

// State is the submission state of a Form.
type State int

const (
	Idle State = iota
	Submitting
	Done
)

// Rule pairs a validator tag with the message shown when it fails.
type Rule struct {
	Tag     string
	Message string
}

// Field describes one input. Rules run in order on the trimmed value and
// stop at the first failure; optional fields skip their rules when empty.
type Field struct {
	Name        string
	Required    bool
	RequiredMsg string
	Rules       []Rule
	// Check runs after Rules pass and sees every value of the form.
	Check func(values map[string]string) string
}

// Form holds field values and the per-field errors of the last validation.
type Form struct {
	Values      map[string]string
	Errors      map[string]string
	SubmitError string

	fields []Field
	val    *Validator

	mu    sync.Mutex
	state State
}

// NewForm returns an empty form over fields.
func NewForm(val *Validator, fields []Field, values map[string]string) *Form {
	f := &Form{
		Values: make(map[string]string, len(fields)),
		Errors: make(map[string]string),
		fields: fields,
		val:    val,
	}
	maps.Copy(f.Values, values)
	return f
}

// Set stores value under name.
func (f *Form) Set(name, value string) { f.Values[name] = value }

// Value returns the trimmed value of name.
func (f *Form) Value(name string) string { return strings.TrimSpace(f.Values[name]) }

// Validate checks every field and reports whether none failed.
func (f *Form) Validate() bool {
	clear(f.Errors)
	for _, fd := range f.fields {
		f.validateField(fd)
	}
	return len(f.Errors) == 0
}

// ValidateFields checks only the named fields. Errors of other fields are
// left as they were.
func (f *Form) ValidateFields(names ...string) bool {
	ok := true
	for _, name := range names {
		delete(f.Errors, name)
		for _, fd := range f.fields {
			if fd.Name == name {
				if !f.validateField(fd) {
					ok = false
				}
			}
		}
	}
	return ok
}

func (f *Form) validateField(fd Field) bool {
	v := f.Value(fd.Name)
	if v == "" {
		if fd.Required {
			f.Errors[fd.Name] = fd.RequiredMsg
			return false
		}
		return true
	}
	for _, r := range fd.Rules {
		if errs := f.val.Validate(v, r.Tag); len(errs) > 0 {
			f.Errors[fd.Name] = r.Message
			return false
		}
	}
	if fd.Check != nil {
		if msg := fd.Check(f.Values); msg != "" {
			f.Errors[fd.Name] = msg
			return false
		}
	}
	return true
}

// State returns the current submission state.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Submit validates the form and, when valid, calls insert. Invalid forms
// never reach insert. A failed insert keeps every value, records the raw
// error in SubmitError and returns the form to Idle so it can be corrected
// and resubmitted.
func (f *Form) Submit(ctx context.Context, insert func(context.Context) error) error {
	f.mu.Lock()
	if f.state == Submitting {
		f.mu.Unlock()
		return ErrSubmitting
	}
	f.SubmitError = ""
	if !f.Validate() {
		f.mu.Unlock()
		return ErrInvalid
	}
	f.state = Submitting
	f.mu.Unlock()

	err := insert(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.SubmitError = err.Error()
		f.state = Idle
		return err
	}
	f.state = Done
	return nil
}

// Err returns the current field errors as an apperr.ValidationError, or nil
// when there are none.
func (f *Form) Err() error {
	if len(f.Errors) == 0 {
		return nil
	}
	return &apperr.ValidationError{Msg: "Please correct the highlighted fields", Fields: maps.Clone(f.Errors)}
}
