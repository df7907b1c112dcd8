package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hay-kot/criterio"
)

// Validate checks a draft before it is applied anywhere.
func (d Draft) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if strings.TrimSpace(d.Title) == "" {
		errs = errs.Append("title", errors.New("title is required"))
	}
	if d.Priority != "" && !d.Priority.IsValid() {
		errs = errs.Append("priority", fmt.Errorf("unknown priority %q", d.Priority))
	}
	if err := validDate(d.DueDate); err != nil {
		errs = errs.Append("dueDate", err)
	}

	return invalid(errs.ToError())
}

// Validate checks that every set field of the patch holds a legal value.
func (p Patch) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		errs = errs.Append("title", errors.New("title cannot be empty"))
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		errs = errs.Append("category", errors.New("category cannot be empty"))
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		errs = errs.Append("priority", fmt.Errorf("unknown priority %q", *p.Priority))
	}
	if p.DueDate != nil {
		if err := validDate(*p.DueDate); err != nil {
			errs = errs.Append("dueDate", err)
		}
	}
	if p.Order != nil && *p.Order < 0 {
		errs = errs.Append("order", errors.New("order cannot be negative"))
	}

	return invalid(errs.ToError())
}

// Validate checks a category before it is persisted.
func (c Category) Validate() error {
	var errs criterio.FieldErrorsBuilder
	if strings.TrimSpace(c.Name) == "" {
		errs = errs.Append("name", errors.New("name is required"))
	}
	return invalid(errs.ToError())
}

func validDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return nil
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, err)
}
