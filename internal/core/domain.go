package core

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used on input and in storage.
const DateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID          int64  `json:"id"`
		Date        Date   `json:"date"`
		Amount      Money  `json:"amount"`
		Category    string `json:"category"`
		Subcategory string `json:"subcategory"` // Scoped to Category
		Note        string `json:"note,omitempty"`
	}

	Saving struct {
		ID     int64  `json:"id"`
		Date   Date   `json:"date"`
		Amount Money  `json:"amount"`
		Source string `json:"source"`
		Note   string `json:"note,omitempty"`
		GoalID int64  `json:"goal_id,omitempty"` // Zero unless the saving is a goal contribution
	}

	Budget struct {
		ID       int64  `json:"id"`
		Category string `json:"category"`
		Period   Period `json:"period"`
		Limit    Money  `json:"limit"`
	}

	Goal struct {
		ID              int64  `json:"id"`
		Name            string `json:"name"`
		TargetAmount    Money  `json:"target_amount"`
		TargetDate      Date   `json:"target_date"`
		CurrentProgress Money  `json:"current_progress"`
		CreatedDate     Date   `json:"created_date"`
		Note            string `json:"note,omitempty"`
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// Period returns the year+month the date falls into.
func (d Date) Period() Period {
	return Period{Year: d.Year(), Month: int(d.Month())}
}

// DaysUntil returns the whole number of days from d to other (negative if other is earlier).
// Dates are UTC midnights, so the difference in seconds is an exact multiple of a day.
func (d Date) DaysUntil(other Date) int {
	return int((other.Unix() - d.Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

// MarshalJSON overrides the promoted time.Time encoding.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	return d.UnmarshalText([]byte(strings.Trim(string(b), `"`)))
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(e.Subcategory) == "" {
		return ErrEmptySubcategory
	}
	return validateNote(e.Note)
}

func (s Saving) Validate() error {
	if err := s.Date.Validate(); err != nil {
		return err
	}
	if err := s.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(s.Source) == "" {
		return ErrEmptySource
	}
	return validateNote(s.Note)
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if err := b.Period.Validate(); err != nil {
		return err
	}
	return b.Limit.Validate()
}

// Validate checks the stored shape of a goal. Whether the target date lies in
// the future is checked separately against the creation clock.
func (g Goal) Validate() error {
	if len(strings.TrimSpace(g.Name)) == 0 {
		return ErrEmptyName
	}
	if len(g.Name) > 200 {
		return fmt.Errorf("%w: name too long (max 200 characters)", ErrValidation)
	}
	if err := g.TargetAmount.Validate(); err != nil {
		return err
	}
	if err := g.TargetDate.Validate(); err != nil {
		return err
	}
	if g.CurrentProgress.Cents < 0 {
		return ErrNegativeProgress
	}
	return validateNote(g.Note)
}

func validateNote(note string) error {
	if len(note) > 500 {
		return fmt.Errorf("%w: note too long (max 500 characters)", ErrValidation)
	}
	return nil
}
