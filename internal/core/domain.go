package core

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DateLayout is the ISO-8601 calendar date form used everywhere a date is
// stored or exchanged. Lexical order of these strings equals chronological
// order, which is what the BETWEEN queries rely on.
const DateLayout = "2006-01-02"

type (
	Role string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is a single spending record owned by exactly one user.
	Expense struct {
		ID          int64
		UserID      string
		Date        Date
		Category    string
		Amount      Money
		Description string
	}

	// ExpensePatch carries the optional fields of an expense edit. Nil
	// means "leave unchanged".
	ExpensePatch struct {
		Amount      *Money
		Category    *string
		Description *string
	}

	// DeleteCriteria selects expenses for deletion. At least one field
	// must be set; deleting a user's whole history by omission is not
	// allowed.
	DeleteCriteria struct {
		ID   *int64
		Date *Date
	}

	// DayTotal is the summed spending of one calendar day.
	DayTotal struct {
		Date  Date
		Total Money
	}

	// MemoryEntry is one side of a conversational turn in a user's
	// history.
	MemoryEntry struct {
		ID        int64
		UserID    string
		Role      Role
		Text      string
		CreatedAt time.Time
	}
)

var (
	ErrInvalidDate           = errors.New("invalid date")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidRole           = errors.New("invalid role")
	ErrEmptyCategory         = errors.New("empty category")
	ErrEmptyUserID           = errors.New("empty user id")
	ErrNoEditFields          = errors.New("no fields to edit")
	ErrMissingDeleteCriteria = errors.New("delete requires an expense id or a date")
)

// ParseDate parses an ISO-8601 YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (r Role) Validate() error {
	switch r {
	case RoleUser, RoleAssistant:
		return nil
	}
	return ErrInvalidRole
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrEmptyUserID
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if len(e.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Amount == nil && p.Category == nil && p.Description == nil
}

// Validate checks that at least one delete criterion is present.
func (c DeleteCriteria) Validate() error {
	if c.ID == nil && c.Date == nil {
		return ErrMissingDeleteCriteria
	}
	return nil
}
