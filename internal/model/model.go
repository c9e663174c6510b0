package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type (
	UserID string
	MemoID string

	User struct {
		ID    UserID
		Email string
	}

	Memo struct {
		ID         MemoID
		Title      string
		Details    string
		ReminderAt time.Time
	}

	// Reminder is a single notification trigger. Key is the memo id, so a
	// user has at most one trigger per memo.
	Reminder struct {
		UserID UserID
		Key    MemoID
		Title  string
		Body   string
		FireAt time.Time
	}

	// DueReminder is a pending trigger picked up by the notifier.
	DueReminder struct {
		Reminder
		Revision int64
		ChatID   int64
	}

	// FiredReminder acknowledges delivery of a trigger revision.
	FiredReminder struct {
		UserID   UserID `json:"user_id"`
		Key      MemoID `json:"memo_id"`
		Revision int64  `json:"revision"`
	}
)

func NewMemoID() MemoID {
	return MemoID(uuid.New().String())
}

// NewMemo returns a memo with a freshly generated id. Retries of a failed
// create must reuse the returned memo instead of calling NewMemo again.
func NewMemo(title, details string, reminderAt time.Time) Memo {
	return Memo{
		ID:         NewMemoID(),
		Title:      title,
		Details:    details,
		ReminderAt: reminderAt,
	}
}

func (m Memo) Validate() error {
	return m.validate(true)
}

// ValidateUntitled is Validate without the title check.
func (m Memo) ValidateUntitled() error {
	return m.validate(false)
}

func (m Memo) validate(requireTitle bool) error {
	if m.ID == "" {
		return fmt.Errorf("%w: memo id is empty", ErrValidation)
	}
	if requireTitle && strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("%w: memo title is empty", ErrValidation)
	}
	if m.ReminderAt.IsZero() {
		return fmt.Errorf("%w: memo reminder time is not set", ErrValidation)
	}
	return nil
}

// ReminderFor derives the trigger for memo from its current content.
func ReminderFor(userID UserID, memo Memo) Reminder {
	return Reminder{
		UserID: userID,
		Key:    memo.ID,
		Title:  memo.Title,
		Body:   memo.Details,
		FireAt: memo.ReminderAt,
	}
}
