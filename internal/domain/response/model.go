package response

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Response maps to the response table: one respondent's pass over one
// questionnaire. Respondent identity is free-form; PatientID and SessionID
// are optional links into the wider record.
type Response struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	QuestionnaireID uuid.UUID  `db:"questionnaire_id" json:"questionnaire_id"`
	Respondent      *string    `db:"respondent" json:"respondent,omitempty"`
	PatientID       *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	SessionID       *uuid.UUID `db:"session_id" json:"session_id,omitempty"`
	IsComplete      bool       `db:"is_complete" json:"is_complete"`
	StartedAt       time.Time  `db:"started_at" json:"started_at"`
	SubmittedAt     *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	IPAddress       *string    `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent       *string    `db:"user_agent" json:"user_agent,omitempty"`
}

// Answer maps to the answer table. One row per (response, question); the
// value lives in exactly one typed slot, chosen by the question kind. setValue
// clears every slot before writing so a kind change on the question cannot
// leave a stale value behind.
type Answer struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	ResponseID   uuid.UUID  `db:"response_id" json:"response_id"`
	QuestionID   uuid.UUID  `db:"question_id" json:"question_id"`
	TextAnswer   *string    `db:"text_answer" json:"text_answer,omitempty"`
	NumberAnswer *float64   `db:"number_answer" json:"number_answer,omitempty"`
	DateAnswer   *time.Time `db:"date_answer" json:"date_answer,omitempty"`
	FileAnswer   *string    `db:"file_answer" json:"file_answer,omitempty"`
	OptionID     *uuid.UUID `db:"option_id" json:"option_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

func (a *Answer) clear() {
	a.TextAnswer = nil
	a.NumberAnswer = nil
	a.DateAnswer = nil
	a.FileAnswer = nil
	a.OptionID = nil
}

func (a *Answer) setText(v string) {
	a.clear()
	a.TextAnswer = &v
}

func (a *Answer) setFile(key string) {
	a.clear()
	a.FileAnswer = &key
}

func (a *Answer) setOption(id uuid.UUID) {
	a.clear()
	a.OptionID = &id
}

// Value returns the stored answer rendered back to its raw string form, and
// false when every slot is empty. Option answers come back as the option ID,
// matching what a choice submission carries.
func (a *Answer) Value() (string, bool) {
	switch {
	case a.TextAnswer != nil:
		return *a.TextAnswer, true
	case a.FileAnswer != nil:
		return *a.FileAnswer, true
	case a.OptionID != nil:
		return a.OptionID.String(), true
	case a.NumberAnswer != nil:
		return formatNumber(*a.NumberAnswer), true
	case a.DateAnswer != nil:
		return a.DateAnswer.Format("2006-01-02"), true
	}
	return "", false
}
