package questionnaire

import (
	"time"

	"github.com/google/uuid"
)

// Questionnaire statuses.
const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Questionnaire types.
const (
	TypeScreening  = "screening"
	TypeAssessment = "assessment"
	TypeFollowUp   = "follow_up"
	TypeCustom     = "custom"
)

// Question answer kinds.
const (
	KindYesNo          = "yes_no"
	KindTrueFalse      = "true_false"
	KindMultipleChoice = "multiple_choice"
	KindShortAnswer    = "short_answer"
	KindAttachment     = "attachment"
)

var validStatuses = map[string]bool{
	StatusDraft:    true,
	StatusActive:   true,
	StatusArchived: true,
}

var validTypes = map[string]bool{
	TypeScreening:  true,
	TypeAssessment: true,
	TypeFollowUp:   true,
	TypeCustom:     true,
}

var validKinds = map[string]bool{
	KindYesNo:          true,
	KindTrueFalse:      true,
	KindMultipleChoice: true,
	KindShortAnswer:    true,
	KindAttachment:     true,
}

// Questionnaire maps to the questionnaire table. It owns an ordered forest of
// Questions; deleting a questionnaire cascades to its questions and options.
type Questionnaire struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Version     string    `db:"version" json:"version"`
	Status      string    `db:"status" json:"status"`
	Type        string    `db:"questionnaire_type" json:"questionnaire_type"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedBy   *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Question maps to the question table. ParentID and TriggerValue carry the
// branching rule: the question is shown only when the parent's submitted
// value equals TriggerValue. The parent pointer is a mutable foreign key, so
// acyclicity is re-checked on every graph construction rather than trusted.
type Question struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	QuestionnaireID uuid.UUID  `db:"questionnaire_id" json:"questionnaire_id"`
	Text            string     `db:"question_text" json:"question_text"`
	HelpText        string     `db:"help_text" json:"help_text,omitempty"`
	Kind            string     `db:"question_type" json:"question_type"`
	IsRequired      bool       `db:"is_required" json:"is_required"`
	Order           int        `db:"display_order" json:"display_order"`
	ParentID        *uuid.UUID `db:"parent_id" json:"parent_id,omitempty"`
	TriggerValue    *string    `db:"trigger_value" json:"trigger_value,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// IsRoot reports whether the question has no parent. Root questions are
// always shown.
func (q *Question) IsRoot() bool { return q.ParentID == nil }

// HasOptions reports whether the question kind carries declared options.
func (q *Question) HasOptions() bool { return q.Kind == KindMultipleChoice }

// QuestionOption maps to the question_option table. Value is what a
// submission carries when the option is selected; Text (or the image) is what
// the respondent sees.
type QuestionOption struct {
	ID         uuid.UUID `db:"id" json:"id"`
	QuestionID uuid.UUID `db:"question_id" json:"question_id"`
	Text       string    `db:"option_text" json:"option_text"`
	Value      string    `db:"option_value" json:"option_value"`
	ImageURL   *string   `db:"image_url" json:"image_url,omitempty"`
	Order      int       `db:"display_order" json:"display_order"`
}
