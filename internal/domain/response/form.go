package response

import (
	"github.com/google/uuid"

	"github.com/cliniq/cliniq/internal/domain/questionnaire"
)

// Choice is one selectable answer of a choice field. Value is what a
// submission carries when the choice is picked; Label (or the image) is what
// the respondent sees.
type Choice struct {
	Value    string  `json:"value"`
	Label    string  `json:"label"`
	OptionID string  `json:"option_id,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
}

// Field is the typed descriptor a client renders one question from. Initial
// carries the stored answer on re-edit, in the same raw form a submission
// would carry.
type Field struct {
	QuestionID    uuid.UUID  `json:"question_id"`
	Label         string     `json:"label"`
	HelpText      string     `json:"help_text,omitempty"`
	DisplayNumber string     `json:"display_number"`
	Kind          string     `json:"question_type"`
	Required      bool       `json:"is_required"`
	Multiline     bool       `json:"multiline,omitempty"`
	Choices       []Choice   `json:"choices,omitempty"`
	Initial       *string    `json:"initial,omitempty"`
	ParentID      *uuid.UUID `json:"parent_id,omitempty"`
	TriggerValue  *string    `json:"trigger_value,omitempty"`
}

var yesNoChoices = []Choice{
	{Value: "yes", Label: "Yes"},
	{Value: "no", Label: "No"},
}

var trueFalseChoices = []Choice{
	{Value: "true", Label: "True"},
	{Value: "false", Label: "False"},
}

// BuildFields renders every question of the forest into a field descriptor,
// in display order. options maps question ID to its declared options; answers
// maps question ID to a stored answer for pre-fill, nil on first render.
//
// A multiple_choice question with no declared options degrades to a free-text
// field rather than an unanswerable empty select. Attachment fields are never
// pre-filled; the stored file key stays server-side.
func BuildFields(g *questionnaire.Graph, options map[uuid.UUID][]*questionnaire.QuestionOption, answers map[uuid.UUID]*Answer) []Field {
	numbers := g.DisplayNumbers()
	ordered := g.Ordered()

	fields := make([]Field, 0, len(ordered))
	for _, q := range ordered {
		f := Field{
			QuestionID:    q.ID,
			Label:         q.Text,
			HelpText:      q.HelpText,
			DisplayNumber: numbers[q.ID],
			Kind:          q.Kind,
			Required:      q.IsRequired,
			ParentID:      q.ParentID,
			TriggerValue:  q.TriggerValue,
		}

		switch q.Kind {
		case questionnaire.KindYesNo:
			f.Choices = yesNoChoices
		case questionnaire.KindTrueFalse:
			f.Choices = trueFalseChoices
		case questionnaire.KindMultipleChoice:
			for _, o := range options[q.ID] {
				f.Choices = append(f.Choices, Choice{
					Value:    o.ID.String(),
					Label:    o.Text,
					OptionID: o.ID.String(),
					ImageURL: o.ImageURL,
				})
			}
		case questionnaire.KindShortAnswer:
			f.Multiline = true
		}

		if a, ok := answers[q.ID]; ok && q.Kind != questionnaire.KindAttachment {
			if v, set := a.Value(); set {
				f.Initial = &v
			}
		}

		fields = append(fields, f)
	}
	return fields
}
