package response

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cliniq/cliniq/internal/domain/questionnaire"
)

// QuestionnaireSource is what the submission pipeline needs from the
// questionnaire domain: the record itself, its built question graph, and the
// declared options. *questionnaire.Service satisfies it.
type QuestionnaireSource interface {
	Get(ctx context.Context, id uuid.UUID) (*questionnaire.Questionnaire, error)
	Forest(ctx context.Context, id uuid.UUID) (*questionnaire.Graph, error)
	Options(ctx context.Context, id uuid.UUID) (map[uuid.UUID][]*questionnaire.QuestionOption, error)
}

// Submission states, in pipeline order. A submission ends persisted or
// rejected; the intermediate states exist for logging and for the result
// payload.
const (
	StateReceived  = "received"
	StateEvaluated = "evaluated"
	StateValidated = "validated"
	StatePersisted = "persisted"
	StateRejected  = "rejected"
)

// Field error reasons.
const (
	ReasonRequired      = "required"
	ReasonInvalidChoice = "invalid_choice"
)

// FieldError is one validation failure attributed to a question. Only active
// questions can carry one; errors raised against questions that turn out
// inactive are discarded before validation completes.
type FieldError struct {
	QuestionID uuid.UUID `json:"question_id"`
	Reason     string    `json:"reason"`
	Message    string    `json:"message"`
}

// SubmitResult is the outcome of one submission pass. On rejection no write
// has happened and FieldErrors explains why; on persistence Response is the
// stored record and Answers the rows now on disk.
type SubmitResult struct {
	State       string       `json:"state"`
	Response    *Response    `json:"response,omitempty"`
	Answers     []*Answer    `json:"answers,omitempty"`
	FieldErrors []FieldError `json:"field_errors,omitempty"`
}

// SubmitRequest carries one submission: the raw answer per question ID plus
// respondent identity. ResponseID is set when re-editing an existing
// response.
type SubmitRequest struct {
	ResponseID *uuid.UUID        `json:"response_id,omitempty"`
	Respondent *string           `json:"respondent,omitempty"`
	PatientID  *uuid.UUID        `json:"patient_id,omitempty"`
	SessionID  *uuid.UUID        `json:"session_id,omitempty"`
	Answers    map[string]string `json:"answers"`

	IPAddress *string `json:"-"`
	UserAgent *string `json:"-"`
}

var ErrQuestionnaireNotOpen = fmt.Errorf("questionnaire is not open for responses")

type Service struct {
	repo Repository
	qs   QuestionnaireSource
	log  zerolog.Logger
}

func NewService(repo Repository, qs QuestionnaireSource, log zerolog.Logger) *Service {
	return &Service{repo: repo, qs: qs, log: log}
}

// parseRaw maps submitted keys onto questions of the forest. Values are
// whitespace-trimmed; keys that are not UUIDs or name no question in the
// forest are dropped.
func (s *Service) parseRaw(g *questionnaire.Graph, answers map[string]string) questionnaire.RawAnswers {
	raw := make(questionnaire.RawAnswers, len(answers))
	for key, value := range answers {
		id, err := uuid.Parse(key)
		if err != nil {
			s.log.Debug().Str("key", key).Msg("ignoring non-uuid answer key")
			continue
		}
		if _, ok := g.Question(id); !ok {
			s.log.Debug().Str("question_id", key).Msg("ignoring answer to unknown question")
			continue
		}
		raw[id] = strings.TrimSpace(value)
	}
	return raw
}

var fixedChoiceValues = map[string]map[string]bool{
	questionnaire.KindYesNo:     {"yes": true, "no": true},
	questionnaire.KindTrueFalse: {"true": true, "false": true},
}

// validate checks the raw values of active questions only. Required is the
// only error an empty value can raise, and it needs the question to be both
// active and required; a non-empty fixed-choice value must be one of the
// declared choices.
func validate(g *questionnaire.Graph, raw questionnaire.RawAnswers, active map[uuid.UUID]bool) []FieldError {
	var errs []FieldError
	for _, q := range g.Ordered() {
		if !active[q.ID] {
			continue
		}
		value := raw[q.ID]
		if value == "" {
			if q.IsRequired {
				errs = append(errs, FieldError{
					QuestionID: q.ID,
					Reason:     ReasonRequired,
					Message:    "this question requires an answer",
				})
			}
			continue
		}
		if allowed, ok := fixedChoiceValues[q.Kind]; ok && !allowed[value] {
			errs = append(errs, FieldError{
				QuestionID: q.ID,
				Reason:     ReasonInvalidChoice,
				Message:    fmt.Sprintf("%q is not a valid choice", value),
			})
		}
	}
	return errs
}

// buildAnswer fills the typed slot the question kind dictates. A choice
// value that parses as the ID of one of the question's declared options is
// stored as an option reference; anything else is kept as literal text, so a
// choice list edited after submission still round-trips.
func buildAnswer(responseID uuid.UUID, q *questionnaire.Question, value string, options []*questionnaire.QuestionOption) *Answer {
	a := &Answer{ResponseID: responseID, QuestionID: q.ID}
	switch q.Kind {
	case questionnaire.KindAttachment:
		a.setFile(value)
	case questionnaire.KindMultipleChoice:
		if id, err := uuid.Parse(value); err == nil {
			for _, o := range options {
				if o.ID == id {
					a.setOption(id)
					return a
				}
			}
		}
		a.setText(value)
	default:
		a.setText(value)
	}
	return a
}

// Submit runs the pipeline: evaluate the active set from the raw values,
// validate active questions, and either reject without writing or persist
// atomically. After persistence the stored answer set is exactly the active
// questions that were answered; answers to questions deactivated by this
// submission are removed.
func (s *Service) Submit(ctx context.Context, questionnaireID uuid.UUID, req SubmitRequest) (*SubmitResult, error) {
	qnr, err := s.qs.Get(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	if qnr.Status != questionnaire.StatusActive {
		return nil, ErrQuestionnaireNotOpen
	}

	g, err := s.qs.Forest(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	options, err := s.qs.Options(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}

	raw := s.parseRaw(g, req.Answers)
	active := g.ActiveSet(raw)

	if errs := validate(g, raw, active); len(errs) > 0 {
		s.log.Info().
			Str("questionnaire_id", questionnaireID.String()).
			Int("field_errors", len(errs)).
			Msg("submission rejected")
		return &SubmitResult{State: StateRejected, FieldErrors: errs}, nil
	}

	var resp *Response
	var stored []*Answer
	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		if req.ResponseID != nil {
			existing, err := s.repo.GetResponse(ctx, *req.ResponseID)
			if err != nil {
				return fmt.Errorf("response not found")
			}
			if existing.QuestionnaireID != questionnaireID {
				return fmt.Errorf("response belongs to a different questionnaire")
			}
			resp = existing
		} else {
			resp = &Response{QuestionnaireID: questionnaireID}
		}

		now := time.Now()
		resp.Respondent = req.Respondent
		resp.PatientID = req.PatientID
		resp.SessionID = req.SessionID
		resp.SubmittedAt = &now
		resp.IsComplete = true
		resp.IPAddress = req.IPAddress
		resp.UserAgent = req.UserAgent

		if req.ResponseID != nil {
			if err := s.repo.UpdateResponse(ctx, resp); err != nil {
				return err
			}
		} else {
			if err := s.repo.CreateResponse(ctx, resp); err != nil {
				return err
			}
		}

		keep := make([]uuid.UUID, 0, len(raw))
		for _, q := range g.Ordered() {
			value := raw[q.ID]
			if !active[q.ID] || value == "" {
				continue
			}
			a := buildAnswer(resp.ID, q, value, options[q.ID])
			if err := s.repo.UpsertAnswer(ctx, a); err != nil {
				return err
			}
			stored = append(stored, a)
			keep = append(keep, q.ID)
		}
		return s.repo.DeleteAnswersExcept(ctx, resp.ID, keep)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("questionnaire_id", questionnaireID.String()).
		Str("response_id", resp.ID.String()).
		Int("answers", len(stored)).
		Msg("response persisted")
	return &SubmitResult{State: StatePersisted, Response: resp, Answers: stored}, nil
}

// RenderForm returns the field descriptors for a questionnaire, pre-filled
// from an existing response when responseID is given.
func (s *Service) RenderForm(ctx context.Context, questionnaireID uuid.UUID, responseID *uuid.UUID) ([]Field, error) {
	g, err := s.qs.Forest(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	options, err := s.qs.Options(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}

	var answers map[uuid.UUID]*Answer
	if responseID != nil {
		resp, err := s.repo.GetResponse(ctx, *responseID)
		if err != nil {
			return nil, fmt.Errorf("response not found")
		}
		if resp.QuestionnaireID != questionnaireID {
			return nil, fmt.Errorf("response belongs to a different questionnaire")
		}
		list, err := s.repo.ListAnswers(ctx, *responseID)
		if err != nil {
			return nil, err
		}
		answers = make(map[uuid.UUID]*Answer, len(list))
		for _, a := range list {
			answers[a.QuestionID] = a
		}
	}

	return BuildFields(g, options, answers), nil
}

// ResponseDetail is a stored response with its answers.
type ResponseDetail struct {
	*Response
	Answers []*Answer `json:"answers"`
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ResponseDetail, error) {
	resp, err := s.repo.GetResponse(ctx, id)
	if err != nil {
		return nil, err
	}
	answers, err := s.repo.ListAnswers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ResponseDetail{Response: resp, Answers: answers}, nil
}

func (s *Service) List(ctx context.Context, filters map[string]string, limit, offset int) ([]*Response, int, error) {
	return s.repo.ListResponses(ctx, filters, limit, offset)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteResponse(ctx, id)
}
