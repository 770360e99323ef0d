package questionnaire

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Service owns questionnaire authoring and the derived question graph. Built
// graphs are kept in a small LRU keyed by questionnaire ID and invalidated on
// every structural mutation, so form rendering and submission never rebuild
// the forest per request for hot questionnaires.
type Service struct {
	repo   Repository
	graphs *lru.Cache[uuid.UUID, *Graph]
}

func NewService(repo Repository, graphCacheSize int) (*Service, error) {
	if graphCacheSize <= 0 {
		graphCacheSize = 128
	}
	graphs, err := lru.New[uuid.UUID, *Graph](graphCacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{repo: repo, graphs: graphs}, nil
}

func (s *Service) invalidate(questionnaireID uuid.UUID) {
	s.graphs.Remove(questionnaireID)
}

// -- Questionnaires --

func (s *Service) Create(ctx context.Context, q *Questionnaire) error {
	if q.Title == "" {
		return fmt.Errorf("title is required")
	}
	if q.Status == "" {
		q.Status = StatusDraft
	}
	if !validStatuses[q.Status] {
		return fmt.Errorf("invalid status: %s", q.Status)
	}
	if q.Type == "" {
		q.Type = TypeCustom
	}
	if !validTypes[q.Type] {
		return fmt.Errorf("invalid questionnaire_type: %s", q.Type)
	}
	if q.Version == "" {
		q.Version = "1.0"
	}
	q.IsActive = q.Status == StatusActive
	return s.repo.Create(ctx, q)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Questionnaire, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filters map[string]string, limit, offset int) ([]*Questionnaire, int, error) {
	return s.repo.List(ctx, filters, limit, offset)
}

func (s *Service) Update(ctx context.Context, q *Questionnaire) error {
	if q.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !validStatuses[q.Status] {
		return fmt.Errorf("invalid status: %s", q.Status)
	}
	if !validTypes[q.Type] {
		return fmt.Errorf("invalid questionnaire_type: %s", q.Type)
	}
	q.IsActive = q.Status == StatusActive
	return s.repo.Update(ctx, q)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(id)
	return nil
}

// Activate moves a questionnaire into the active status. Activation is
// refused while the question forest is malformed: the returned *GraphError
// names the first offending question.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*Questionnaire, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.Forest(ctx, id); err != nil {
		return nil, err
	}
	q.Status = StatusActive
	q.IsActive = true
	if err := s.repo.Update(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) Archive(ctx context.Context, id uuid.UUID) (*Questionnaire, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Status = StatusArchived
	q.IsActive = false
	if err := s.repo.Update(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Forest returns the built question graph for a questionnaire, from cache
// when possible. A *GraphError here means the stored structure is broken and
// both rendering and submission must refuse it.
func (s *Service) Forest(ctx context.Context, questionnaireID uuid.UUID) (*Graph, error) {
	if g, ok := s.graphs.Get(questionnaireID); ok {
		return g, nil
	}
	questions, err := s.repo.ListQuestions(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	g, err := BuildGraph(questions)
	if err != nil {
		return nil, err
	}
	s.graphs.Add(questionnaireID, g)
	return g, nil
}

// -- Questions --

func (s *Service) validateQuestion(ctx context.Context, q *Question) error {
	if q.QuestionnaireID == uuid.Nil {
		return fmt.Errorf("questionnaire_id is required")
	}
	if q.Text == "" {
		return fmt.Errorf("question_text is required")
	}
	if !validKinds[q.Kind] {
		return fmt.Errorf("invalid question_type: %s", q.Kind)
	}
	if q.ParentID == nil {
		q.TriggerValue = nil
		return nil
	}
	if *q.ParentID == q.ID && q.ID != uuid.Nil {
		return fmt.Errorf("question cannot be its own parent")
	}
	if q.TriggerValue == nil || *q.TriggerValue == "" {
		return fmt.Errorf("trigger_value is required for a conditional question")
	}
	parent, err := s.repo.GetQuestion(ctx, *q.ParentID)
	if err != nil {
		return fmt.Errorf("parent question not found")
	}
	if parent.QuestionnaireID != q.QuestionnaireID {
		return fmt.Errorf("parent question belongs to a different questionnaire")
	}
	return nil
}

// checkGraph rebuilds the forest with the pending question swapped in, so a
// parent edit that would introduce a cycle is rejected before it is stored.
func (s *Service) checkGraph(ctx context.Context, q *Question) error {
	existing, err := s.repo.ListQuestions(ctx, q.QuestionnaireID)
	if err != nil {
		return err
	}
	questions := make([]*Question, 0, len(existing)+1)
	replaced := false
	for _, e := range existing {
		if e.ID == q.ID {
			questions = append(questions, q)
			replaced = true
			continue
		}
		questions = append(questions, e)
	}
	if !replaced {
		questions = append(questions, q)
	}
	_, err = BuildGraph(questions)
	return err
}

func (s *Service) AddQuestion(ctx context.Context, q *Question) error {
	if err := s.validateQuestion(ctx, q); err != nil {
		return err
	}
	if q.Order == 0 {
		max, err := s.repo.MaxQuestionOrder(ctx, q.QuestionnaireID)
		if err != nil {
			return err
		}
		q.Order = max + 1
	}
	if q.ID == uuid.Nil {
		// CreateQuestion assigns the ID; pre-assign so the graph check can
		// reference the node.
		q.ID = uuid.New()
	}
	if err := s.checkGraph(ctx, q); err != nil {
		return err
	}
	if err := s.repo.CreateQuestion(ctx, q); err != nil {
		return err
	}
	s.invalidate(q.QuestionnaireID)
	return nil
}

func (s *Service) GetQuestion(ctx context.Context, id uuid.UUID) (*Question, error) {
	return s.repo.GetQuestion(ctx, id)
}

func (s *Service) UpdateQuestion(ctx context.Context, q *Question) error {
	if err := s.validateQuestion(ctx, q); err != nil {
		return err
	}
	if err := s.checkGraph(ctx, q); err != nil {
		return err
	}
	if err := s.repo.UpdateQuestion(ctx, q); err != nil {
		return err
	}
	s.invalidate(q.QuestionnaireID)
	return nil
}

func (s *Service) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	q, err := s.repo.GetQuestion(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	s.invalidate(q.QuestionnaireID)
	return nil
}

func (s *Service) ReorderQuestions(ctx context.Context, questionnaireID uuid.UUID, ordered []uuid.UUID) error {
	if len(ordered) == 0 {
		return fmt.Errorf("question order list is empty")
	}
	if err := s.repo.ReorderQuestions(ctx, questionnaireID, ordered); err != nil {
		return err
	}
	s.invalidate(questionnaireID)
	return nil
}

// -- Options --

func (s *Service) AddOption(ctx context.Context, o *QuestionOption) error {
	if o.Text == "" {
		return fmt.Errorf("option_text is required")
	}
	q, err := s.repo.GetQuestion(ctx, o.QuestionID)
	if err != nil {
		return fmt.Errorf("question not found")
	}
	if !q.HasOptions() {
		return fmt.Errorf("question type %s does not take options", q.Kind)
	}
	if o.Value == "" {
		o.Value = o.Text
	}
	if err := s.repo.CreateOption(ctx, o); err != nil {
		return err
	}
	s.invalidate(q.QuestionnaireID)
	return nil
}

func (s *Service) UpdateOption(ctx context.Context, o *QuestionOption) error {
	if o.Text == "" {
		return fmt.Errorf("option_text is required")
	}
	if o.Value == "" {
		o.Value = o.Text
	}
	q, err := s.repo.GetQuestion(ctx, o.QuestionID)
	if err != nil {
		return fmt.Errorf("question not found")
	}
	if err := s.repo.UpdateOption(ctx, o); err != nil {
		return err
	}
	s.invalidate(q.QuestionnaireID)
	return nil
}

func (s *Service) DeleteOption(ctx context.Context, id uuid.UUID) error {
	o, err := s.repo.GetOption(ctx, id)
	if err != nil {
		return err
	}
	q, err := s.repo.GetQuestion(ctx, o.QuestionID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteOption(ctx, id); err != nil {
		return err
	}
	s.invalidate(q.QuestionnaireID)
	return nil
}

func (s *Service) GetOption(ctx context.Context, id uuid.UUID) (*QuestionOption, error) {
	return s.repo.GetOption(ctx, id)
}

func (s *Service) ListOptions(ctx context.Context, questionID uuid.UUID) ([]*QuestionOption, error) {
	return s.repo.ListOptions(ctx, questionID)
}

// Options returns every option of a questionnaire keyed by question ID, in
// option display order.
func (s *Service) Options(ctx context.Context, questionnaireID uuid.UUID) (map[uuid.UUID][]*QuestionOption, error) {
	return s.repo.ListOptionsForQuestionnaire(ctx, questionnaireID)
}
