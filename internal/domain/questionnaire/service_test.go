package questionnaire

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/google/uuid"
)

type mockRepo struct {
	questionnaires map[uuid.UUID]*Questionnaire
	questions      map[uuid.UUID]*Question
	options        map[uuid.UUID]*QuestionOption
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		questionnaires: make(map[uuid.UUID]*Questionnaire),
		questions:      make(map[uuid.UUID]*Question),
		options:        make(map[uuid.UUID]*QuestionOption),
	}
}

func (m *mockRepo) Create(_ context.Context, q *Questionnaire) error {
	q.ID = uuid.New()
	m.questionnaires[q.ID] = q
	return nil
}
func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Questionnaire, error) {
	q, ok := m.questionnaires[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return q, nil
}
func (m *mockRepo) Update(_ context.Context, q *Questionnaire) error {
	if _, ok := m.questionnaires[q.ID]; !ok {
		return fmt.Errorf("not found")
	}
	m.questionnaires[q.ID] = q
	return nil
}
func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.questionnaires, id)
	return nil
}
func (m *mockRepo) List(_ context.Context, filters map[string]string, limit, offset int) ([]*Questionnaire, int, error) {
	var r []*Questionnaire
	for _, q := range m.questionnaires {
		if s, ok := filters["status"]; ok && q.Status != s {
			continue
		}
		r = append(r, q)
	}
	return r, len(r), nil
}

func (m *mockRepo) CreateQuestion(_ context.Context, q *Question) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	m.questions[q.ID] = q
	return nil
}
func (m *mockRepo) GetQuestion(_ context.Context, id uuid.UUID) (*Question, error) {
	q, ok := m.questions[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return q, nil
}
func (m *mockRepo) UpdateQuestion(_ context.Context, q *Question) error {
	if _, ok := m.questions[q.ID]; !ok {
		return fmt.Errorf("not found")
	}
	m.questions[q.ID] = q
	return nil
}
func (m *mockRepo) DeleteQuestion(_ context.Context, id uuid.UUID) error {
	delete(m.questions, id)
	return nil
}
func (m *mockRepo) ListQuestions(_ context.Context, qnrID uuid.UUID) ([]*Question, error) {
	var r []*Question
	for _, q := range m.questions {
		if q.QuestionnaireID == qnrID {
			r = append(r, q)
		}
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Order < r[j].Order })
	return r, nil
}
func (m *mockRepo) MaxQuestionOrder(_ context.Context, qnrID uuid.UUID) (int, error) {
	max := 0
	for _, q := range m.questions {
		if q.QuestionnaireID == qnrID && q.Order > max {
			max = q.Order
		}
	}
	return max, nil
}
func (m *mockRepo) ReorderQuestions(_ context.Context, qnrID uuid.UUID, ordered []uuid.UUID) error {
	for i, id := range ordered {
		q, ok := m.questions[id]
		if !ok || q.QuestionnaireID != qnrID {
			return fmt.Errorf("question not in questionnaire")
		}
		q.Order = i + 1
	}
	return nil
}

func (m *mockRepo) CreateOption(_ context.Context, o *QuestionOption) error {
	o.ID = uuid.New()
	m.options[o.ID] = o
	return nil
}
func (m *mockRepo) GetOption(_ context.Context, id uuid.UUID) (*QuestionOption, error) {
	o, ok := m.options[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return o, nil
}
func (m *mockRepo) UpdateOption(_ context.Context, o *QuestionOption) error {
	if _, ok := m.options[o.ID]; !ok {
		return fmt.Errorf("not found")
	}
	m.options[o.ID] = o
	return nil
}
func (m *mockRepo) DeleteOption(_ context.Context, id uuid.UUID) error {
	delete(m.options, id)
	return nil
}
func (m *mockRepo) ListOptions(_ context.Context, questionID uuid.UUID) ([]*QuestionOption, error) {
	var r []*QuestionOption
	for _, o := range m.options {
		if o.QuestionID == questionID {
			r = append(r, o)
		}
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Order < r[j].Order })
	return r, nil
}
func (m *mockRepo) ListOptionsForQuestionnaire(_ context.Context, qnrID uuid.UUID) (map[uuid.UUID][]*QuestionOption, error) {
	out := make(map[uuid.UUID][]*QuestionOption)
	for _, o := range m.options {
		q, ok := m.questions[o.QuestionID]
		if ok && q.QuestionnaireID == qnrID {
			out[o.QuestionID] = append(out[o.QuestionID], o)
		}
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *mockRepo) {
	t.Helper()
	repo := newMockRepo()
	svc, err := NewService(repo, 16)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo
}

func createQuestionnaire(t *testing.T, svc *Service) *Questionnaire {
	t.Helper()
	q := &Questionnaire{Title: "Intake screening"}
	if err := svc.Create(context.Background(), q); err != nil {
		t.Fatalf("create questionnaire: %v", err)
	}
	return q
}

func TestCreateQuestionnaire_Defaults(t *testing.T) {
	svc, _ := newTestService(t)
	q := createQuestionnaire(t, svc)

	if q.Status != StatusDraft {
		t.Errorf("expected default status draft, got %q", q.Status)
	}
	if q.Type != TypeCustom {
		t.Errorf("expected default type custom, got %q", q.Type)
	}
	if q.Version != "1.0" {
		t.Errorf("expected default version 1.0, got %q", q.Version)
	}
	if q.IsActive {
		t.Error("draft questionnaire must not be active")
	}
}

func TestCreateQuestionnaire_MissingTitle(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.Create(context.Background(), &Questionnaire{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateQuestionnaire_InvalidType(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.Create(context.Background(), &Questionnaire{Title: "x", Type: "bogus"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestAddQuestion_AssignsNextOrder(t *testing.T) {
	svc, _ := newTestService(t)
	qnr := createQuestionnaire(t, svc)

	first := &Question{QuestionnaireID: qnr.ID, Text: "Do you smoke?", Kind: KindYesNo}
	if err := svc.AddQuestion(context.Background(), first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Order != 1 {
		t.Errorf("expected order 1, got %d", first.Order)
	}

	second := &Question{QuestionnaireID: qnr.ID, Text: "Do you drink?", Kind: KindYesNo}
	if err := svc.AddQuestion(context.Background(), second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Order != 2 {
		t.Errorf("expected order 2, got %d", second.Order)
	}
}

func TestAddQuestion_InvalidKind(t *testing.T) {
	svc, _ := newTestService(t)
	qnr := createQuestionnaire(t, svc)

	q := &Question{QuestionnaireID: qnr.ID, Text: "x", Kind: "essay"}
	if err := svc.AddQuestion(context.Background(), q); err == nil {
		t.Fatal("expected error for unknown question type")
	}
}

func TestAddQuestion_ConditionalNeedsTrigger(t *testing.T) {
	svc, _ := newTestService(t)
	qnr := createQuestionnaire(t, svc)

	parent := &Question{QuestionnaireID: qnr.ID, Text: "Do you smoke?", Kind: KindYesNo}
	if err := svc.AddQuestion(context.Background(), parent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	child := &Question{QuestionnaireID: qnr.ID, Text: "How much?", Kind: KindShortAnswer, ParentID: &parent.ID}
	if err := svc.AddQuestion(context.Background(), child); err == nil {
		t.Fatal("expected error for conditional question without trigger")
	}
}

func TestAddQuestion_ParentFromOtherQuestionnaire(t *testing.T) {
	svc, _ := newTestService(t)
	qnrA := createQuestionnaire(t, svc)
	qnrB := createQuestionnaire(t, svc)

	parent := &Question{QuestionnaireID: qnrA.ID, Text: "Do you smoke?", Kind: KindYesNo}
	if err := svc.AddQuestion(context.Background(), parent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	child := &Question{QuestionnaireID: qnrB.ID, Text: "How much?", Kind: KindShortAnswer,
		ParentID: &parent.ID, TriggerValue: strPtr("yes")}
	if err := svc.AddQuestion(context.Background(), child); err == nil {
		t.Fatal("expected error for cross-questionnaire parent")
	}
}

func TestUpdateQuestion_RejectsCycle(t *testing.T) {
	svc, _ := newTestService(t)
	qnr := createQuestionnaire(t, svc)

	a := &Question{QuestionnaireID: qnr.ID, Text: "A", Kind: KindYesNo}
	if err := svc.AddQuestion(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := &Question{QuestionnaireID: qnr.ID, Text: "B", Kind: KindYesNo,
		ParentID: &a.ID, TriggerValue: strPtr("yes")}
	if err := svc.AddQuestion(context.Background(), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Re-parenting A under B closes a loop; the edit must be refused.
	edited := *a
	edited.ParentID = &b.ID
	edited.TriggerValue = strPtr("yes")

	err := svc.UpdateQuestion(context.Background(), &edited)
	var ge *GraphError
	if !errors.As(err, &ge) {
		t.Fatalf("expected *GraphError, got %v", err)
	}
}

func TestActivate_BlockedByBrokenGraph(t *testing.T) {
	svc, repo := newTestService(t)
	qnr := createQuestionnaire(t, svc)

	// Bypass the service to plant a conditional question without a trigger,
	// as legacy data might contain.
	bad := &Question{ID: uuid.New(), QuestionnaireID: qnr.ID, Text: "orphan",
		Kind: KindShortAnswer, Order: 1}
	parentID := uuid.New()
	bad.ParentID = &parentID
	repo.questions[bad.ID] = bad

	_, err := svc.Activate(context.Background(), qnr.ID)
	var ge *GraphError
	if !errors.As(err, &ge) {
		t.Fatalf("expected *GraphError, got %v", err)
	}

	got, _ := svc.Get(context.Background(), qnr.ID)
	if got.Status != StatusDraft {
		t.Errorf("expected questionnaire to stay draft, got %q", got.Status)
	}
}

func TestActivate_Success(t *testing.T) {
	svc, _ := newTestService(t)
	qnr := createQuestionnaire(t, svc)

	q := &Question{QuestionnaireID: qnr.ID, Text: "Do you smoke?", Kind: KindYesNo}
	if err := svc.AddQuestion(context.Background(), q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.Activate(context.Background(), qnr.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusActive || !got.IsActive {
		t.Errorf("expected active questionnaire, got status=%q is_active=%v", got.Status, got.IsActive)
	}
}

func TestForest_CacheInvalidatedOnMutation(t *testing.T) {
	svc, _ := newTestService(t)
	qnr := createQuestionnaire(t, svc)

	q1 := &Question{QuestionnaireID: qnr.ID, Text: "one", Kind: KindYesNo}
	if err := svc.AddQuestion(context.Background(), q1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g, err := svc.Forest(context.Background(), qnr.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Len() != 1 {
		t.Fatalf("expected 1 question, got %d", g.Len())
	}

	q2 := &Question{QuestionnaireID: qnr.ID, Text: "two", Kind: KindYesNo}
	if err := svc.AddQuestion(context.Background(), q2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g, err = svc.Forest(context.Background(), qnr.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Len() != 2 {
		t.Errorf("expected rebuilt graph with 2 questions, got %d", g.Len())
	}
}

func TestAddOption_OnlyForChoiceQuestions(t *testing.T) {
	svc, _ := newTestService(t)
	qnr := createQuestionnaire(t, svc)

	text := &Question{QuestionnaireID: qnr.ID, Text: "Notes", Kind: KindShortAnswer}
	if err := svc.AddQuestion(context.Background(), text); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := svc.AddOption(context.Background(), &QuestionOption{QuestionID: text.ID, Text: "n/a"})
	if err == nil {
		t.Fatal("expected error adding option to a text question")
	}

	choice := &Question{QuestionnaireID: qnr.ID, Text: "Blood type", Kind: KindMultipleChoice}
	if err := svc.AddQuestion(context.Background(), choice); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opt := &QuestionOption{QuestionID: choice.ID, Text: "O+"}
	if err := svc.AddOption(context.Background(), opt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.Value != "O+" {
		t.Errorf("expected value to default to text, got %q", opt.Value)
	}
}

func TestReorderQuestions(t *testing.T) {
	svc, _ := newTestService(t)
	qnr := createQuestionnaire(t, svc)

	a := &Question{QuestionnaireID: qnr.ID, Text: "A", Kind: KindYesNo}
	b := &Question{QuestionnaireID: qnr.ID, Text: "B", Kind: KindYesNo}
	for _, q := range []*Question{a, b} {
		if err := svc.AddQuestion(context.Background(), q); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := svc.ReorderQuestions(context.Background(), qnr.ID, []uuid.UUID{b.ID, a.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g, err := svc.Forest(context.Background(), qnr.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	roots := g.Roots()
	if roots[0].ID != b.ID || roots[1].ID != a.ID {
		t.Error("expected reorder to be reflected in the rebuilt graph")
	}
}

func TestArchive(t *testing.T) {
	svc, _ := newTestService(t)
	qnr := createQuestionnaire(t, svc)

	got, err := svc.Archive(context.Background(), qnr.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusArchived || got.IsActive {
		t.Errorf("expected archived inactive questionnaire, got status=%q is_active=%v", got.Status, got.IsActive)
	}
}
