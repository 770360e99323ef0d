package questionnaire

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, q *Questionnaire) error
	GetByID(ctx context.Context, id uuid.UUID) (*Questionnaire, error)
	Update(ctx context.Context, q *Questionnaire) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters map[string]string, limit, offset int) ([]*Questionnaire, int, error)

	// Questions
	CreateQuestion(ctx context.Context, q *Question) error
	GetQuestion(ctx context.Context, id uuid.UUID) (*Question, error)
	UpdateQuestion(ctx context.Context, q *Question) error
	DeleteQuestion(ctx context.Context, id uuid.UUID) error
	ListQuestions(ctx context.Context, questionnaireID uuid.UUID) ([]*Question, error)
	MaxQuestionOrder(ctx context.Context, questionnaireID uuid.UUID) (int, error)
	ReorderQuestions(ctx context.Context, questionnaireID uuid.UUID, ordered []uuid.UUID) error

	// Options
	CreateOption(ctx context.Context, o *QuestionOption) error
	GetOption(ctx context.Context, id uuid.UUID) (*QuestionOption, error)
	UpdateOption(ctx context.Context, o *QuestionOption) error
	DeleteOption(ctx context.Context, id uuid.UUID) error
	ListOptions(ctx context.Context, questionID uuid.UUID) ([]*QuestionOption, error)
	ListOptionsForQuestionnaire(ctx context.Context, questionnaireID uuid.UUID) (map[uuid.UUID][]*QuestionOption, error)
}
