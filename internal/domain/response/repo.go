package response

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateResponse(ctx context.Context, r *Response) error
	GetResponse(ctx context.Context, id uuid.UUID) (*Response, error)
	UpdateResponse(ctx context.Context, r *Response) error
	DeleteResponse(ctx context.Context, id uuid.UUID) error
	ListResponses(ctx context.Context, filters map[string]string, limit, offset int) ([]*Response, int, error)

	ListAnswers(ctx context.Context, responseID uuid.UUID) ([]*Answer, error)
	// UpsertAnswer writes the answer row for (response, question), replacing
	// every value slot with the incoming ones.
	UpsertAnswer(ctx context.Context, a *Answer) error
	// DeleteAnswersExcept removes every answer of the response whose question
	// is not in keep. An empty keep clears the response entirely.
	DeleteAnswersExcept(ctx context.Context, responseID uuid.UUID, keep []uuid.UUID) error

	// InTx runs fn atomically; every repository call made with the context
	// passed to fn joins the same transaction.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
