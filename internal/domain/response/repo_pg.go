package response

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cliniq/cliniq/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

// =========== Responses ===========

const respCols = `id, questionnaire_id, respondent, patient_id, session_id,
	is_complete, started_at, submitted_at, ip_address, user_agent`

func (r *repoPG) scanResponse(row pgx.Row) (*Response, error) {
	var resp Response
	err := row.Scan(&resp.ID, &resp.QuestionnaireID, &resp.Respondent,
		&resp.PatientID, &resp.SessionID, &resp.IsComplete,
		&resp.StartedAt, &resp.SubmittedAt, &resp.IPAddress, &resp.UserAgent)
	return &resp, err
}

func (r *repoPG) CreateResponse(ctx context.Context, resp *Response) error {
	if resp.ID == uuid.Nil {
		resp.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO response (id, questionnaire_id, respondent, patient_id, session_id,
			is_complete, submitted_at, ip_address, user_agent)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		resp.ID, resp.QuestionnaireID, resp.Respondent, resp.PatientID, resp.SessionID,
		resp.IsComplete, resp.SubmittedAt, resp.IPAddress, resp.UserAgent)
	return err
}

func (r *repoPG) GetResponse(ctx context.Context, id uuid.UUID) (*Response, error) {
	return r.scanResponse(r.conn(ctx).QueryRow(ctx, `SELECT `+respCols+` FROM response WHERE id = $1`, id))
}

func (r *repoPG) UpdateResponse(ctx context.Context, resp *Response) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE response SET respondent=$2, patient_id=$3, session_id=$4,
			is_complete=$5, submitted_at=$6, ip_address=$7, user_agent=$8
		WHERE id = $1`,
		resp.ID, resp.Respondent, resp.PatientID, resp.SessionID,
		resp.IsComplete, resp.SubmittedAt, resp.IPAddress, resp.UserAgent)
	return err
}

func (r *repoPG) DeleteResponse(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM response WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListResponses(ctx context.Context, filters map[string]string, limit, offset int) ([]*Response, int, error) {
	query := `SELECT ` + respCols + ` FROM response WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM response WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := filters["questionnaire_id"]; ok {
		query += fmt.Sprintf(` AND questionnaire_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND questionnaire_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := filters["patient_id"]; ok {
		query += fmt.Sprintf(` AND patient_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := filters["is_complete"]; ok {
		query += fmt.Sprintf(` AND is_complete = $%d`, idx)
		countQuery += fmt.Sprintf(` AND is_complete = $%d`, idx)
		args = append(args, p == "true")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Response
	for rows.Next() {
		resp, err := r.scanResponse(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, resp)
	}
	return items, total, nil
}

// =========== Answers ===========

const answerCols = `id, response_id, question_id, text_answer, number_answer,
	date_answer, file_answer, option_id, created_at, updated_at`

func (r *repoPG) scanAnswer(row pgx.Row) (*Answer, error) {
	var a Answer
	err := row.Scan(&a.ID, &a.ResponseID, &a.QuestionID, &a.TextAnswer,
		&a.NumberAnswer, &a.DateAnswer, &a.FileAnswer, &a.OptionID,
		&a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *repoPG) ListAnswers(ctx context.Context, responseID uuid.UUID) ([]*Answer, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+answerCols+` FROM answer WHERE response_id = $1`, responseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Answer
	for rows.Next() {
		a, err := r.scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, nil
}

func (r *repoPG) UpsertAnswer(ctx context.Context, a *Answer) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	// Every slot is written on conflict so the previous value cannot survive
	// a kind change on the question.
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO answer (id, response_id, question_id, text_answer,
			number_answer, date_answer, file_answer, option_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (response_id, question_id) DO UPDATE SET
			text_answer=EXCLUDED.text_answer,
			number_answer=EXCLUDED.number_answer,
			date_answer=EXCLUDED.date_answer,
			file_answer=EXCLUDED.file_answer,
			option_id=EXCLUDED.option_id,
			updated_at=NOW()`,
		a.ID, a.ResponseID, a.QuestionID, a.TextAnswer,
		a.NumberAnswer, a.DateAnswer, a.FileAnswer, a.OptionID)
	return err
}

func (r *repoPG) DeleteAnswersExcept(ctx context.Context, responseID uuid.UUID, keep []uuid.UUID) error {
	if len(keep) == 0 {
		_, err := r.conn(ctx).Exec(ctx, `DELETE FROM answer WHERE response_id = $1`, responseID)
		return err
	}
	_, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM answer WHERE response_id = $1 AND question_id != ALL($2)`,
		responseID, keep)
	return err
}
