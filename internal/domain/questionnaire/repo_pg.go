package questionnaire

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

// =========== Questionnaires ===========

const qnrCols = `id, title, description, version, status, questionnaire_type,
	is_active, created_by, created_at, updated_at`

func (r *repoPG) scanQnr(row pgx.Row) (*Questionnaire, error) {
	var q Questionnaire
	err := row.Scan(&q.ID, &q.Title, &q.Description, &q.Version, &q.Status,
		&q.Type, &q.IsActive, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	return &q, err
}

func (r *repoPG) Create(ctx context.Context, q *Questionnaire) error {
	q.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO questionnaire (id, title, description, version, status,
			questionnaire_type, is_active, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		q.ID, q.Title, q.Description, q.Version, q.Status,
		q.Type, q.IsActive, q.CreatedBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Questionnaire, error) {
	return r.scanQnr(r.conn(ctx).QueryRow(ctx, `SELECT `+qnrCols+` FROM questionnaire WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, q *Questionnaire) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE questionnaire SET title=$2, description=$3, version=$4, status=$5,
			questionnaire_type=$6, is_active=$7, updated_at=NOW()
		WHERE id = $1`,
		q.ID, q.Title, q.Description, q.Version, q.Status, q.Type, q.IsActive)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM questionnaire WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, filters map[string]string, limit, offset int) ([]*Questionnaire, int, error) {
	query := `SELECT ` + qnrCols + ` FROM questionnaire WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM questionnaire WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := filters["status"]; ok {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := filters["questionnaire_type"]; ok {
		query += fmt.Sprintf(` AND questionnaire_type = $%d`, idx)
		countQuery += fmt.Sprintf(` AND questionnaire_type = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Questionnaire
	for rows.Next() {
		q, err := r.scanQnr(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, q)
	}
	return items, total, nil
}

// =========== Questions ===========

const questionCols = `id, questionnaire_id, question_text, help_text, question_type,
	is_required, display_order, parent_id, trigger_value, created_at, updated_at`

func (r *repoPG) scanQuestion(row pgx.Row) (*Question, error) {
	var q Question
	err := row.Scan(&q.ID, &q.QuestionnaireID, &q.Text, &q.HelpText, &q.Kind,
		&q.IsRequired, &q.Order, &q.ParentID, &q.TriggerValue,
		&q.CreatedAt, &q.UpdatedAt)
	return &q, err
}

func (r *repoPG) CreateQuestion(ctx context.Context, q *Question) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO question (id, questionnaire_id, question_text, help_text,
			question_type, is_required, display_order, parent_id, trigger_value)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		q.ID, q.QuestionnaireID, q.Text, q.HelpText,
		q.Kind, q.IsRequired, q.Order, q.ParentID, q.TriggerValue)
	return err
}

func (r *repoPG) GetQuestion(ctx context.Context, id uuid.UUID) (*Question, error) {
	return r.scanQuestion(r.conn(ctx).QueryRow(ctx, `SELECT `+questionCols+` FROM question WHERE id = $1`, id))
}

func (r *repoPG) UpdateQuestion(ctx context.Context, q *Question) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE question SET question_text=$2, help_text=$3, question_type=$4,
			is_required=$5, display_order=$6, parent_id=$7, trigger_value=$8, updated_at=NOW()
		WHERE id = $1`,
		q.ID, q.Text, q.HelpText, q.Kind,
		q.IsRequired, q.Order, q.ParentID, q.TriggerValue)
	return err
}

func (r *repoPG) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM question WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListQuestions(ctx context.Context, questionnaireID uuid.UUID) ([]*Question, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+questionCols+` FROM question
		WHERE questionnaire_id = $1
		ORDER BY display_order, created_at`, questionnaireID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Question
	for rows.Next() {
		q, err := r.scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, q)
	}
	return items, nil
}

func (r *repoPG) MaxQuestionOrder(ctx context.Context, questionnaireID uuid.UUID) (int, error) {
	var max int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(MAX(display_order), 0) FROM question WHERE questionnaire_id = $1`,
		questionnaireID).Scan(&max)
	return max, err
}

func (r *repoPG) ReorderQuestions(ctx context.Context, questionnaireID uuid.UUID, ordered []uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		for i, id := range ordered {
			tag, err := r.conn(ctx).Exec(ctx, `
				UPDATE question SET display_order=$3, updated_at=NOW()
				WHERE id = $1 AND questionnaire_id = $2`,
				id, questionnaireID, i+1)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("question %s does not belong to questionnaire %s", id, questionnaireID)
			}
		}
		return nil
	})
}

// =========== Options ===========

const optionCols = `id, question_id, option_text, option_value, image_url, display_order`

func (r *repoPG) scanOption(row pgx.Row) (*QuestionOption, error) {
	var o QuestionOption
	err := row.Scan(&o.ID, &o.QuestionID, &o.Text, &o.Value, &o.ImageURL, &o.Order)
	return &o, err
}

func (r *repoPG) CreateOption(ctx context.Context, o *QuestionOption) error {
	o.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO question_option (id, question_id, option_text, option_value, image_url, display_order)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		o.ID, o.QuestionID, o.Text, o.Value, o.ImageURL, o.Order)
	return err
}

func (r *repoPG) GetOption(ctx context.Context, id uuid.UUID) (*QuestionOption, error) {
	return r.scanOption(r.conn(ctx).QueryRow(ctx, `SELECT `+optionCols+` FROM question_option WHERE id = $1`, id))
}

func (r *repoPG) UpdateOption(ctx context.Context, o *QuestionOption) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE question_option SET option_text=$2, option_value=$3, image_url=$4, display_order=$5
		WHERE id = $1`,
		o.ID, o.Text, o.Value, o.ImageURL, o.Order)
	return err
}

func (r *repoPG) DeleteOption(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM question_option WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListOptions(ctx context.Context, questionID uuid.UUID) ([]*QuestionOption, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+optionCols+` FROM question_option
		WHERE question_id = $1
		ORDER BY display_order, option_text`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*QuestionOption
	for rows.Next() {
		o, err := r.scanOption(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, nil
}

func (r *repoPG) ListOptionsForQuestionnaire(ctx context.Context, questionnaireID uuid.UUID) (map[uuid.UUID][]*QuestionOption, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT o.id, o.question_id, o.option_text, o.option_value, o.image_url, o.display_order
		FROM question_option o
		JOIN question q ON q.id = o.question_id
		WHERE q.questionnaire_id = $1
		ORDER BY o.display_order, o.option_text`, questionnaireID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	options := make(map[uuid.UUID][]*QuestionOption)
	for rows.Next() {
		o, err := r.scanOption(rows)
		if err != nil {
			return nil, err
		}
		options[o.QuestionID] = append(options[o.QuestionID], o)
	}
	return options, nil
}
