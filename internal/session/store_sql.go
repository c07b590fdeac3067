package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/iqscore/internal/questions"
)

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

const selectCols = `id, created_at, updated_at, current_question, answers_json, score, iq_score, percentile,
	email, completed_at, ip_address, user_agent, utm_source, utm_medium, utm_campaign, utm_content`

func (s *SQLStore) Create(ctx context.Context, m Meta) (Record, error) {
	id := uuid.NewString()
	ts := s.now().Unix()
	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions
		(id, created_at, updated_at, current_question, answers_json, ip_address, user_agent, utm_source, utm_medium, utm_campaign, utm_content)
		VALUES ($1,$2,$3,0,'[]',$4,$5,$6,$7,$8,$9)`,
		id, ts, ts, m.IPAddress, m.UserAgent, m.UTMSource, m.UTMMedium, m.UTMCampaign, m.UTMContent)
	if err != nil {
		return Record{}, fmt.Errorf("insert session: %w", err)
	}
	return Record{
		ID:        id,
		CreatedAt: time.Unix(ts, 0).UTC(),
		UpdatedAt: time.Unix(ts, 0).UTC(),
		Answers:   []questions.Answer{},
		Meta:      m,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		r                Record
		created, updated int64
		answers          string
		score, iq, pct   sql.NullInt64
		completed        sql.NullInt64
	)
	err := row.Scan(&r.ID, &created, &updated, &r.CurrentQuestion, &answers, &score, &iq, &pct,
		&r.Email, &completed, &r.Meta.IPAddress, &r.Meta.UserAgent,
		&r.Meta.UTMSource, &r.Meta.UTMMedium, &r.Meta.UTMCampaign, &r.Meta.UTMContent)
	if err != nil {
		return Record{}, err
	}
	r.CreatedAt = time.Unix(created, 0).UTC()
	r.UpdatedAt = time.Unix(updated, 0).UTC()
	if r.Answers, err = questions.DecodeAnswers([]byte(answers)); err != nil {
		return Record{}, fmt.Errorf("session %s: %w", r.ID, err)
	}
	r.Score = nullInt(score)
	r.IQScore = nullInt(iq)
	r.Percentile = nullInt(pct)
	if completed.Valid {
		t := time.Unix(completed.Int64, 0).UTC()
		r.CompletedAt = &t
	}
	return r, nil
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func (s *SQLStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM sessions WHERE id=$1`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return r, err
}

// exists distinguishes a missing row from a guarded update that matched nothing.
func (s *SQLStore) exists(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id=$1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *SQLStore) SaveProgress(ctx context.Context, id string, currentQuestion int, answers []questions.Answer) error {
	buf, err := questions.EncodeAnswers(answers)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET current_question=$1, answers_json=$2, updated_at=$3
		 WHERE id=$4 AND completed_at IS NULL`,
		currentQuestion, string(buf), s.now().Unix(), id)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.exists(ctx, id)
	}
	return nil
}

func (s *SQLStore) SaveCompletion(ctx context.Context, id string, correct, iq, percentile int, answers []questions.Answer) error {
	buf, err := questions.EncodeAnswers(answers)
	if err != nil {
		return err
	}
	ts := s.now().Unix()
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET current_question=$1, answers_json=$2, score=$3, iq_score=$4, percentile=$5,
		 completed_at=$6, updated_at=$7 WHERE id=$8`,
		len(answers), string(buf), correct, iq, percentile, ts, ts, id)
	if err != nil {
		return fmt.Errorf("save completion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) SetEmail(ctx context.Context, id, email string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET email=$1, updated_at=$2 WHERE id=$3`,
		email, s.now().Unix(), id)
	if err != nil {
		return fmt.Errorf("set email: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, o ListOpts) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if o.Completed != nil {
		if *o.Completed {
			where = append(where, "completed_at IS NOT NULL")
		} else {
			where = append(where, "completed_at IS NULL")
		}
	}
	q := `SELECT ` + selectCols + ` FROM sessions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, o.limit(), o.Offset)
	q += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COUNT(completed_at),
		COALESCE(SUM(CASE WHEN email <> '' THEN 1 ELSE 0 END), 0),
		AVG(CASE WHEN completed_at IS NOT NULL THEN iq_score END)
		FROM sessions`).Scan(&st.Total, &st.Completed, &st.Emails, &avg)
	if err != nil {
		return Stats{}, fmt.Errorf("session stats: %w", err)
	}
	if avg.Valid {
		st.AverageIQ = avg.Float64
	}
	return st, nil
}
