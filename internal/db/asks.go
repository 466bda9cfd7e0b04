package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sidekick/internal/agent"
	"sidekick/internal/llm"
)

const timeLayout = "2006-01-02T15:04:05Z"

type Ask struct {
	ID           string
	Provider     string
	ToolsEnabled bool
	Question     string
	PromptText   string
	ReplyText    string
	InsertText   string
	Status       string
	ErrorKind    string
	ErrorMessage string
	DurationMS   int
	CreatedAt    string
	CompletedAt  string
}

type Round struct {
	Round        int
	PromptText   string
	ResponseText string
	ToolCalls    int
	Status       string
	ErrorMessage string
	DurationMS   int
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "completed"
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

// SaveJob records a finished job and its rounds. It implements
// worker.History.
func (s *Store) SaveJob(ctx context.Context, job *agent.Job) error {
	tx, err := s.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save ask: %w", err)
	}
	defer tx.Rollback()

	created := job.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var durationMS int64
	if !job.FinishedAt.IsZero() {
		durationMS = job.FinishedAt.Sub(created).Milliseconds()
	}

	const q = `INSERT INTO asks(id, provider, tools_enabled, question, prompt_text, reply_text, insert_text,
	status, error_kind, error_message, duration_ms, created_at, completed_at)
	VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`
	if _, err := tx.ExecContext(ctx, q,
		job.ID, job.Provider.String(), job.ToolsEnabled, job.Question, job.Prompt, job.Reply, job.Insert,
		status(job.Err), llm.KindName(job.Err), errText(job.Err), durationMS,
		formatTime(created), formatTime(job.FinishedAt),
	); err != nil {
		return fmt.Errorf("insert ask: %w", err)
	}

	for _, r := range job.Rounds {
		const rq = `INSERT INTO rounds(ask_id, round, prompt_text, response_text, tool_calls, status, error_message, duration_ms)
		VALUES(?,?,?,?,?,?,?,?)`
		if _, err := tx.ExecContext(ctx, rq,
			job.ID, r.N, r.Prompt, r.Raw, r.ToolCalls, status(r.Err), errText(r.Err), r.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("insert round %d: %w", r.N, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ask: %w", err)
	}
	return nil
}

const askColumns = `id, provider, tools_enabled, question, prompt_text, reply_text, insert_text,
	status, error_kind, error_message, duration_ms, created_at, COALESCE(completed_at, '')`

func scanAsk(row interface{ Scan(...any) error }) (Ask, error) {
	var a Ask
	err := row.Scan(&a.ID, &a.Provider, &a.ToolsEnabled, &a.Question, &a.PromptText, &a.ReplyText, &a.InsertText,
		&a.Status, &a.ErrorKind, &a.ErrorMessage, &a.DurationMS, &a.CreatedAt, &a.CompletedAt)
	return a, err
}

// ListAsks returns the most recent asks first. limit <= 0 means no limit.
func (s *Store) ListAsks(ctx context.Context, limit int) ([]Ask, error) {
	q := `SELECT ` + askColumns + ` FROM asks ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.Reader.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list asks: %w", err)
	}
	defer rows.Close()

	var asks []Ask
	for rows.Next() {
		a, err := scanAsk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ask: %w", err)
		}
		asks = append(asks, a)
	}
	return asks, rows.Err()
}

func (s *Store) GetAsk(ctx context.Context, id string) (Ask, error) {
	a, err := scanAsk(s.Reader.QueryRowContext(ctx, `SELECT `+askColumns+` FROM asks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Ask{}, fmt.Errorf("ask %s not found", id)
	}
	if err != nil {
		return Ask{}, fmt.Errorf("get ask %s: %w", id, err)
	}
	return a, nil
}

func (s *Store) ListRounds(ctx context.Context, askID string) ([]Round, error) {
	rows, err := s.Reader.QueryContext(ctx,
		`SELECT round, prompt_text, response_text, tool_calls, status, error_message, duration_ms
		 FROM rounds WHERE ask_id = ? ORDER BY round ASC`, askID)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []Round
	for rows.Next() {
		var r Round
		if err := rows.Scan(&r.Round, &r.PromptText, &r.ResponseText, &r.ToolCalls, &r.Status, &r.ErrorMessage, &r.DurationMS); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

// DeleteAsksBefore removes asks created before cutoff, with their rounds.
func (s *Store) DeleteAsksBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.Writer.ExecContext(ctx, `DELETE FROM asks WHERE created_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("delete asks: %w", err)
	}
	return res.RowsAffected()
}

// ResolveAskID resolves a full ID or a unique prefix of one.
func (s *Store) ResolveAskID(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("empty ask ID")
	}
	var id string
	err := s.Reader.QueryRowContext(ctx, `SELECT id FROM asks WHERE id = ?`, prefix).Scan(&id)
	if err == nil {
		return id, nil
	}

	like := strings.NewReplacer("%", "", "_", "").Replace(prefix) + "%"
	rows, err := s.Reader.QueryContext(ctx, `SELECT id FROM asks WHERE id LIKE ? ORDER BY created_at DESC LIMIT 2`, like)
	if err != nil {
		return "", fmt.Errorf("resolve ask ID %q: %w", prefix, err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return "", fmt.Errorf("scan ask ID: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve ask ID %q: %w", prefix, err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no ask matching %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous ask prefix %q (matches %s and others)", prefix, matches[0])
	}
}

// ShortID returns the first 8 characters of an ask ID.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
