package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Store is the append-only turn store backed by sqlite.
type Store struct {
	DB     *sql.DB
	logger *log.Logger
}

// Turn is one logged user/model exchange within a conversation, addressed by
// (conversation_id, turn_index). A turn is complete iff FinalAnswer is set;
// stubs are persisted at proposal time and completed by the answer phase.
type Turn struct {
	ID             int64
	CreatedAt      time.Time
	InteractionID  string
	ConversationID string
	TurnIndex      int
	OriginalPrompt string

	// NULL when the enhancer was bypassed for this turn.
	Mode   *string
	Intent *string
	Topic  *string

	RewrittenPrompt *string
	ChosenVersion   *string
	FinalPrompt     *string
	// FinalAnswer holds a bounded preview of the answer, not the full text.
	FinalAnswer *string
	// PersonaPrompt is set only on the turn where a Socratic persona was
	// activated, and is the only column ever cleared after the initial write.
	PersonaPrompt *string
}

// Complete reports whether the turn has an answer.
func (t *Turn) Complete() bool { return t.FinalAnswer != nil }

// New wraps an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{DB: db, logger: log.New(log.Writer(), "[STORE] ", log.LstdFlags)}
}

// Open opens (or creates) the sqlite database at path and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := New(db)
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.DB.Close() }

const turnColumns = `id, created_at, interaction_id, conversation_id, turn_index, original_prompt,
	mode, intent, topic, rewritten_prompt, chosen_version, final_prompt, final_answer, persona_prompt`

func scanTurn(row interface{ Scan(...interface{}) error }) (*Turn, error) {
	var t Turn
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.InteractionID, &t.ConversationID, &t.TurnIndex, &t.OriginalPrompt,
		&t.Mode, &t.Intent, &t.Topic, &t.RewrittenPrompt, &t.ChosenVersion, &t.FinalPrompt, &t.FinalAnswer, &t.PersonaPrompt); err != nil {
		return nil, err
	}
	return &t, nil
}

// NextTurnIndex returns the index the next turn in the conversation gets.
func (s *Store) NextTurnIndex(ctx context.Context, conversationID string) (int, error) {
	var next int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(turn_index)+1, 0) FROM turns WHERE conversation_id=?`, conversationID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next turn index: %w", err)
	}
	return next, nil
}

// AppendTurn allocates the next turn_index for the conversation and inserts
// the turn at it, filling in TurnIndex, ID and CreatedAt.
//
// The read-allocate-write span is not transactionally serialized against
// concurrent requests on the same conversation; the UNIQUE index on
// (conversation_id, turn_index) turns a lost race into a constraint error,
// and one re-read retry absorbs the common case. Anything beyond that is a
// documented limitation of the single-tenant design.
func (s *Store) AppendTurn(ctx context.Context, t *Turn) error {
	for attempt := 0; ; attempt++ {
		next, err := s.NextTurnIndex(ctx, t.ConversationID)
		if err != nil {
			return err
		}
		t.TurnIndex = next
		t.CreatedAt = time.Now().UTC()
		res, err := s.DB.ExecContext(ctx, `INSERT INTO turns (
			created_at, interaction_id, conversation_id, turn_index, original_prompt,
			mode, intent, topic, rewritten_prompt, chosen_version, final_prompt, final_answer, persona_prompt
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			t.CreatedAt, t.InteractionID, t.ConversationID, t.TurnIndex, t.OriginalPrompt,
			t.Mode, t.Intent, t.Topic, t.RewrittenPrompt, t.ChosenVersion, t.FinalPrompt, t.FinalAnswer, t.PersonaPrompt)
		if err != nil {
			if attempt == 0 && isUniqueConstraint(err) {
				s.logger.Printf("turn index conflict on conversation %s, retrying", t.ConversationID)
				continue
			}
			return fmt.Errorf("insert turn: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert turn id: %w", err)
		}
		t.ID = id
		return nil
	}
}

func isUniqueConstraint(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint
}

// FindStub returns the incomplete turn recorded for the interaction, or nil
// when no stub exists (e.g. the proposal write failed).
func (s *Store) FindStub(ctx context.Context, interactionID string) (*Turn, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+turnColumns+` FROM turns
		WHERE interaction_id=? AND final_answer IS NULL
		ORDER BY turn_index DESC LIMIT 1`, interactionID)
	t, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find stub: %w", err)
	}
	return t, nil
}

// CompleteTurn fills in the answer-phase fields of an existing stub in place.
// personaPrompt is written only when non-nil.
func (s *Store) CompleteTurn(ctx context.Context, id int64, finalPrompt, chosenVersion string, answerPreview string, personaPrompt *string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE turns SET
		final_prompt=?, chosen_version=?, final_answer=?,
		persona_prompt=COALESCE(?, persona_prompt)
		WHERE id=?`, finalPrompt, chosenVersion, answerPreview, personaPrompt, id)
	if err != nil {
		return fmt.Errorf("complete turn: %w", err)
	}
	return nil
}

// LatestPersonaTurn returns the most recent turn of the conversation whose
// persona_prompt is still set, or nil when no persona was ever stored or all
// stored personas have been cleared.
func (s *Store) LatestPersonaTurn(ctx context.Context, conversationID string) (*Turn, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+turnColumns+` FROM turns
		WHERE conversation_id=? AND persona_prompt IS NOT NULL
		ORDER BY turn_index DESC LIMIT 1`, conversationID)
	t, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest persona turn: %w", err)
	}
	return t, nil
}

// ClearPersona overwrites the stored persona_prompt of the given turn to
// absent. It is the only mutation ever applied to a written column.
func (s *Store) ClearPersona(ctx context.Context, id int64) error {
	if _, err := s.DB.ExecContext(ctx, `UPDATE turns SET persona_prompt=NULL WHERE id=?`, id); err != nil {
		return fmt.Errorf("clear persona: %w", err)
	}
	return nil
}

// CompletedModesAfter returns the mode column of every completed turn with
// turn_index greater than afterIndex, newest first. NULL modes come back as
// nil entries; callers count consecutive bypassed turns from the head.
func (s *Store) CompletedModesAfter(ctx context.Context, conversationID string, afterIndex int) ([]*string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT mode FROM turns
		WHERE conversation_id=? AND turn_index>? AND final_answer IS NOT NULL
		ORDER BY turn_index DESC`, conversationID, afterIndex)
	if err != nil {
		return nil, fmt.Errorf("completed modes: %w", err)
	}
	defer rows.Close()
	var out []*string
	for rows.Next() {
		var mode *string
		if err := rows.Scan(&mode); err != nil {
			return nil, err
		}
		out = append(out, mode)
	}
	return out, rows.Err()
}

// RecentCompleted returns the last limit completed turns of the conversation
// in chronological order. Stubs awaiting their answer phase are skipped.
func (s *Store) RecentCompleted(ctx context.Context, conversationID string, limit int) ([]*Turn, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+turnColumns+` FROM turns
		WHERE conversation_id=? AND final_answer IS NOT NULL
		ORDER BY turn_index DESC LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()
	var turns []*Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse to chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
