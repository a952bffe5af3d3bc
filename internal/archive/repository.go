// Package archive stores finished matches in Postgres.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/cheese-checkers/internal/checkers"
	"github.com/park285/cheese-checkers/internal/match"
)

const schema = `CREATE TABLE IF NOT EXISTS checkers_matches (
    match_id    TEXT PRIMARY KEY,
    white_id    TEXT NOT NULL DEFAULT '',
    black_id    TEXT NOT NULL DEFAULT '',
    result      TEXT NOT NULL DEFAULT '',
    moves       JSONB NOT NULL,
    pdn         TEXT NOT NULL,
    final_board TEXT NOT NULL,
    final_turn  TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    ended_at    TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL
)`

// Match is one archived row.
type Match struct {
	ID         string    `json:"id"`
	WhiteID    string    `json:"white_id"`
	BlackID    string    `json:"black_id"`
	Result     string    `json:"result"`
	Moves      []string  `json:"moves"`
	PDN        string    `json:"pdn"`
	FinalBoard string    `json:"final_board"`
	FinalTurn  string    `json:"final_turn"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMS int64     `json:"duration_ms"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// FromResult converts a torn-down match into its archived form.
func FromResult(res match.Result) (Match, error) {
	board, err := checkers.ParseBoard(res.Board)
	if err != nil {
		return Match{}, fmt.Errorf("final board: %w", err)
	}
	result := Outcome(board)
	moves := make([]string, 0, len(res.History))
	for _, rec := range res.History {
		moves = append(moves, rec.Command.String())
	}
	duration := res.EndedAt.Sub(res.StartedAt).Milliseconds()
	// 시계 역행 방지
	if duration < 0 {
		duration = 0
	}
	return Match{
		ID:         res.ID,
		WhiteID:    res.WhiteID,
		BlackID:    res.BlackID,
		Result:     result,
		Moves:      moves,
		PDN:        BuildPDN(res.ID, res.WhiteID, res.BlackID, res.EndedAt, res.History, result),
		FinalBoard: res.Board,
		FinalTurn:  res.Turn,
		StartedAt:  res.StartedAt,
		EndedAt:    res.EndedAt,
		DurationMS: duration,
	}, nil
}

// SaveMatch upserts the finished match.
func (r *Repository) SaveMatch(ctx context.Context, res match.Result) error {
	if r == nil || r.db == nil {
		return nil
	}
	m, err := FromResult(res)
	if err != nil {
		return err
	}
	movesRaw, err := json.Marshal(m.Moves)
	if err != nil {
		return err
	}

	q := `INSERT INTO checkers_matches (
        match_id, white_id, black_id, result, moves, pdn,
        final_board, final_turn, started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
      ) ON CONFLICT (match_id) DO UPDATE SET
        white_id=EXCLUDED.white_id,
        black_id=EXCLUDED.black_id,
        result=EXCLUDED.result,
        moves=EXCLUDED.moves,
        pdn=EXCLUDED.pdn,
        final_board=EXCLUDED.final_board,
        final_turn=EXCLUDED.final_turn,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		m.ID, m.WhiteID, m.BlackID, m.Result, string(movesRaw), m.PDN,
		m.FinalBoard, m.FinalTurn, m.StartedAt, m.EndedAt, m.DurationMS,
	)
	return err
}

// Recent returns up to limit archived matches, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Match, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT match_id, white_id, black_id, result, moves, pdn,
        final_board, final_turn, started_at, ended_at, duration_ms
      FROM checkers_matches ORDER BY ended_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var (
			m        Match
			movesRaw []byte
		)
		if err := rows.Scan(&m.ID, &m.WhiteID, &m.BlackID, &m.Result, &movesRaw, &m.PDN,
			&m.FinalBoard, &m.FinalTurn, &m.StartedAt, &m.EndedAt, &m.DurationMS); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(movesRaw, &m.Moves); err != nil {
			return nil, fmt.Errorf("match %s moves: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
