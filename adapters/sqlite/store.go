// Package sqlite provides SQLite-backed player and result repositories.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/domain/repositories"
)

//go:embed schema.sql
var schema string

// ErrAlreadyExists is returned when inserting a duplicate id
var ErrAlreadyExists = errors.New("already exists")

// Store persists players and finished games in SQLite. It implements both
// repositories.PlayerRepository and repositories.GameResultRepository.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and applies the schema
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Ping checks the database handle. It backs the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close closes the SQLite handle
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreatePlayer inserts a player, generating an ID when empty
func (s *Store) CreatePlayer(ctx context.Context, player *entities.Player) error {
	if player == nil {
		return errors.New("player cannot be nil")
	}
	if player.ID == "" {
		player.ID = uuid.NewString()
	}
	if player.CreatedAt.IsZero() {
		player.CreatedAt = time.Now().UTC()
	}
	if err := player.Validate(); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO players (id, name, created_at) VALUES (?, ?, ?)`,
		player.ID, player.Name, toMillis(player.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("player %s: %w", player.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

// GetPlayer returns a player by id
func (s *Store) GetPlayer(ctx context.Context, id string) (*entities.Player, error) {
	var (
		p         entities.Player
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM players WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("get player: %w", err)
	}
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

// Create inserts a finished game
func (s *Store) Create(ctx context.Context, result *entities.GameResult) error {
	if result == nil {
		return errors.New("result cannot be nil")
	}
	if err := result.Validate(); err != nil {
		return err
	}

	log := result.Log
	if log == nil {
		log = []entities.GameLogEntry{}
	}
	logJSON, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("encode log: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO results (
		   id, player_id, started_at, finished_at, status,
		   total_words, correct, first_try, skipped, log_json
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID,
		result.PlayerID,
		toMillis(result.StartedAt),
		toMillis(result.FinishedAt),
		string(result.Status),
		result.TotalWords,
		result.Correct,
		result.FirstTry,
		result.Skipped,
		string(logJSON),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("result %s: %w", result.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

const resultColumns = `id, player_id, started_at, finished_at, status, total_words, correct, first_try, skipped, log_json`

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*entities.GameResult, error) {
	var (
		r                     entities.GameResult
		startedAt, finishedAt int64
		status, logJSON       string
	)
	if err := row.Scan(&r.ID, &r.PlayerID, &startedAt, &finishedAt, &status,
		&r.TotalWords, &r.Correct, &r.FirstTry, &r.Skipped, &logJSON); err != nil {
		return nil, err
	}
	r.StartedAt = fromMillis(startedAt)
	r.FinishedAt = fromMillis(finishedAt)
	r.Status = entities.ResultStatus(status)
	if err := json.Unmarshal([]byte(logJSON), &r.Log); err != nil {
		return nil, fmt.Errorf("decode log of %s: %w", r.ID, err)
	}
	return &r, nil
}

// GetByID returns a finished game by id
func (s *Store) GetByID(ctx context.Context, id string) (*entities.GameResult, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM results WHERE id = ?`, id)
	r, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	return r, nil
}

// ListByPlayer returns the player's results, most recent first
func (s *Store) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*entities.GameResult, error) {
	if playerID == "" {
		return nil, errors.New("player ID cannot be empty")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+resultColumns+` FROM results WHERE player_id = ? ORDER BY finished_at DESC LIMIT ?`,
		playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	results := []*entities.GameResult{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// DeleteOlderThan removes results finished before cutoff
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM results WHERE finished_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete results: %w", err)
	}
	return res.RowsAffected()
}

// Players adapts the store to repositories.PlayerRepository
func (s *Store) Players() repositories.PlayerRepository {
	return playerRepository{s}
}

type playerRepository struct {
	s *Store
}

func (p playerRepository) Create(ctx context.Context, player *entities.Player) error {
	return p.s.CreatePlayer(ctx, player)
}

func (p playerRepository) GetByID(ctx context.Context, id string) (*entities.Player, error) {
	return p.s.GetPlayer(ctx, id)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ repositories.GameResultRepository = (*Store)(nil)
