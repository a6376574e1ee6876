// Package journal records battles and exploration outcomes in SQLite so
// that runs can be reviewed offline.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	_ "modernc.org/sqlite"

	"github.com/lox/ostrobot/internal/battle"
	"github.com/lox/ostrobot/internal/classify"
	"github.com/lox/ostrobot/internal/journal/migrations"
)

// ErrNoPath is returned by Open when no database path is configured.
var ErrNoPath = errors.New("journal: database path is required")

// Journal is a SQLite-backed battle and exploration history.
type Journal struct {
	db     *sql.DB
	clock  quartz.Clock
	logger *log.Logger
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens the journal at path and applies pending migrations.
func Open(ctx context.Context, path string, clock quartz.Clock, logger *log.Logger) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrNoPath
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db, clock: clock, logger: logger.WithPrefix("journal")}, nil
}

// Close closes the database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// StartRun registers a run. Recording into an unregistered run registers it.
func (j *Journal) StartRun(ctx context.Context, runID string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (id, started_at) VALUES (?, ?)`,
		runID, toMillis(j.clock.Now()),
	)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// RecordBattle stores a finished battle. Recording the same session twice
// keeps the latest values.
func (j *Journal) RecordBattle(ctx context.Context, runID string, s *battle.Session) error {
	if err := j.StartRun(ctx, runID); err != nil {
		return err
	}
	ended := s.Ended
	if ended.IsZero() {
		ended = j.clock.Now()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO battles (
		   id, run_id, enemy, outcome, rounds, escape_attempts,
		   attacks, skills, potions, final_hp, gold, experience, items,
		   started_at, ended_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, runID, s.Enemy, s.Outcome.String(), s.Rounds, s.EscapeAttempts,
		s.Actions[battle.Attack], s.Actions[battle.UseSkill], s.Actions[battle.UsePotion],
		s.FinalHP, s.Rewards.Gold, s.Rewards.Experience, strings.Join(s.Rewards.Items, "\n"),
		toMillis(s.Started), toMillis(ended),
	)
	if err != nil {
		return fmt.Errorf("record battle: %w", err)
	}
	j.logger.Debug("Battle recorded", "battle", s.ID, "outcome", s.Outcome)
	return nil
}

// RecordExploration stores one classified exploration outcome.
func (j *Journal) RecordExploration(ctx context.Context, runID string, e classify.Event) error {
	if err := j.StartRun(ctx, runID); err != nil {
		return err
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO explorations (run_id, kind, message_id, text, hp_delta, energy_delta, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, e.Kind.String(), e.Message.ID, e.Message.Text,
		e.HealthGain+e.Restored-e.Damage, e.EnergyGain,
		toMillis(j.clock.Now()),
	)
	if err != nil {
		return fmt.Errorf("record exploration: %w", err)
	}
	return nil
}

// BattleRecord is a stored battle.
type BattleRecord struct {
	ID             string
	RunID          string
	Enemy          string
	Outcome        string
	Rounds         int
	EscapeAttempts int
	FinalHP        int
	Gold           int
	Experience     int
	Items          []string
	Started        time.Time
	Ended          time.Time
}

// RecentBattles returns up to limit battles, newest first.
func (j *Journal) RecentBattles(ctx context.Context, limit int) ([]BattleRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, run_id, enemy, outcome, rounds, escape_attempts, final_hp, gold, experience, items, started_at, ended_at
		 FROM battles ORDER BY ended_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query battles: %w", err)
	}
	defer rows.Close()

	var out []BattleRecord
	for rows.Next() {
		var (
			r              BattleRecord
			items          string
			started, ended int64
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.Enemy, &r.Outcome, &r.Rounds, &r.EscapeAttempts,
			&r.FinalHP, &r.Gold, &r.Experience, &items, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan battle: %w", err)
		}
		if items != "" {
			r.Items = strings.Split(items, "\n")
		}
		r.Started, r.Ended = fromMillis(started), fromMillis(ended)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summary aggregates the journal since a point in time.
type Summary struct {
	Since        time.Time
	Runs         int
	Battles      int
	Outcomes     map[string]int
	AvgRounds    float64
	Gold         int
	Experience   int
	Items        int
	Explorations int
	Kinds        map[string]int
}

// WinRate returns the share of battles won, or zero without battles.
func (s Summary) WinRate() float64 {
	if s.Battles == 0 {
		return 0
	}
	return float64(s.Outcomes[battle.Win.String()]) / float64(s.Battles)
}

// Summarize aggregates battles and explorations recorded at or after since.
func (j *Journal) Summarize(ctx context.Context, since time.Time) (Summary, error) {
	sum := Summary{
		Since:    since,
		Outcomes: make(map[string]int),
		Kinds:    make(map[string]int),
	}
	from := toMillis(since)

	if err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM runs WHERE started_at >= ?`, from,
	).Scan(&sum.Runs); err != nil {
		return Summary{}, fmt.Errorf("count runs: %w", err)
	}

	var avg sql.NullFloat64
	if err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(rounds), COALESCE(SUM(gold), 0), COALESCE(SUM(experience), 0)
		 FROM battles WHERE ended_at >= ?`, from,
	).Scan(&sum.Battles, &avg, &sum.Gold, &sum.Experience); err != nil {
		return Summary{}, fmt.Errorf("sum battles: %w", err)
	}
	sum.AvgRounds = avg.Float64

	if err := j.countInto(ctx, sum.Outcomes,
		`SELECT outcome, COUNT(*) FROM battles WHERE ended_at >= ? GROUP BY outcome`, from); err != nil {
		return Summary{}, err
	}
	if err := j.countInto(ctx, sum.Kinds,
		`SELECT kind, COUNT(*) FROM explorations WHERE recorded_at >= ? GROUP BY kind`, from); err != nil {
		return Summary{}, err
	}
	for _, n := range sum.Kinds {
		sum.Explorations += n
	}

	rows, err := j.db.QueryContext(ctx, `SELECT items FROM battles WHERE ended_at >= ? AND items != ''`, from)
	if err != nil {
		return Summary{}, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var items string
		if err := rows.Scan(&items); err != nil {
			return Summary{}, fmt.Errorf("scan items: %w", err)
		}
		sum.Items += len(strings.Split(items, "\n"))
	}
	return sum, rows.Err()
}

func (j *Journal) countInto(ctx context.Context, dst map[string]int, query string, args ...any) error {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("group query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan group: %w", err)
		}
		dst[key] = n
	}
	return rows.Err()
}
