package store

import (
	"database/sql"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/meera/souschef/internal/actuator"
	"github.com/meera/souschef/internal/plan"
)

// Journal persists plans and execution outcomes so an aborted run can be
// inspected after the fact.
type Journal struct {
	DB *sql.DB
}

func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			goal TEXT,
			provenance TEXT,
			steps INTEGER,
			created DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plan_id TEXT,
			step_index INTEGER,
			command TEXT,
			success INTEGER,
			simulated INTEGER,
			status TEXT,
			timestamp DATETIME
		);`,
	}
	for _, q := range queries {
		_, err = db.Exec(q)
		if err != nil {
			return nil, err
		}
	}

	return &Journal{DB: db}, nil
}

func (j *Journal) RecordPlan(p *plan.Plan) error {
	query := `INSERT INTO plans (id, goal, provenance, steps) VALUES (?, ?, ?, ?)`
	_, err := j.DB.Exec(query, p.ID, p.Goal, string(p.Provenance), len(p.Steps))
	return err
}

func (j *Journal) RecordOutcome(planID string, stepIndex int, out actuator.Outcome) error {
	query := `INSERT INTO outcomes (plan_id, step_index, command, success, simulated, status, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := j.DB.Exec(query, planID, stepIndex, out.Command,
		boolToInt(out.Success), boolToInt(out.Simulated), out.Status, out.Timestamp)
	return err
}

// OutcomeRecord is one journalled dispatch result.
type OutcomeRecord struct {
	PlanID    string
	StepIndex int
	Command   string
	Success   bool
	Simulated bool
	Status    string
	Timestamp time.Time
}

// RecentOutcomes returns the latest outcomes, newest first.
func (j *Journal) RecentOutcomes(limit int) ([]OutcomeRecord, error) {
	query := `SELECT plan_id, step_index, command, success, simulated, status, timestamp
		FROM outcomes ORDER BY id DESC LIMIT ?`
	rows, err := j.DB.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutcomeRecord
	for rows.Next() {
		var rec OutcomeRecord
		var success, simulated int
		if err := rows.Scan(&rec.PlanID, &rec.StepIndex, &rec.Command, &success, &simulated, &rec.Status, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.Success = success != 0
		rec.Simulated = simulated != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PlanOutcomes returns the outcomes of a single plan in execution order.
func (j *Journal) PlanOutcomes(planID string) ([]OutcomeRecord, error) {
	query := `SELECT plan_id, step_index, command, success, simulated, status, timestamp
		FROM outcomes WHERE plan_id = ? ORDER BY id ASC`
	rows, err := j.DB.Query(query, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutcomeRecord
	for rows.Next() {
		var rec OutcomeRecord
		var success, simulated int
		if err := rows.Scan(&rec.PlanID, &rec.StepIndex, &rec.Command, &success, &simulated, &rec.Status, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.Success = success != 0
		rec.Simulated = simulated != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	return j.DB.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
