package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clipforge/clipforge-agent/internal/script"
)

type Repository interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context, limit int) ([]*Project, error)
	SaveProject(ctx context.Context, p *Project) error
	DeleteProject(ctx context.Context, id string) error

	AppendAgentLog(ctx context.Context, e *AgentLogEntry) error
	ListAgentLog(ctx context.Context, projectID string, limit int) ([]*AgentLogEntry, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, p *Project) error {
	scriptJSON, failedJSON, err := encodeProject(p)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO projects (id, topic, product, stage, prefer_clips, scene_count, script, failed_scenes, final_artifact, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Topic, nullString(p.Product), p.Stage, boolToInt(p.PreferClips), p.SceneCount,
		nullString(scriptJSON), nullString(failedJSON), nullString(p.FinalArtifact), nullString(p.Metadata),
		p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339))
	return err
}

// SaveProject writes back every mutable field of an existing run row.
func (r *SQLiteRepository) SaveProject(ctx context.Context, p *Project) error {
	scriptJSON, failedJSON, err := encodeProject(p)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET stage = ?, prefer_clips = ?, script = ?, failed_scenes = ?, final_artifact = ?, metadata = ?, updated_at = datetime('now')
		WHERE id = ?
	`, p.Stage, boolToInt(p.PreferClips), nullString(scriptJSON), nullString(failedJSON),
		nullString(p.FinalArtifact), nullString(p.Metadata), p.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("project %s not found", p.ID)
	}
	return err
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, topic, product, stage, prefer_clips, scene_count, script, failed_scenes, final_artifact, metadata, created_at, updated_at
		FROM projects WHERE id = ?
	`, id)
	return scanProject(row)
}

func (r *SQLiteRepository) ListProjects(ctx context.Context, limit int) ([]*Project, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, topic, product, stage, prefer_clips, scene_count, script, failed_scenes, final_artifact, metadata, created_at, updated_at
		FROM projects ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProjectRow(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) AppendAgentLog(ctx context.Context, e *AgentLogEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agents_log (project_id, agent_name, status, input, output, error_message, execution_time, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ProjectID, e.AgentName, e.Status, nullString(e.Input), nullString(e.Output),
		nullString(e.ErrorMessage), e.ExecutionTime, e.Attempts, e.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) ListAgentLog(ctx context.Context, projectID string, limit int) ([]*AgentLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, agent_name, status, input, output, error_message, execution_time, attempts, created_at
		FROM agents_log WHERE project_id = ? ORDER BY id DESC LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*AgentLogEntry
	for rows.Next() {
		var e AgentLogEntry
		var input, output, errMsg sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.ProjectID, &e.AgentName, &e.Status, &input, &output, &errMsg, &e.ExecutionTime, &e.Attempts, &createdAt); err != nil {
			return nil, err
		}
		e.Input = input.String
		e.Output = output.String
		e.ErrorMessage = errMsg.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row *sql.Row) (*Project, error) {
	p, err := scanProjectRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func scanProjectRow(row rowScanner) (*Project, error) {
	var p Project
	var preferClips int
	var product, scriptJSON, failedJSON, finalArtifact, metadata sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&p.ID, &p.Topic, &product, &p.Stage, &preferClips, &p.SceneCount, &scriptJSON, &failedJSON, &finalArtifact, &metadata, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.Product = product.String
	p.PreferClips = preferClips == 1
	p.FinalArtifact = finalArtifact.String
	p.Metadata = metadata.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	if scriptJSON.String != "" {
		var s script.Script
		if err := json.Unmarshal([]byte(scriptJSON.String), &s); err != nil {
			return nil, fmt.Errorf("corrupt script for project %s: %w", p.ID, err)
		}
		p.Script = &s
	}
	if failedJSON.String != "" {
		if err := json.Unmarshal([]byte(failedJSON.String), &p.FailedScenes); err != nil {
			return nil, fmt.Errorf("corrupt failed_scenes for project %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

func encodeProject(p *Project) (scriptJSON, failedJSON string, err error) {
	if p.Script != nil {
		b, err := json.Marshal(p.Script)
		if err != nil {
			return "", "", fmt.Errorf("failed to marshal script: %w", err)
		}
		scriptJSON = string(b)
	}
	if len(p.FailedScenes) > 0 {
		b, err := json.Marshal(p.FailedScenes)
		if err != nil {
			return "", "", fmt.Errorf("failed to marshal failed scenes: %w", err)
		}
		failedJSON = string(b)
	}
	return scriptJSON, failedJSON, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
