// Package store persists production runs and the per-invocation audit log
// in SQLite. The projects table holds one row per run with the script
// serialised as JSON; agents_log is append-only and never read for control
// flow.
package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge-agent/internal/script"
)

type Project struct {
	ID            string         `json:"id"`
	Topic         string         `json:"topic"`
	Product       string         `json:"product,omitempty"`
	Stage         string         `json:"stage"`
	PreferClips   bool           `json:"prefer_clips"`
	SceneCount    int            `json:"scene_count,omitempty"`
	Script        *script.Script `json:"script,omitempty"`
	FailedScenes  []int          `json:"failed_scenes,omitempty"`
	FinalArtifact string         `json:"final_artifact,omitempty"`
	Metadata      string         `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

const (
	LogStatusSuccess = "success"
	LogStatusFailed  = "failed"
)

type AgentLogEntry struct {
	ID            int64     `json:"id"`
	ProjectID     string    `json:"project_id"`
	AgentName     string    `json:"agent_name"`
	Status        string    `json:"status"`
	Input         string    `json:"input,omitempty"`
	Output        string    `json:"output,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	ExecutionTime float64   `json:"execution_time"`
	Attempts      int       `json:"attempts"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewID() string {
	return uuid.NewString()
}
