package models

import "time"

// Command types accepted by the command endpoint
const (
	CommandEdit    = "edit"
	CommandAdvance = "advance"
	CommandBack    = "back"
	CommandGoTo    = "goto"
	CommandSubmit  = "submit"
)

// CommandRequest is one wizard command
type CommandRequest struct {
	Type   string `json:"type" binding:"required,oneof=edit advance back goto submit"`
	StepID string `json:"stepId,omitempty"`
	Path   string `json:"path,omitempty"`
	Value  any    `json:"value,omitempty" swaggertype:"object"`
	Index  *int   `json:"index,omitempty"`
}

// StepSummary describes one step of a wizard
type StepSummary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Order    int      `json:"order"`
	Fields   []string `json:"fields"`
	Terminal bool     `json:"terminal"`
}

// WizardSummary describes an available wizard
type WizardSummary struct {
	Kind  string        `json:"kind"`
	Title string        `json:"title"`
	Steps []StepSummary `json:"steps"`
}

// ProgressInfo is the advisory resume record shown alongside a snapshot
type ProgressInfo struct {
	LastActiveSection   *int  `json:"lastActiveSection,omitempty"`
	CompletedSections   []int `json:"completedSections"`
	DownloadedArtifacts []int `json:"downloadedArtifacts"`
	IsComplete          bool  `json:"isComplete"`
}

// ExportResponse describes a stored export; Content is base64 in JSON
type ExportResponse struct {
	Key         string    `json:"key"`
	Index       int       `json:"index"`
	StepID      string    `json:"stepId"`
	Format      string    `json:"format"`
	ContentType string    `json:"contentType"`
	Content     []byte    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}
