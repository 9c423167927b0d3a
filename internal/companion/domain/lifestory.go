package domain

import "time"

// StageStatus mirrors spec §3's Life stage status enum.
type StageStatus string

const (
	StageLocked    StageStatus = "locked"
	StageActive    StageStatus = "active"
	StageCompleted StageStatus = "completed"
)

// SegmentStatus mirrors spec §3's Plot segment status enum (adds Skipped).
type SegmentStatus string

const (
	SegmentLocked    SegmentStatus = "locked"
	SegmentActive    SegmentStatus = "active"
	SegmentCompleted SegmentStatus = "completed"
	SegmentSkipped   SegmentStatus = "skipped"
)

// PlotStatus mirrors spec §3's Daily plot status enum.
type PlotStatus string

const (
	PlotLocked    PlotStatus = "locked"
	PlotActive    PlotStatus = "active"
	PlotCompleted PlotStatus = "completed"
	PlotSkipped   PlotStatus = "skipped"
)

// Outline is one versioned life outline per role (spec §3 "Life outline").
type Outline struct {
	OutlineID    string    `json:"outline_id"`
	RoleID       string    `json:"role_id"`
	Title        string    `json:"title"`
	Birthday     time.Time `json:"birthday"`
	Life         int       `json:"life"` // 1..100
	Wealth       string    `json:"wealth"`
	OverallTheme string    `json:"overall_theme"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Stage is one life stage within an outline (spec §3 "Life stage").
type Stage struct {
	StageID    string      `json:"stage_id"`
	OutlineID  string      `json:"outline_id"`
	Order      int         `json:"order"` // 1..N dense per outline
	LifePeriod string      `json:"life_period"`
	Title      string      `json:"title"`
	Description string     `json:"description"`
	Goals      string      `json:"goals"`
	Status     StageStatus `json:"status"`
	Summary    string      `json:"summary,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Segment is one multi-day plot segment within a stage (spec §3 "Plot segment").
type Segment struct {
	SegmentID        string        `json:"segment_id"`
	StageID          string        `json:"stage_id"`
	OrderInStage     int           `json:"order_in_stage"`
	Title            string        `json:"title"`
	LifeAge          int           `json:"life_age"`
	PromptForPlotLLM string        `json:"prompt_for_plot_llm"`
	DurationDays     int           `json:"duration_days"` // >=1
	EmotionalArc     string        `json:"emotional_arc"`
	KeyNPCs          string        `json:"key_npcs"`
	Status           SegmentStatus `json:"status"`
	IsMilestone      bool          `json:"is_milestone"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// DailyPlot is one per-day narrative unit within a segment (spec §3 "Daily plot").
type DailyPlot struct {
	PlotID      string     `json:"plot_id"`
	SegmentID   string     `json:"segment_id"`
	Order       int        `json:"order"` // 1..duration_days
	PlotDate    time.Time  `json:"plot_date"`
	ContentPath string     `json:"content_path"`
	Mood        Mood       `json:"mood"` // captured at generation
	Status      PlotStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}
