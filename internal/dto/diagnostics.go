package dto

import "time"

const (
	CheckActive           = "active"
	CheckExistingPosition = "existing_position"
	CheckMaxPositions     = "max_open_positions"
	CheckExecutionRetries = "execution_retries"
	CheckSignal           = "signal_confidence"
	CheckOptionSelection  = "option_selection"
	CheckRisk             = "risk"
)

type DiagnosticCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

type DiagnosticsReport struct {
	AutomationID     uint              `json:"automation_id"`
	CycleID          string            `json:"cycle_id,omitempty"`
	IsReady          bool              `json:"is_ready"`
	BlockingReasons  []string          `json:"blocking_reasons"`
	Checks           []DiagnosticCheck `json:"checks"`
	Signal           *Signal           `json:"signal,omitempty"`
	SelectedContract *OptionContract   `json:"selected_contract,omitempty"`
	GeneratedAt      time.Time         `json:"generated_at"`
}

// DiagnosticsOptions relaxes thresholds for a test trade. Nil fields keep
// the automation's own settings.
type DiagnosticsOptions struct {
	CycleID         string
	MinConfidence   *float64
	MinVolume       *int64
	MinOpenInterest *int64
	MaxSpreadPct    *float64
	// AllowNeutralSignal lets a neutral signal pass the direction check. A
	// weak signal always reads as neutral, so relaxing the confidence alone
	// would still block it. Opposing directions keep blocking.
	AllowNeutralSignal bool
}

type EngineStatus struct {
	Running         bool       `json:"running"`
	CycleInProgress bool       `json:"cycle_in_progress"`
	CyclesCompleted int64      `json:"cycles_completed"`
	LastCycleAt     *time.Time `json:"last_cycle_at"`
	LastCycleID     string     `json:"last_cycle_id,omitempty"`
	NextCycleAt     *time.Time `json:"next_cycle_at,omitempty"`
	MarketStatus    string     `json:"market_status"`
}

const (
	MarketStatusOpen   = "open"
	MarketStatusClosed = "closed"
)

const (
	OutcomeOpened    = "opened"
	OutcomeNotReady  = "not_ready"
	OutcomeMonitored = "monitored"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// AutomationOutcome is the per automation entry of a cycle.
type AutomationOutcome struct {
	AutomationID    uint     `json:"automation_id"`
	Outcome         string   `json:"outcome"`
	Message         string   `json:"message,omitempty"`
	BlockingReasons []string `json:"blocking_reasons,omitempty"`
	PositionID      uint     `json:"position_id,omitempty"`
	PositionsClosed int      `json:"positions_closed"`
}

type CycleResult struct {
	CycleID    string              `json:"cycle_id"`
	Trigger    string              `json:"trigger"`
	MarketOpen bool                `json:"market_open"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Outcomes   []AutomationOutcome `json:"outcomes"`
}
