package domain

import (
	"time"

	"github.com/google/uuid"
)

// FrequencyDaily is the only supported automation cadence
const FrequencyDaily = "daily"

// Automation is a persisted recurring rule that re-runs a changes group
type Automation struct {
	ID             uuid.UUID `json:"id"`
	Frequency      string    `json:"frequency"`
	StartTime      string    `json:"startTime"`
	ChangesGroupID uuid.UUID `json:"changesGroupId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AutomationEntry is an automation joined with the group it re-runs
type AutomationEntry struct {
	Automation
	ChangesGroup ChangesGroup `json:"changesGroup"`
}
