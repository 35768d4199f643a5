package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChangesLogStatus is the outcome of a pipeline execution
type ChangesLogStatus string

const (
	ChangesLogStatusSuccess ChangesLogStatus = "success"
	ChangesLogStatusFailed  ChangesLogStatus = "failed"
)

// ChangesLogType tells who triggered a pipeline execution
type ChangesLogType string

const (
	ChangesLogTypeAutomation ChangesLogType = "automation"
	ChangesLogTypeCustom     ChangesLogType = "custom"
)

// ChangesGroup is an immutable record of one resolution run and the catalogs it came from.
// Deleting a group removes its changes, logs and automations.
// Listings leave Changes empty and report only NumberOfChanges.
type ChangesGroup struct {
	ID                uuid.UUID     `json:"id"`
	CatalogURLs       []string      `json:"catalogUrls"`
	NumberOfAllOffers int           `json:"numberOfAllOffers"`
	NumberOfChanges   int           `json:"numberOfChanges"`
	Changes           []OfferChange `json:"changes,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
}

// ChangesLog is one append-only audit row per pipeline execution attempt
type ChangesLog struct {
	ID                                uuid.UUID        `json:"id"`
	ChangesGroupID                    uuid.UUID        `json:"changesGroupId"`
	Status                            ChangesLogStatus `json:"status"`
	Type                              ChangesLogType   `json:"type"`
	NumberOfSuccessfullyChangedOffers *int             `json:"numberOfSuccessfullyChangedOffers,omitempty"`
	CreatedAt                         time.Time        `json:"createdAt"`
}

// ChangesLogEntry is a log joined with the group it ran
type ChangesLogEntry struct {
	ChangesLog
	ChangesGroup ChangesGroup `json:"changesGroup"`
}
