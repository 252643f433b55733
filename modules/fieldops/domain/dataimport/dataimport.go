package dataimport

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending     Status = "Pending"
	StatusDownloading Status = "Downloading"
	StatusProcessing  Status = "Processing"
	StatusComplete    Status = "Complete"
	StatusErrored     Status = "Errored"
)

var transitions = map[Status][]Status{
	StatusPending:     {StatusDownloading, StatusErrored},
	StatusDownloading: {StatusProcessing, StatusComplete, StatusErrored},
	StatusProcessing:  {StatusComplete, StatusErrored},
}

// CanTransition reports whether an import may move from one status to another.
// Downloading may go straight to Complete when an unchanged report is skipped.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusErrored
}

type DataImport struct {
	ID            uuid.UUID  `json:"id"`
	DataSourceID  uuid.UUID  `json:"data_source_id"`
	ReportName    string     `json:"report_name"`
	Status        Status     `json:"status"`
	Checksum      *string    `json:"checksum,omitempty"`
	RowsProcessed int        `json:"rows_processed"`
	RowsRejected  int        `json:"rows_rejected"`
	Error         *string    `json:"error,omitempty"`
	DownloadedAt  *time.Time `json:"downloaded_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Transition moves the import to status, refusing moves the lifecycle does not allow.
func (d *DataImport) Transition(to Status) error {
	if !CanTransition(d.Status, to) {
		return fmt.Errorf("invalid import status transition %s -> %s", d.Status, to)
	}
	d.Status = to
	return nil
}
