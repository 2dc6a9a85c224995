package raat

import (
	"context"
	"time"

	"condor-raat/core/store"
)

// WorkerDirectory is the narrow view over HR master data the registry
// consumes. The HR application owns the records; the registry only resolves
// them at creation time and counts heads for the frequency rate.
type WorkerDirectory interface {
	ResolveWorker(ctx context.Context, tenantID, workerID int64) (*store.Worker, error)
	ActiveHeadcount(ctx context.Context, tenantID int64) (int64, error)
}

// resolveSnapshot freezes the worker's identity, position, seniority,
// cost center and contract terms as of the event date. The returned snapshot
// is copied into the incident row once and never recomputed: the incident is
// a point-in-time legal record, not a live join against the worker table.
func resolveSnapshot(ctx context.Context, dir WorkerDirectory, tenantID, workerID int64, eventDate time.Time) (store.SubjectSnapshot, error) {
	w, err := dir.ResolveWorker(ctx, tenantID, workerID)
	if err != nil {
		return store.SubjectSnapshot{}, err
	}
	if w == nil {
		return store.SubjectSnapshot{}, ErrSubjectNotFound
	}
	seniority := int64(eventDate.Sub(w.HireDate).Hours() / 24)
	if seniority < 0 {
		// An event before the hire date is a data-entry error; refuse the
		// record instead of clamping to zero.
		return store.SubjectSnapshot{}, invalidf("event_date", "precedes worker hire date %s", w.HireDate.Format("2006-01-02"))
	}
	return store.SubjectSnapshot{
		WorkerID:       w.ID,
		WorkerRUT:      w.RUT,
		WorkerName:     w.FullName,
		WorkerPosition: w.Position,
		SeniorityDays:  seniority,
		CostCenterCode: w.CostCenterCode,
		ContractType:   w.ContractType,
		Insurer:        w.Insurer,
	}, nil
}
