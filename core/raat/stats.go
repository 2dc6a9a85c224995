package raat

import (
	"context"
	"math"
	"time"

	"condor-raat/core/store"
	"condor-raat/core/utils"
)

// Statistics is the safety dashboard for one tenant over an optional date
// range. Every enum value appears in its breakdown map, zero-filled, and
// each breakdown sums to Total.
type Statistics struct {
	Total          int64            `json:"total"`
	ByKind         map[string]int64 `json:"by_kind"`
	ByStatus       map[string]int64 `json:"by_status"`
	ByNotification map[string]int64 `json:"by_notification"`
	// FrequencyRate is incidents per hundred active workers, rounded to
	// two decimals. Zero when the tenant has no active headcount.
	FrequencyRate float64 `json:"frequency_rate"`
	// RecurrenceCount is the number of workers with more than one incident
	// on record, all time regardless of the date range.
	RecurrenceCount int64 `json:"recurrence_count"`
}

func (s *Service) Statistics(ctx context.Context, tenantID int64, from, to *time.Time) (*Statistics, error) {
	byKind, err := s.store.CountsByKind(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.store.CountsByStatus(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	byNotification, err := s.store.CountsByNotification(ctx, tenantID, from, to, s.deadline.Cutoff(utils.NowUTC()))
	if err != nil {
		return nil, err
	}
	recurrence, err := s.store.RecurrentSubjects(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	headcount, err := s.workers.ActiveHeadcount(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	stats := &Statistics{
		ByKind:          zeroFill(store.IncidentKinds(), byKind),
		ByStatus:        zeroFill(store.IncidentStatuses(), byStatus),
		ByNotification:  zeroFill(store.NotificationStatuses(), byNotification),
		RecurrenceCount: recurrence,
	}
	for _, n := range stats.ByKind {
		stats.Total += n
	}
	if headcount > 0 {
		stats.FrequencyRate = math.Round(float64(stats.Total)/float64(headcount)*100*100) / 100
	}
	return stats, nil
}

func zeroFill(keys []string, counts map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(keys))
	for _, k := range keys {
		out[k] = counts[k]
	}
	return out
}
