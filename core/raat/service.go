package raat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"condor-raat/config"
	"condor-raat/core/raat/filestore"
	"condor-raat/core/store"
	"condor-raat/core/utils"
)

// Service owns the RAAT incident registry: creation with a frozen subject
// snapshot and a per-tenant accident number, field updates gated by the
// lifecycle lock, the DIAT notification deadline, attachments and safety
// statistics. Every operation takes the tenant id explicitly.
type Service struct {
	cfg      config.RAATConfig
	store    store.IncidentsStore
	workers  WorkerDirectory
	files    filestore.Store
	audits   store.AuditStore
	deadline DeadlineTracker
	logger   *utils.Logger
}

func NewService(cfg config.RAATConfig, incidents store.IncidentsStore, workers WorkerDirectory, files filestore.Store, audits store.AuditStore, logger *utils.Logger) *Service {
	return &Service{
		cfg:      cfg,
		store:    incidents,
		workers:  workers,
		files:    files,
		audits:   audits,
		deadline: NewDeadlineTracker(cfg.NotifyDeadline),
		logger:   logger,
	}
}

type CreateInput struct {
	EventDate time.Time `json:"event_date"`
	EventTime string    `json:"event_time"`
	Location  string    `json:"location"`
	Kind      string    `json:"kind"`
	WorkerID  int64     `json:"worker_id"`

	WorkPerformed           string `json:"work_performed"`
	Description             string `json:"description"`
	Hazards                 string `json:"hazards"`
	BodyPart                string `json:"body_part"`
	InjuryType              string `json:"injury_type"`
	Witnesses               string `json:"witnesses"`
	PossibleSequelae        string `json:"possible_sequelae"`
	CorrectiveActions       string `json:"corrective_actions"`
	MedicalTransfer         bool   `json:"medical_transfer"`
	MedicalTransferLocation string `json:"medical_transfer_location"`
	MedicalLeaveID          *int64 `json:"medical_leave_id"`
}

// UpdatePatch carries optional replacements for the narrative and system
// fields. The subject snapshot has no counterpart here on purpose: those
// columns are set at creation and are not patchable in any lifecycle state.
type UpdatePatch struct {
	EventDate *time.Time `json:"event_date"`
	EventTime *string    `json:"event_time"`
	Location  *string    `json:"location"`
	Kind      *string    `json:"kind"`

	WorkPerformed           *string `json:"work_performed"`
	Description             *string `json:"description"`
	Hazards                 *string `json:"hazards"`
	BodyPart                *string `json:"body_part"`
	InjuryType              *string `json:"injury_type"`
	Witnesses               *string `json:"witnesses"`
	PossibleSequelae        *string `json:"possible_sequelae"`
	CorrectiveActions       *string `json:"corrective_actions"`
	MedicalTransfer         *bool   `json:"medical_transfer"`
	MedicalTransferLocation *string `json:"medical_transfer_location"`
	MedicalLeaveID          *int64  `json:"medical_leave_id"`
}

type ListFilter struct {
	From               *time.Time
	To                 *time.Time
	Kind               string
	Status             string
	NotificationStatus string
	WorkerID           int64
	CostCenterCode     string
	Limit              int
	Offset             int
}

var validKinds = map[string]struct{}{
	store.KindWorkplaceAccident:   {},
	store.KindCommuteAccident:     {},
	store.KindOccupationalIllness: {},
}

func (s *Service) Create(ctx context.Context, tenantID int64, in CreateInput, actor string) (*store.Incident, error) {
	if in.EventDate.IsZero() {
		return nil, invalidf("event_date", "required")
	}
	if strings.TrimSpace(in.EventTime) == "" {
		return nil, invalidf("event_time", "required")
	}
	if strings.TrimSpace(in.Location) == "" {
		return nil, invalidf("location", "required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, invalidf("description", "required")
	}
	if _, ok := validKinds[in.Kind]; !ok {
		return nil, invalidf("kind", "must be one of %s", strings.Join(store.IncidentKinds(), ", "))
	}
	if in.WorkerID <= 0 {
		return nil, invalidf("worker_id", "required")
	}
	eventAt, err := combineEventAt(in.EventDate, in.EventTime)
	if err != nil {
		return nil, err
	}
	snapshot, err := resolveSnapshot(ctx, s.workers, tenantID, in.WorkerID, in.EventDate)
	if err != nil {
		return nil, err
	}
	inc := &store.Incident{
		TenantID:                tenantID,
		EventDate:               in.EventDate.UTC(),
		EventTime:               strings.TrimSpace(in.EventTime),
		EventAt:                 eventAt,
		Location:                in.Location,
		Kind:                    in.Kind,
		Subject:                 snapshot,
		WorkPerformed:           in.WorkPerformed,
		Description:             in.Description,
		Hazards:                 in.Hazards,
		BodyPart:                in.BodyPart,
		InjuryType:              in.InjuryType,
		Witnesses:               in.Witnesses,
		PossibleSequelae:        in.PossibleSequelae,
		CorrectiveActions:       in.CorrectiveActions,
		MedicalTransfer:         in.MedicalTransfer,
		MedicalTransferLocation: in.MedicalTransferLocation,
		MedicalLeaveID:          in.MedicalLeaveID,
		Status:                  store.IncidentOpen,
		NotificationStatus:      store.NotificationPending,
		CreatedBy:               actor,
	}
	// The counter upsert serializes allocation; the unique index on
	// (tenant_id, accident_number) is the backstop. A conflicting insert is
	// retried a bounded number of times, then reported as a retryable
	// server error.
	attempts := s.cfg.SequenceRetries
	if attempts <= 0 {
		attempts = 3
	}
	for i := 0; i < attempts; i++ {
		err = s.store.CreateIncident(ctx, inc)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
	}
	if err != nil {
		s.logger.Errorf("raat: accident number allocation for tenant %d exhausted %d attempts", tenantID, attempts)
		return nil, ErrSequenceConflict
	}
	s.audits.Log(ctx, tenantID, actor, "raat.incident.create", fmt.Sprintf("incident %d (n° %d)", inc.ID, inc.AccidentNumber))
	s.deadline.applyEffective(inc, utils.NowUTC())
	return inc, nil
}

func (s *Service) Get(ctx context.Context, tenantID, incidentID int64) (*store.Incident, error) {
	inc, err := s.store.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		return nil, err
	}
	if inc == nil {
		return nil, ErrRecordNotFound
	}
	s.deadline.applyEffective(inc, utils.NowUTC())
	return inc, nil
}

func (s *Service) List(ctx context.Context, tenantID int64, filter ListFilter) ([]store.Incident, error) {
	now := utils.NowUTC()
	items, err := s.store.ListIncidents(ctx, store.IncidentFilter{
		TenantID:           tenantID,
		From:               filter.From,
		To:                 filter.To,
		Kind:               filter.Kind,
		Status:             filter.Status,
		NotificationStatus: filter.NotificationStatus,
		WorkerID:           filter.WorkerID,
		CostCenterCode:     filter.CostCenterCode,
		NotifyCutoff:       s.deadline.Cutoff(now),
		Limit:              filter.Limit,
		Offset:             filter.Offset,
	})
	if err != nil {
		return nil, err
	}
	for i := range items {
		s.deadline.applyEffective(&items[i], now)
	}
	return items, nil
}

func (s *Service) Update(ctx context.Context, tenantID, incidentID int64, patch UpdatePatch, actor string) (*store.Incident, error) {
	inc, err := s.store.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		return nil, err
	}
	if inc == nil {
		return nil, ErrRecordNotFound
	}
	if inc.Terminal() {
		return nil, &LockedError{Status: inc.Status}
	}
	if err := applyPatch(inc, patch); err != nil {
		return nil, err
	}
	if err := s.store.UpdateIncident(ctx, inc); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost the race against a concurrent close; report the lock with
			// the status that won.
			current, gerr := s.store.GetIncident(ctx, tenantID, incidentID)
			if gerr == nil && current != nil {
				return nil, &LockedError{Status: current.Status}
			}
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	s.audits.Log(ctx, tenantID, actor, "raat.incident.update", fmt.Sprintf("incident %d", inc.ID))
	s.deadline.applyEffective(inc, utils.NowUTC())
	return inc, nil
}

func applyPatch(inc *store.Incident, patch UpdatePatch) error {
	if patch.EventDate != nil {
		if patch.EventDate.IsZero() {
			return invalidf("event_date", "required")
		}
		inc.EventDate = patch.EventDate.UTC()
	}
	if patch.EventTime != nil {
		if strings.TrimSpace(*patch.EventTime) == "" {
			return invalidf("event_time", "required")
		}
		inc.EventTime = strings.TrimSpace(*patch.EventTime)
	}
	if patch.EventDate != nil || patch.EventTime != nil {
		eventAt, err := combineEventAt(inc.EventDate, inc.EventTime)
		if err != nil {
			return err
		}
		inc.EventAt = eventAt
	}
	if patch.Location != nil {
		if strings.TrimSpace(*patch.Location) == "" {
			return invalidf("location", "required")
		}
		inc.Location = *patch.Location
	}
	if patch.Kind != nil {
		if _, ok := validKinds[*patch.Kind]; !ok {
			return invalidf("kind", "must be one of %s", strings.Join(store.IncidentKinds(), ", "))
		}
		inc.Kind = *patch.Kind
	}
	if patch.WorkPerformed != nil {
		inc.WorkPerformed = *patch.WorkPerformed
	}
	if patch.Description != nil {
		if strings.TrimSpace(*patch.Description) == "" {
			return invalidf("description", "required")
		}
		inc.Description = *patch.Description
	}
	if patch.Hazards != nil {
		inc.Hazards = *patch.Hazards
	}
	if patch.BodyPart != nil {
		inc.BodyPart = *patch.BodyPart
	}
	if patch.InjuryType != nil {
		inc.InjuryType = *patch.InjuryType
	}
	if patch.Witnesses != nil {
		inc.Witnesses = *patch.Witnesses
	}
	if patch.PossibleSequelae != nil {
		inc.PossibleSequelae = *patch.PossibleSequelae
	}
	if patch.CorrectiveActions != nil {
		inc.CorrectiveActions = *patch.CorrectiveActions
	}
	if patch.MedicalTransfer != nil {
		inc.MedicalTransfer = *patch.MedicalTransfer
	}
	if patch.MedicalTransferLocation != nil {
		inc.MedicalTransferLocation = *patch.MedicalTransferLocation
	}
	if patch.MedicalLeaveID != nil {
		inc.MedicalLeaveID = patch.MedicalLeaveID
	}
	return nil
}

// Transition moves an open incident to a terminal status and stamps the
// closing actor. Terminal is permanent: the record becomes read-only except
// for its attachment ledger.
func (s *Service) Transition(ctx context.Context, tenantID, incidentID int64, target, actor string) (*store.Incident, error) {
	inc, err := s.store.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		return nil, err
	}
	if inc == nil {
		return nil, ErrRecordNotFound
	}
	if err := CheckTransition(inc.Status, target); err != nil {
		return nil, err
	}
	updated, err := s.store.CloseIncident(ctx, tenantID, incidentID, target, actor)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			current, gerr := s.store.GetIncident(ctx, tenantID, incidentID)
			if gerr == nil && current != nil {
				return nil, &TransitionError{From: current.Status, To: target}
			}
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	s.audits.Log(ctx, tenantID, actor, "raat.incident.close", fmt.Sprintf("incident %d -> %s", incidentID, target))
	s.deadline.applyEffective(updated, utils.NowUTC())
	return updated, nil
}

// MarkNotificationSent records the DIAT filing reference. Valid from pending
// or overdue. Repeating the call with the same reference is a no-op success;
// a different reference is rejected with the one already on record.
func (s *Service) MarkNotificationSent(ctx context.Context, tenantID, incidentID int64, reference, actor string) (*store.Incident, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, invalidf("reference", "required")
	}
	inc, err := s.store.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		return nil, err
	}
	if inc == nil {
		return nil, ErrRecordNotFound
	}
	if inc.NotificationStatus == store.NotificationSent {
		if inc.NotificationRef == reference {
			return inc, nil
		}
		return nil, &AlreadySentError{ExistingRef: inc.NotificationRef}
	}
	sentAt := utils.NowUTC()
	if err := s.store.MarkNotificationSent(ctx, tenantID, incidentID, reference, sentAt); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// A concurrent caller got there first; resolve idempotency
			// against what it recorded.
			current, gerr := s.store.GetIncident(ctx, tenantID, incidentID)
			if gerr != nil || current == nil {
				return nil, ErrRecordNotFound
			}
			if current.NotificationRef == reference {
				return current, nil
			}
			return nil, &AlreadySentError{ExistingRef: current.NotificationRef}
		}
		return nil, err
	}
	s.audits.Log(ctx, tenantID, actor, "raat.notification.sent", fmt.Sprintf("incident %d ref %s", incidentID, reference))
	return s.Get(ctx, tenantID, incidentID)
}

// SweepOverdue persists the overdue escalation for every pending incident
// past the deadline, across all tenants. Safe to run concurrently from
// multiple instances.
func (s *Service) SweepOverdue(ctx context.Context) (int64, error) {
	n, err := s.store.SweepOverdue(ctx, s.deadline.Cutoff(utils.NowUTC()))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Infof("raat: escalated %d pending notification(s) to overdue", n)
	}
	return n, nil
}

type AttachmentUpload struct {
	Filename    string
	ContentType string
	Description string
	Body        io.Reader
}

// AddAttachment stores evidence on an incident. Not gated by the lifecycle
// lock: evidence may always be added, even to closed records.
func (s *Service) AddAttachment(ctx context.Context, tenantID, incidentID int64, up AttachmentUpload, actor string) (*store.Attachment, error) {
	if strings.TrimSpace(up.Filename) == "" {
		return nil, invalidf("filename", "required")
	}
	if up.Body == nil {
		return nil, invalidf("file", "required")
	}
	inc, err := s.store.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		return nil, err
	}
	if inc == nil {
		return nil, ErrRecordNotFound
	}
	ref, size, err := s.files.Save(ctx, up.Body, up.ContentType)
	if err != nil {
		return nil, err
	}
	att := &store.Attachment{
		IncidentID:  incidentID,
		FileRef:     ref,
		Filename:    up.Filename,
		ContentType: up.ContentType,
		SizeBytes:   size,
		Description: up.Description,
		UploadedBy:  actor,
	}
	if err := s.store.AddAttachment(ctx, att); err != nil {
		_ = s.files.Delete(ctx, ref)
		return nil, err
	}
	s.audits.Log(ctx, tenantID, actor, "raat.attachment.add", fmt.Sprintf("incident %d file %s", incidentID, up.Filename))
	return att, nil
}

func (s *Service) ListAttachments(ctx context.Context, tenantID, incidentID int64) ([]store.Attachment, error) {
	inc, err := s.store.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		return nil, err
	}
	if inc == nil {
		return nil, ErrRecordNotFound
	}
	return s.store.ListAttachments(ctx, incidentID)
}

// OpenAttachment streams the stored bytes for download.
func (s *Service) OpenAttachment(ctx context.Context, tenantID, attachmentID int64) (*store.Attachment, io.ReadCloser, error) {
	att, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	if att == nil || att.IncidentTenantID != tenantID || att.DeletedAt != nil {
		return nil, nil, ErrRecordNotFound
	}
	rc, err := s.files.Open(ctx, att.FileRef)
	if err != nil {
		return nil, nil, err
	}
	return att, rc, nil
}

// RemoveAttachment is the administrative escape hatch, not part of the
// ordinary workflow. The row is soft-deleted; the stored bytes are kept.
func (s *Service) RemoveAttachment(ctx context.Context, tenantID, attachmentID int64, actor string) error {
	att, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return err
	}
	if att == nil || att.IncidentTenantID != tenantID || att.DeletedAt != nil {
		return ErrRecordNotFound
	}
	if err := s.store.SoftDeleteAttachment(ctx, attachmentID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrRecordNotFound
		}
		return err
	}
	s.audits.Log(ctx, tenantID, actor, "raat.attachment.remove", fmt.Sprintf("attachment %d (incident %d)", attachmentID, att.IncidentID))
	return nil
}

func combineEventAt(date time.Time, clock string) (time.Time, error) {
	clock = strings.TrimSpace(clock)
	layout := "15:04"
	if strings.Count(clock, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, clock)
	if err != nil {
		return time.Time{}, invalidf("event_time", "must be HH:MM")
	}
	d := date.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
}
