package raat

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"condor-raat/config"
	"condor-raat/core/raat/filestore"
	"condor-raat/core/store"
	"condor-raat/core/utils"
	"condor-raat/core/workers"
)

type testEnv struct {
	svc       *Service
	incidents store.IncidentsStore
	workersSt store.WorkersStore
	workerDir *workers.Service
	files     filestore.Store
	audits    store.AuditStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := utils.NewLogger()
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "test.db"),
		Storage:  config.StorageConfig{Driver: "local", Dir: filepath.Join(t.TempDir(), "files")},
	}
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, cfg.DBDriver, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	files, err := filestore.New(context.Background(), cfg.Storage)
	if err != nil {
		t.Fatalf("filestore: %v", err)
	}
	incidents := store.NewIncidentsStore(db)
	workersStore := store.NewWorkersStore(db)
	audits := store.NewAuditStore(db)
	dir := workers.NewService(workersStore)
	svc := NewService(config.RAATConfig{NotifyDeadline: 24 * time.Hour, SequenceRetries: 3},
		incidents, dir, files, audits, logger)
	return &testEnv{svc: svc, incidents: incidents, workersSt: workersStore, workerDir: dir, files: files, audits: audits}
}

func seedWorker(t *testing.T, env *testEnv, tenantID int64, rut, name string, hireDate time.Time, active bool) int64 {
	t.Helper()
	w := &store.Worker{
		TenantID:     tenantID,
		RUT:          rut,
		FullName:     name,
		Position:     "operator",
		HireDate:     hireDate,
		ContractType: "indefinido",
		Insurer:      "ACHS",
		Active:       active,
	}
	if err := env.workersSt.Create(context.Background(), w); err != nil {
		t.Fatalf("seed worker: %v", err)
	}
	return w.ID
}

func validInput(workerID int64, eventDate time.Time) CreateInput {
	return CreateInput{
		EventDate:   eventDate,
		EventTime:   "10:30",
		Location:    "bodega central",
		Kind:        store.KindWorkplaceAccident,
		WorkerID:    workerID,
		Description: "caida desde escalera",
	}
}

func TestCreateAssignsSequentialNumbersPerTenant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hire := time.Now().UTC().AddDate(-2, 0, 0)
	w1 := seedWorker(t, env, 1, "11.111.111-1", "Ana Rojas", hire, true)
	w2 := seedWorker(t, env, 2, "22.222.222-2", "Pedro Soto", hire, true)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	first, err := env.svc.Create(ctx, 1, validInput(w1, today), "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := env.svc.Create(ctx, 1, validInput(w1, today), "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other, err := env.svc.Create(ctx, 2, validInput(w2, today), "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.AccidentNumber != 1 || second.AccidentNumber != 2 {
		t.Fatalf("tenant 1 numbers = %d, %d; want 1, 2", first.AccidentNumber, second.AccidentNumber)
	}
	if other.AccidentNumber != 1 {
		t.Fatalf("tenant 2 starts its own sequence, got %d", other.AccidentNumber)
	}
	if first.Status != store.IncidentOpen || first.NotificationStatus != store.NotificationPending {
		t.Fatalf("new incident must be open/pending, got %s/%s", first.Status, first.NotificationStatus)
	}
}

func TestCreateSnapshotFrozenAgainstLaterEdits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hire := time.Now().UTC().AddDate(0, 0, -100)
	workerID := seedWorker(t, env, 1, "11.111.111-1", "Ana Rojas", hire, true)

	inc, err := env.svc.Create(ctx, 1, validInput(workerID, time.Now().UTC()), "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inc.Subject.WorkerName != "Ana Rojas" {
		t.Fatalf("snapshot name = %q", inc.Subject.WorkerName)
	}
	if inc.Subject.SeniorityDays != 100 {
		t.Fatalf("seniority = %d, want 100", inc.Subject.SeniorityDays)
	}

	w, err := env.workersSt.Get(ctx, 1, workerID)
	if err != nil || w == nil {
		t.Fatalf("get worker: %v", err)
	}
	w.FullName = "Ana Rojas de Perez"
	w.Position = "supervisor"
	if err := env.workersSt.Update(ctx, w); err != nil {
		t.Fatalf("update worker: %v", err)
	}

	got, err := env.svc.Get(ctx, 1, inc.ID)
	if err != nil {
		t.Fatalf("get incident: %v", err)
	}
	if got.Subject.WorkerName != "Ana Rojas" || got.Subject.WorkerPosition != "operator" {
		t.Fatalf("snapshot changed after worker edit: %+v", got.Subject)
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hire := time.Now().UTC().AddDate(-1, 0, 0)
	workerID := seedWorker(t, env, 1, "11.111.111-1", "Ana Rojas", hire, true)
	today := time.Now().UTC()

	cases := []struct {
		name  string
		mut   func(*CreateInput)
		field string
	}{
		{"missing description", func(in *CreateInput) { in.Description = " " }, "description"},
		{"missing location", func(in *CreateInput) { in.Location = "" }, "location"},
		{"missing time", func(in *CreateInput) { in.EventTime = "" }, "event_time"},
		{"bad time", func(in *CreateInput) { in.EventTime = "25:99" }, "event_time"},
		{"bad kind", func(in *CreateInput) { in.Kind = "near_miss" }, "kind"},
		{"event before hire", func(in *CreateInput) { in.EventDate = hire.AddDate(0, 0, -1) }, "event_date"},
	}
	for _, tc := range cases {
		in := validInput(workerID, today)
		tc.mut(&in)
		_, err := env.svc.Create(ctx, 1, in, "tester")
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		if ve.Field != tc.field {
			t.Fatalf("%s: field = %q, want %q", tc.name, ve.Field, tc.field)
		}
	}

	_, err := env.svc.Create(ctx, 1, validInput(9999, today), "tester")
	if !errors.Is(err, ErrSubjectNotFound) {
		t.Fatalf("unknown worker: expected ErrSubjectNotFound, got %v", err)
	}
	_, err = env.svc.Create(ctx, 2, validInput(workerID, today), "tester")
	if !errors.Is(err, ErrSubjectNotFound) {
		t.Fatalf("cross-tenant worker: expected ErrSubjectNotFound, got %v", err)
	}
}

func TestUpdateAndLifecycleLock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	workerID := seedWorker(t, env, 1, "11.111.111-1", "Ana Rojas", time.Now().UTC().AddDate(-1, 0, 0), true)
	inc, err := env.svc.Create(ctx, 1, validInput(workerID, time.Now().UTC()), "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	desc := "golpe con estanteria"
	updated, err := env.svc.Update(ctx, 1, inc.ID, UpdatePatch{Description: &desc}, "tester")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Description != desc {
		t.Fatalf("description = %q", updated.Description)
	}
	if updated.Subject.WorkerName != inc.Subject.WorkerName {
		t.Fatalf("update touched the snapshot")
	}

	closed, err := env.svc.Transition(ctx, 1, inc.ID, store.IncidentClosed, "boss")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != store.IncidentClosed || closed.ClosedAt == nil || closed.ClosedBy != "boss" {
		t.Fatalf("close not stamped: %+v", closed)
	}

	_, err = env.svc.Update(ctx, 1, inc.ID, UpdatePatch{Description: &desc}, "tester")
	var le *LockedError
	if !errors.As(err, &le) {
		t.Fatalf("expected LockedError on terminal record, got %v", err)
	}
	if le.Status != store.IncidentClosed {
		t.Fatalf("lock carries status %q", le.Status)
	}

	_, err = env.svc.Transition(ctx, 1, inc.ID, store.IncidentConsolidated, "boss")
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransitionError on second close, got %v", err)
	}
}

func TestNotificationIdempotency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	workerID := seedWorker(t, env, 1, "11.111.111-1", "Ana Rojas", time.Now().UTC().AddDate(-1, 0, 0), true)
	inc, err := env.svc.Create(ctx, 1, validInput(workerID, time.Now().UTC()), "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := env.svc.MarkNotificationSent(ctx, 1, inc.ID, "  ", "tester"); err == nil {
		t.Fatalf("blank reference must be rejected")
	}

	sent, err := env.svc.MarkNotificationSent(ctx, 1, inc.ID, "DIAT-2026-001", "tester")
	if err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if sent.NotificationStatus != store.NotificationSent || sent.NotificationSentAt == nil {
		t.Fatalf("not marked sent: %+v", sent)
	}

	again, err := env.svc.MarkNotificationSent(ctx, 1, inc.ID, "DIAT-2026-001", "tester")
	if err != nil {
		t.Fatalf("same reference must be a no-op, got %v", err)
	}
	if again.NotificationRef != "DIAT-2026-001" {
		t.Fatalf("reference = %q", again.NotificationRef)
	}

	_, err = env.svc.MarkNotificationSent(ctx, 1, inc.ID, "DIAT-2026-002", "tester")
	var ae *AlreadySentError
	if !errors.As(err, &ae) {
		t.Fatalf("different reference must be rejected, got %v", err)
	}
	if ae.ExistingRef != "DIAT-2026-001" {
		t.Fatalf("existing ref = %q", ae.ExistingRef)
	}
}

func TestOverdueEffectiveReadsAndSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	workerID := seedWorker(t, env, 1, "11.111.111-1", "Ana Rojas", time.Now().UTC().AddDate(-1, 0, 0), true)

	stale, err := env.svc.Create(ctx, 1, validInput(workerID, time.Now().UTC().AddDate(0, 0, -3)), "tester")
	if err != nil {
		t.Fatalf("create stale: %v", err)
	}
	fresh, err := env.svc.Create(ctx, 1, validInput(workerID, time.Now().UTC()), "tester")
	if err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	got, err := env.svc.Get(ctx, 1, stale.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.NotificationStatus != store.NotificationOverdue {
		t.Fatalf("stale incident must read as overdue before any sweep, got %s", got.NotificationStatus)
	}

	overdue, err := env.svc.List(ctx, 1, ListFilter{NotificationStatus: store.NotificationOverdue})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != stale.ID {
		t.Fatalf("overdue filter matched %d rows", len(overdue))
	}

	n, err := env.svc.SweepOverdue(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("sweep escalated %d rows, want 1", n)
	}
	n, err = env.svc.SweepOverdue(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second sweep must be a no-op, got n=%d err=%v", n, err)
	}

	// Filing from overdue is still legal; the record keeps the late filing.
	sent, err := env.svc.MarkNotificationSent(ctx, 1, stale.ID, "DIAT-LATE-1", "tester")
	if err != nil {
		t.Fatalf("mark sent from overdue: %v", err)
	}
	if sent.NotificationStatus != store.NotificationSent {
		t.Fatalf("status = %s", sent.NotificationStatus)
	}

	rest, err := env.svc.Get(ctx, 1, fresh.ID)
	if err != nil || rest.NotificationStatus != store.NotificationPending {
		t.Fatalf("fresh incident must stay pending, got %v %v", rest, err)
	}
}

func TestStatisticsZeroFillFrequencyAndRecurrence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hire := time.Now().UTC().AddDate(-1, 0, 0)
	wA := seedWorker(t, env, 1, "11.111.111-1", "Ana Rojas", hire, true)
	wB := seedWorker(t, env, 1, "22.222.222-2", "Pedro Soto", hire, true)
	seedWorker(t, env, 1, "33.333.333-3", "Rosa Diaz", hire, true)
	seedWorker(t, env, 1, "44.444.444-4", "Luis Vega", hire, true)
	seedWorker(t, env, 1, "55.555.555-5", "Ines Paz", hire, false)

	today := time.Now().UTC()
	in := validInput(wA, today)
	if _, err := env.svc.Create(ctx, 1, in, "tester"); err != nil {
		t.Fatalf("create: %v", err)
	}
	in = validInput(wA, today)
	in.Kind = store.KindCommuteAccident
	if _, err := env.svc.Create(ctx, 1, in, "tester"); err != nil {
		t.Fatalf("create: %v", err)
	}
	in = validInput(wB, today)
	inc, err := env.svc.Create(ctx, 1, in, "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.svc.Transition(ctx, 1, inc.ID, store.IncidentClosed, "boss"); err != nil {
		t.Fatalf("close: %v", err)
	}

	stats, err := env.svc.Statistics(ctx, 1, nil, nil)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("total = %d", stats.Total)
	}
	if len(stats.ByKind) != 3 || stats.ByKind[store.KindOccupationalIllness] != 0 {
		t.Fatalf("by_kind must carry every kind zero-filled: %v", stats.ByKind)
	}
	if stats.ByKind[store.KindWorkplaceAccident] != 2 || stats.ByKind[store.KindCommuteAccident] != 1 {
		t.Fatalf("by_kind = %v", stats.ByKind)
	}
	if stats.ByStatus[store.IncidentOpen] != 2 || stats.ByStatus[store.IncidentClosed] != 1 {
		t.Fatalf("by_status = %v", stats.ByStatus)
	}
	var notifSum int64
	for _, n := range stats.ByNotification {
		notifSum += n
	}
	if notifSum != stats.Total {
		t.Fatalf("by_notification sums to %d, want %d", notifSum, stats.Total)
	}
	// 3 incidents over 4 active workers.
	if stats.FrequencyRate != 75.0 {
		t.Fatalf("frequency rate = %v, want 75", stats.FrequencyRate)
	}
	if stats.RecurrenceCount != 1 {
		t.Fatalf("recurrence = %d, want 1", stats.RecurrenceCount)
	}
}

func TestStatisticsZeroHeadcount(t *testing.T) {
	env := newTestEnv(t)
	stats, err := env.svc.Statistics(context.Background(), 7, nil, nil)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Total != 0 || stats.FrequencyRate != 0 {
		t.Fatalf("empty tenant stats = %+v", stats)
	}
}

func TestAttachmentLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	workerID := seedWorker(t, env, 1, "11.111.111-1", "Ana Rojas", time.Now().UTC().AddDate(-1, 0, 0), true)
	inc, err := env.svc.Create(ctx, 1, validInput(workerID, time.Now().UTC()), "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.svc.Transition(ctx, 1, inc.ID, store.IncidentClosed, "boss"); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Evidence is accepted even on a closed record.
	att, err := env.svc.AddAttachment(ctx, 1, inc.ID, AttachmentUpload{
		Filename:    "informe.pdf",
		ContentType: "application/pdf",
		Description: "informe medico",
		Body:        strings.NewReader("pdf-bytes"),
	}, "tester")
	if err != nil {
		t.Fatalf("add attachment: %v", err)
	}
	if att.SizeBytes != int64(len("pdf-bytes")) {
		t.Fatalf("size = %d", att.SizeBytes)
	}

	items, err := env.svc.ListAttachments(ctx, 1, inc.ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("list attachments: %v (%d)", err, len(items))
	}

	got, rc, err := env.svc.OpenAttachment(ctx, 1, att.ID)
	if err != nil {
		t.Fatalf("open attachment: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "pdf-bytes" || got.Filename != "informe.pdf" {
		t.Fatalf("download mismatch: %q %q", body, got.Filename)
	}

	if _, _, err := env.svc.OpenAttachment(ctx, 2, att.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("cross-tenant download must 404, got %v", err)
	}

	if err := env.svc.RemoveAttachment(ctx, 1, att.ID, "admin"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	items, err = env.svc.ListAttachments(ctx, 1, inc.ID)
	if err != nil || len(items) != 0 {
		t.Fatalf("removed attachment still listed: %v (%d)", err, len(items))
	}
	if err := env.svc.RemoveAttachment(ctx, 1, att.ID, "admin"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("double remove must 404, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hire := time.Now().UTC().AddDate(-1, 0, 0)
	wA := seedWorker(t, env, 1, "11.111.111-1", "Ana Rojas", hire, true)
	wB := seedWorker(t, env, 1, "22.222.222-2", "Pedro Soto", hire, true)

	today := time.Now().UTC()
	in := validInput(wA, today)
	if _, err := env.svc.Create(ctx, 1, in, "tester"); err != nil {
		t.Fatalf("create: %v", err)
	}
	in = validInput(wB, today)
	in.Kind = store.KindOccupationalIllness
	if _, err := env.svc.Create(ctx, 1, in, "tester"); err != nil {
		t.Fatalf("create: %v", err)
	}

	byKind, err := env.svc.List(ctx, 1, ListFilter{Kind: store.KindOccupationalIllness})
	if err != nil || len(byKind) != 1 {
		t.Fatalf("kind filter: %v (%d)", err, len(byKind))
	}
	byWorker, err := env.svc.List(ctx, 1, ListFilter{WorkerID: wA})
	if err != nil || len(byWorker) != 1 || byWorker[0].Subject.WorkerID != wA {
		t.Fatalf("worker filter: %v (%d)", err, len(byWorker))
	}
	otherTenant, err := env.svc.List(ctx, 2, ListFilter{})
	if err != nil || len(otherTenant) != 0 {
		t.Fatalf("tenant isolation: %v (%d)", err, len(otherTenant))
	}
	limited, err := env.svc.List(ctx, 1, ListFilter{Limit: 1})
	if err != nil || len(limited) != 1 {
		t.Fatalf("limit: %v (%d)", err, len(limited))
	}
}

func TestConcurrentCreatesAllocateDistinctNumbers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	workerID := seedWorker(t, env, 1, "11.111.111-1", "Ana Rojas", time.Now().UTC().AddDate(-1, 0, 0), true)

	const n = 12
	var wg sync.WaitGroup
	numbers := make(chan int64, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inc, err := env.svc.Create(ctx, 1, validInput(workerID, time.Now().UTC()), "tester")
			if err != nil {
				errs <- err
				return
			}
			numbers <- inc.AccidentNumber
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent create: %v", err)
	}
	seen := map[int64]bool{}
	for num := range numbers {
		if seen[num] {
			t.Fatalf("accident number %d allocated twice", num)
		}
		seen[num] = true
	}
	if len(seen) != n {
		t.Fatalf("allocated %d distinct numbers, want %d", len(seen), n)
	}
	for want := int64(1); want <= n; want++ {
		if !seen[want] {
			t.Fatalf("number %d missing from the allocation", want)
		}
	}
}

// conflictingCreates forces the unique-constraint path on every insert so
// the bounded retry loop runs to exhaustion.
type conflictingCreates struct {
	store.IncidentsStore
	calls int
}

func (s *conflictingCreates) CreateIncident(ctx context.Context, inc *store.Incident) error {
	s.calls++
	return store.ErrConflict
}

func TestCreateRetryExhaustionReportsSequenceConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	workerID := seedWorker(t, env, 1, "11.111.111-1", "Ana Rojas", time.Now().UTC().AddDate(-1, 0, 0), true)

	stub := &conflictingCreates{IncidentsStore: env.incidents}
	svc := NewService(config.RAATConfig{NotifyDeadline: 24 * time.Hour, SequenceRetries: 3},
		stub, env.workerDir, env.files, env.audits, utils.NewLogger())

	_, err := svc.Create(ctx, 1, validInput(workerID, time.Now().UTC()), "tester")
	if !errors.Is(err, ErrSequenceConflict) {
		t.Fatalf("expected ErrSequenceConflict after exhausted retries, got %v", err)
	}
	if stub.calls != 3 {
		t.Fatalf("create attempted %d times, want 3", stub.calls)
	}
}

func TestStatisticsRangeBoundsWithAllTimeRecurrence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hire := time.Now().UTC().AddDate(-2, 0, 0)
	workerID := seedWorker(t, env, 1, "11.111.111-1", "Ana Rojas", hire, true)

	// Same worker: one incident half a year back, one this week.
	old := validInput(workerID, time.Now().UTC().AddDate(0, -6, 0))
	if _, err := env.svc.Create(ctx, 1, old, "tester"); err != nil {
		t.Fatalf("create old: %v", err)
	}
	recent := validInput(workerID, time.Now().UTC())
	recent.Kind = store.KindCommuteAccident
	if _, err := env.svc.Create(ctx, 1, recent, "tester"); err != nil {
		t.Fatalf("create recent: %v", err)
	}

	from := time.Now().UTC().AddDate(0, 0, -7)
	stats, err := env.svc.Statistics(ctx, 1, &from, nil)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("ranged total = %d, want 1", stats.Total)
	}
	if stats.ByKind[store.KindCommuteAccident] != 1 || stats.ByKind[store.KindWorkplaceAccident] != 0 {
		t.Fatalf("ranged by_kind must cover only the in-range incident: %v", stats.ByKind)
	}
	// Recurrence ignores the range: both incidents belong to one worker.
	if stats.RecurrenceCount != 1 {
		t.Fatalf("recurrence = %d, want 1 regardless of range", stats.RecurrenceCount)
	}

	all, err := env.svc.Statistics(ctx, 1, nil, nil)
	if err != nil {
		t.Fatalf("statistics all: %v", err)
	}
	if all.Total != 2 || all.RecurrenceCount != 1 {
		t.Fatalf("unbounded stats = total %d recurrence %d, want 2 and 1", all.Total, all.RecurrenceCount)
	}
}
