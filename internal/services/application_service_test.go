package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/justsurfingit/job-application-tracker/internal/database"
	"github.com/justsurfingit/job-application-tracker/internal/logger"
	"github.com/justsurfingit/job-application-tracker/internal/models"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(database.Config{URL: "sqlite://:memory:"}, logger.Nop())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func rawDate(s string) *models.RawDate {
	d := models.RawDate(s)
	return &d
}

func record(company, title, status, date string) *models.ExtractedRecord {
	rec := &models.ExtractedRecord{CompanyName: company, JobTitle: title, ApplicationStatus: status}
	switch status {
	case "Applied":
		rec.DateApplied = rawDate(date)
	case "Interview":
		rec.InterviewDate = rawDate(date)
	case "Offer":
		rec.OfferDate = rawDate(date)
	case "Rejected":
		rec.DateRejected = rawDate(date)
	}
	return rec
}

func allApps(t *testing.T, db *gorm.DB) []models.JobApplication {
	t.Helper()
	var apps []models.JobApplication
	if err := db.Order("company_name, job_title").Find(&apps).Error; err != nil {
		t.Fatalf("list: %v", err)
	}
	return apps
}

func TestUpsertCreatesNewRecord(t *testing.T) {
	db := newTestDB(t)
	svc := NewApplicationService(db, logger.Nop())

	res := svc.Upsert(context.Background(), []*models.ExtractedRecord{record("Acme", "Backend Engineer", "Applied", "2024-05-01")})
	if res.Committed != 1 || res.Inserted != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	apps := allApps(t, db)
	if len(apps) != 1 {
		t.Fatalf("expected 1 row, got %d", len(apps))
	}
	a := apps[0]
	if a.JobID == "" || a.ApplicationStatus != models.StatusApplied {
		t.Fatalf("unexpected row %+v", a)
	}
	if FormatDate(a.DateApplied) != "2024-05-01" {
		t.Fatalf("date_applied = %v", FormatDate(a.DateApplied))
	}
	if a.DateRejected != nil || a.InterviewDate != nil || a.OfferDate != nil {
		t.Fatalf("other dates should be null: %+v", a)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewApplicationService(db, logger.Nop())
	batch := []*models.ExtractedRecord{
		record("Acme", "Backend Engineer", "Applied", "2024-05-01"),
		record("Globex", "PM", "Interview", "May 10, 2024"),
	}

	svc.Upsert(context.Background(), batch)
	first := allApps(t, db)
	res := svc.Upsert(context.Background(), batch)
	second := allApps(t, db)

	if res.Inserted != 0 || res.Updated != 2 {
		t.Fatalf("second run should only update: %+v", res)
	}
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("row count changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i].JobID != second[i].JobID || first[i].ApplicationStatus != second[i].ApplicationStatus {
			t.Fatalf("row %d changed: %+v -> %+v", i, first[i], second[i])
		}
		if FormatDate(first[i].InterviewDate) != FormatDate(second[i].InterviewDate) ||
			FormatDate(first[i].DateApplied) != FormatDate(second[i].DateApplied) {
			t.Fatalf("row %d dates changed", i)
		}
	}

	var events int64
	db.Model(&models.ApplicationEvent{}).Count(&events)
	if events != 2 {
		t.Fatalf("replaying a batch should add no events, got %d", events)
	}
	svc.Upsert(context.Background(), []*models.ExtractedRecord{record("Acme", "Backend Engineer", "Applied", "2024-05-03")})
	db.Model(&models.ApplicationEvent{}).Count(&events)
	if events != 3 {
		t.Fatalf("a changed date should add an event, got %d", events)
	}
}

func TestUpsertIsolatesPersistenceFailures(t *testing.T) {
	db := newTestDB(t)
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_company", func(tx *gorm.DB) {
		if app, ok := tx.Statement.Dest.(*models.JobApplication); ok && app.CompanyName == "Boom" {
			_ = tx.AddError(errors.New("disk full"))
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	svc := NewApplicationService(db, logger.Nop())

	res := svc.Upsert(context.Background(), []*models.ExtractedRecord{
		record("Acme", "Engineer", "Applied", "2024-05-01"),
		record("Boom", "Engineer", "Applied", "2024-05-01"),
		record("Globex", "PM", "Interview", "2024-05-02"),
	})
	want := UpsertResult{Attempted: 3, Committed: 2, Inserted: 2, Failed: 1}
	if res != want {
		t.Fatalf("Upsert() = %+v, want %+v", res, want)
	}
	apps := allApps(t, db)
	if len(apps) != 2 || apps[0].CompanyName != "Acme" || apps[1].CompanyName != "Globex" {
		t.Fatalf("unexpected rows %+v", apps)
	}
	var events int64
	db.Model(&models.ApplicationEvent{}).Count(&events)
	if events != 2 {
		t.Fatalf("failed record must not leave an event, got %d", events)
	}
}

func TestUpsertConcurrentWritersShareOneRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	db, err := database.Connect(database.Config{URL: "sqlite:///" + path}, logger.Nop())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	svc := NewApplicationService(db, logger.Nop())

	const writers = 8
	var wg sync.WaitGroup
	var committed, inserted atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := svc.Upsert(context.Background(), []*models.ExtractedRecord{record("Acme", "Engineer", "Applied", "2024-05-01")})
			committed.Add(int32(res.Committed))
			inserted.Add(int32(res.Inserted))
		}()
	}
	wg.Wait()

	if committed.Load() != writers || inserted.Load() != 1 {
		t.Fatalf("committed=%d inserted=%d", committed.Load(), inserted.Load())
	}
	apps := allApps(t, db)
	if len(apps) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(apps))
	}
	var ids []string
	if err := db.Model(&models.ApplicationEvent{}).Distinct().Pluck("job_id", &ids).Error; err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != apps[0].JobID {
		t.Fatalf("events should all reference %s, got %v", apps[0].JobID, ids)
	}
}

func TestUpsertMergeKeepsUnrelatedDates(t *testing.T) {
	db := newTestDB(t)
	svc := NewApplicationService(db, logger.Nop())
	ctx := context.Background()

	svc.Upsert(ctx, []*models.ExtractedRecord{record("Acme", "Backend Engineer", "Applied", "2024-05-01")})
	id := allApps(t, db)[0].JobID
	svc.Upsert(ctx, []*models.ExtractedRecord{record("Acme", "Backend Engineer", "Interview", "2024-05-20")})

	apps := allApps(t, db)
	if len(apps) != 1 {
		t.Fatalf("expected a single row, got %d", len(apps))
	}
	a := apps[0]
	if a.JobID != id {
		t.Fatalf("job_id changed: %s -> %s", id, a.JobID)
	}
	if a.ApplicationStatus != models.StatusInterview {
		t.Fatalf("status = %s", a.ApplicationStatus)
	}
	if FormatDate(a.DateApplied) != "2024-05-01" || FormatDate(a.InterviewDate) != "2024-05-20" {
		t.Fatalf("unexpected dates: applied=%v interview=%v", FormatDate(a.DateApplied), FormatDate(a.InterviewDate))
	}
}

func TestUpsertKeyIsCaseSensitive(t *testing.T) {
	db := newTestDB(t)
	svc := NewApplicationService(db, logger.Nop())

	res := svc.Upsert(context.Background(), []*models.ExtractedRecord{
		record("Acme", "Engineer", "Applied", "2024-05-01"),
		record("acme", "Engineer", "Applied", "2024-05-02"),
		record("  Acme ", "Engineer", "Rejected", "2024-06-01"),
	})
	if res.Inserted != 2 || res.Updated != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if n := len(allApps(t, db)); n != 2 {
		t.Fatalf("expected 2 distinct rows, got %d", n)
	}
}

func TestUpsertDropsInvalidRecords(t *testing.T) {
	db := newTestDB(t)
	svc := NewApplicationService(db, logger.Nop())

	res := svc.Upsert(context.Background(), []*models.ExtractedRecord{
		nil,
		record("Acme", "Engineer", "Ghosted", "2024-05-01"),
		record("", "Engineer", "Applied", "2024-05-01"),
		record("Acme", "Engineer", "applied", "not a date"),
	})
	want := UpsertResult{Attempted: 3, Committed: 1, Inserted: 1, Dropped: 2}
	if res != want {
		t.Fatalf("Upsert() = %+v, want %+v", res, want)
	}
	apps := allApps(t, db)
	if len(apps) != 1 || apps[0].ApplicationStatus != models.StatusApplied || apps[0].DateApplied != nil {
		t.Fatalf("unexpected rows %+v", apps)
	}
}

func TestUpsertRecordsEventsAndRegressions(t *testing.T) {
	db := newTestDB(t)
	svc := NewApplicationService(db, logger.Nop())
	ctx := context.Background()

	offer := record("Acme", "Engineer", "Offer", "2024-06-01")
	offer.SourceMessageID = "m1"
	late := record("Acme", "Engineer", "Applied", "2024-05-01")
	late.SourceMessageID = "m2"
	svc.Upsert(ctx, []*models.ExtractedRecord{offer, late})

	apps := allApps(t, db)
	if len(apps) != 1 || apps[0].ApplicationStatus != models.StatusApplied {
		t.Fatalf("last write should win: %+v", apps)
	}
	if FormatDate(apps[0].OfferDate) != "2024-06-01" {
		t.Fatalf("offer date lost")
	}

	var events []models.ApplicationEvent
	if err := db.Order("id").Find(&events).Error; err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].PreviousStatus != "" || events[0].Regression || events[0].SourceMessageID != "m1" {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].PreviousStatus != models.StatusOffer || !events[1].Regression || events[1].JobID != apps[0].JobID {
		t.Fatalf("unexpected second event %+v", events[1])
	}
}

func TestApplicationsByStatusProjection(t *testing.T) {
	db := newTestDB(t)
	svc := NewApplicationService(db, logger.Nop())
	ctx := context.Background()

	svc.Upsert(ctx, []*models.ExtractedRecord{
		record("Acme", "Engineer", "Applied", "2024-05-01"),
		record("Acme", "Engineer", "Rejected", "2024-05-15"),
		record("Globex", "PM", "Applied", "2024-05-02"),
		record("Initech", "SRE", "Offer", "2024-06-01"),
	})

	got, err := svc.ApplicationsByStatus(ctx)
	if err != nil {
		t.Fatalf("ApplicationsByStatus() error = %v", err)
	}
	for _, st := range models.AllStatuses {
		if got[st] == nil {
			t.Fatalf("status %s missing from result", st)
		}
	}
	if len(got[models.StatusInterview]) != 0 {
		t.Fatalf("expected no interviews, got %v", got[models.StatusInterview])
	}

	rejected := got[models.StatusRejected]
	if len(rejected) != 1 {
		t.Fatalf("expected 1 rejected, got %d", len(rejected))
	}
	r := rejected[0]
	if r["date_rejected"] != "2024-05-15" || r["date_applied"] != "2024-05-01" {
		t.Fatalf("unexpected rejected record %v", r)
	}
	for _, banned := range []string{"interview_date", "offer_date", "job_id", "application_status"} {
		if _, ok := r[banned]; ok {
			t.Fatalf("rejected record must not carry %s: %v", banned, r)
		}
	}

	applied := got[models.StatusApplied]
	if len(applied) != 1 || len(applied[0]) != 3 || applied[0]["company_name"] != "Globex" {
		t.Fatalf("unexpected applied projection %v", applied)
	}

	offer := got[models.StatusOffer]
	if len(offer) != 1 {
		t.Fatalf("expected 1 offer, got %d", len(offer))
	}
	o := offer[0]
	if o["offer_date"] != "2024-06-01" {
		t.Fatalf("offer_date = %v", o["offer_date"])
	}
	if v, ok := o["interview_date"]; !ok || v != nil {
		t.Fatalf("interview_date should be present and null, got %v (%v)", v, ok)
	}
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewApplicationService(db, logger.Nop())
	for i := 0; i < 2; i++ {
		if err := svc.EnsureSchema(); err != nil {
			t.Fatalf("EnsureSchema() run %d error = %v", i, err)
		}
	}
	if !db.Migrator().HasTable("job_applications") {
		t.Fatalf("job_applications missing")
	}
}
