package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/justsurfingit/job-application-tracker/internal/database"
	"github.com/justsurfingit/job-application-tracker/internal/models"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatusRecord is one row of the by-status read model. Only the keys that
// belong to the row's status are present.
type StatusRecord map[string]any

// UpsertResult counts what happened to a batch. Attempted is every non-nil
// record handed in; Attempted == Committed + Dropped + Failed.
type UpsertResult struct {
	Attempted int `json:"attempted"`
	Committed int `json:"committed"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Dropped   int `json:"dropped"`
	Failed    int `json:"failed"`
}

// ApplicationService is the reconciliation store for job_applications.
type ApplicationService struct {
	DB  *gorm.DB
	log zerolog.Logger
}

func NewApplicationService(db *gorm.DB, log zerolog.Logger) *ApplicationService {
	return &ApplicationService{DB: db, log: log}
}

// EnsureSchema creates the tables and the natural-key index if absent.
func (s *ApplicationService) EnsureSchema() error {
	return database.Migrate(s.DB)
}

// Upsert merges records one at a time, each in its own transaction. A failing
// record is counted and logged; records already committed stay committed.
func (s *ApplicationService) Upsert(ctx context.Context, records []*models.ExtractedRecord) UpsertResult {
	var res UpsertResult
	for _, rec := range records {
		if rec == nil {
			continue
		}
		res.Attempted++

		status, ok := models.ParseStatus(rec.ApplicationStatus)
		company := strings.TrimSpace(rec.CompanyName)
		title := strings.TrimSpace(rec.JobTitle)
		if !ok || company == "" || title == "" {
			res.Dropped++
			s.log.Warn().Str("message_id", rec.SourceMessageID).Str("status", rec.ApplicationStatus).
				Str("company", company).Str("title", title).Msg("⚠️ dropping record: unrecognised status or empty key")
			continue
		}

		inserted, err := s.merge(ctx, company, title, status, rec)
		if err != nil {
			res.Failed++
			s.log.Error().Err(err).Str("company", company).Str("title", title).Msg("❌ failed to persist record")
			continue
		}
		res.Committed++
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	return res
}

// merge writes application_status and the one date column owned by status.
// The insert and the conflict update are a single statement so concurrent
// runs cannot create two rows for the same key.
func (s *ApplicationService) merge(ctx context.Context, company, title string, status models.ApplicationStatus, rec *models.ExtractedRecord) (bool, error) {
	column, ok := status.DateColumn()
	if !ok {
		return false, eris.Errorf("status %q owns no date column", status)
	}
	date := NormalizeDate(rec.RawDateFor(status))

	var inserted bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev models.JobApplication
		found := tx.Where("company_name = ? AND job_title = ?", company, title).
			Limit(1).Find(&prev)
		if found.Error != nil {
			return eris.Wrap(found.Error, "read current application")
		}
		inserted = found.RowsAffected == 0

		row := models.JobApplication{
			JobID:             uuid.NewString(),
			CompanyName:       company,
			JobTitle:          title,
			ApplicationStatus: status,
		}
		row.SetDateFor(status, date)
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "company_name"}, {Name: "job_title"}},
			DoUpdates: clause.AssignmentColumns([]string{"application_status", column}),
		}).Create(&row).Error
		if err != nil {
			return eris.Wrap(err, "upsert application")
		}

		var stored models.JobApplication
		if err := tx.Select("job_id").
			Where("company_name = ? AND job_title = ?", company, title).
			Take(&stored).Error; err != nil {
			return eris.Wrap(err, "reload application id")
		}

		// a replayed email leaves the row as it was and adds no history
		if !inserted && prev.ApplicationStatus == status && FormatDate(prev.DateFor(status)) == FormatDate(date) {
			return nil
		}

		regression := status.IsRegression(prev.ApplicationStatus)
		if regression {
			s.log.Warn().Str("job_id", stored.JobID).Str("from", string(prev.ApplicationStatus)).
				Str("to", string(status)).Msg("⚠️ status moved backwards, applying anyway")
		}
		event := models.ApplicationEvent{
			JobID:           stored.JobID,
			Status:          status,
			PreviousStatus:  prev.ApplicationStatus,
			EventDate:       date,
			SourceMessageID: rec.SourceMessageID,
			Regression:      regression,
		}
		if err := tx.Create(&event).Error; err != nil {
			return eris.Wrap(err, "append application event")
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	s.log.Info().Str("company", company).Str("title", title).Str("status", string(status)).
		Bool("inserted", inserted).Msg("💾 application saved")
	return inserted, nil
}

// ApplicationsByStatus reads the table fresh and projects each row onto the
// fields meaningful for its status. Every status is present in the result.
func (s *ApplicationService) ApplicationsByStatus(ctx context.Context) (map[models.ApplicationStatus][]StatusRecord, error) {
	var apps []models.JobApplication
	if err := s.DB.WithContext(ctx).Order("company_name, job_title").Find(&apps).Error; err != nil {
		return nil, eris.Wrap(err, "list applications")
	}

	out := make(map[models.ApplicationStatus][]StatusRecord, len(models.AllStatuses))
	for _, st := range models.AllStatuses {
		out[st] = []StatusRecord{}
	}
	for i := range apps {
		app := &apps[i]
		dates := projectedDates(app.ApplicationStatus)
		if dates == nil {
			continue
		}
		rec := StatusRecord{
			"company_name": app.CompanyName,
			"job_title":    app.JobTitle,
		}
		for _, st := range dates {
			column, _ := st.DateColumn()
			rec[column] = FormatDate(app.DateFor(st))
		}
		out[app.ApplicationStatus] = append(out[app.ApplicationStatus], rec)
	}
	return out, nil
}

// projectedDates lists whose date columns a row of status s exposes.
func projectedDates(s models.ApplicationStatus) []models.ApplicationStatus {
	switch s {
	case models.StatusApplied:
		return []models.ApplicationStatus{models.StatusApplied}
	case models.StatusRejected:
		return []models.ApplicationStatus{models.StatusApplied, models.StatusRejected}
	case models.StatusInterview:
		return []models.ApplicationStatus{models.StatusApplied, models.StatusInterview}
	case models.StatusOffer:
		return []models.ApplicationStatus{models.StatusApplied, models.StatusInterview, models.StatusOffer}
	}
	return nil
}

// ProjectionColumns is the ordered key set of a StatusRecord for status s.
func ProjectionColumns(s models.ApplicationStatus) []string {
	dates := projectedDates(s)
	if dates == nil {
		return nil
	}
	cols := []string{"company_name", "job_title"}
	for _, st := range dates {
		column, _ := st.DateColumn()
		cols = append(cols, column)
	}
	return cols
}
