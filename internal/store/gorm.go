package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Rocksteady808/roolify-sub002/internal/models"
)

// GormStore keeps everything in PostgreSQL
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store over an open gorm connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// settingsColumns are rewritten on every upsert; settings are never
// partially updated.
var settingsColumns = []string{
	"admin_routes",
	"user_routes",
	"admin_fallback_email",
	"user_fallback_email",
	"custom_value_template",
	"custom_values",
	"email_template",
	"admin_subject",
	"user_subject",
	"updated_at",
}

// ResolveForm finds the form a submission or settings request refers to. A
// numeric form id naming an existing form of the site wins; otherwise the
// id is treated as an HTML form id.
func (s *GormStore) ResolveForm(ctx context.Context, ref models.FormRef) (*models.Form, error) {
	ref, err := normalizeRef(ref)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	site := models.Site{}
	if err := firstOrCreate(db.Where(&models.Site{WebflowSiteID: ref.SiteID}), &site, &models.Site{WebflowSiteID: ref.SiteID}); err != nil {
		return nil, fmt.Errorf("failed to resolve site %s: %w", ref.SiteID, err)
	}

	form, err := formByID(db, site.ID, ref.FormID)
	if err != nil {
		return nil, err
	}
	if form == nil {
		form = &models.Form{}
		query := db.Where(&models.Form{SiteID: site.ID, HTMLFormID: ref.FormID})
		if err := firstOrCreate(query, form, &models.Form{SiteID: site.ID, HTMLFormID: ref.FormID, Name: ref.FormName}); err != nil {
			return nil, fmt.Errorf("failed to resolve form %s: %w", ref.FormID, err)
		}
	}
	form.Site = site
	return form, nil
}

// FindForm resolves ref like ResolveForm but never inserts.
func (s *GormStore) FindForm(ctx context.Context, ref models.FormRef) (*models.Form, error) {
	ref, err := normalizeRef(ref)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var site models.Site
	if err := db.Where(&models.Site{WebflowSiteID: ref.SiteID}).First(&site).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load site %s: %w", ref.SiteID, err)
	}

	form, err := formByID(db, site.ID, ref.FormID)
	if err != nil {
		return nil, err
	}
	if form == nil {
		form = &models.Form{}
		err := db.Where(&models.Form{SiteID: site.ID, HTMLFormID: ref.FormID}).First(form).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load form %s: %w", ref.FormID, err)
		}
	}
	form.Site = site
	return form, nil
}

// formByID loads the site's form with the numeric id formID. It returns nil
// when formID is not numeric or names no form of the site.
func formByID(db *gorm.DB, siteID int, formID string) (*models.Form, error) {
	id, err := strconv.Atoi(formID)
	if err != nil || id <= 0 {
		return nil, nil
	}
	var form models.Form
	err = db.Where("id = ? AND site_id = ?", id, siteID).First(&form).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load form %d: %w", id, err)
	}
	return &form, nil
}

// ClaimSite sets the site owner unless one is already recorded
func (s *GormStore) ClaimSite(ctx context.Context, siteID, userID int) (*models.Site, error) {
	db := s.db.WithContext(ctx)

	err := db.Model(&models.Site{}).
		Where("id = ? AND user_id IS NULL", siteID).
		Update("user_id", userID).Error
	if err != nil {
		return nil, fmt.Errorf("failed to claim site %d: %w", siteID, err)
	}

	var site models.Site
	if err := db.First(&site, siteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load site %d: %w", siteID, err)
	}
	return &site, nil
}

// firstOrCreate loads dest, inserting attrs when missing. A concurrent
// insert of the same unique key is resolved by reading the winner's row.
func firstOrCreate[T any](query *gorm.DB, dest *T, attrs *T) error {
	err := query.Session(&gorm.Session{}).First(dest).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := query.Session(&gorm.Session{NewDB: true}).Clauses(clause.OnConflict{DoNothing: true}).Create(attrs).Error; err != nil {
		return err
	}
	return query.Session(&gorm.Session{}).First(dest).Error
}

// CreateSubmission inserts a new submission
func (s *GormStore) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	if sub.PublicID == uuid.Nil {
		sub.PublicID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

// ListSubmissions returns submissions of a form, newest first
func (s *GormStore) ListSubmissions(ctx context.Context, formID, limit, offset int) ([]models.Submission, int64, error) {
	db := s.db.WithContext(ctx).Model(&models.Submission{}).Where("form_id = ?", formID).Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	var subs []models.Submission
	err := db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&subs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}
	return subs, total, nil
}

// GetSettings returns the most recently updated settings for a form
func (s *GormStore) GetSettings(ctx context.Context, formID, siteID int) (*models.NotificationSettings, error) {
	var settings models.NotificationSettings
	err := s.db.WithContext(ctx).
		Where("form_id = ? AND site_id = ?", formID, siteID).
		Order("updated_at DESC").
		First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notification settings: %w", err)
	}
	return &settings, nil
}

// UpsertSettings inserts or fully replaces settings for (form, user, site)
func (s *GormStore) UpsertSettings(ctx context.Context, settings *models.NotificationSettings) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "form_id"}, {Name: "user_id"}, {Name: "site_id"}},
		DoUpdates: clause.AssignmentColumns(settingsColumns),
	}).Create(settings).Error
	if err != nil {
		return fmt.Errorf("failed to upsert notification settings: %w", err)
	}
	return nil
}

// DeleteSubmissionsBefore removes submissions older than t
func (s *GormStore) DeleteSubmissionsBefore(ctx context.Context, t time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("created_at < ?", t).Delete(&models.Submission{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old submissions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
