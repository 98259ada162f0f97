package auth

import (
	"context"
	"strings"
	"time"

	"github.com/justsurfingit/job-application-tracker/internal/models"
	"github.com/rotisserie/eris"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCredentialNotFound = eris.New("credential not found")
	ErrCredentialInvalid  = eris.New("credential expired or invalid")
)

// CredentialStore persists provider bearer credentials per user. A credential
// is created on login, removed on logout and ignored once it has expired.
type CredentialStore struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{DB: db, now: time.Now}
}

// Save creates or replaces the credential for (UserID, Provider).
func (s *CredentialStore) Save(ctx context.Context, c *models.Credential) error {
	c.UserID = strings.TrimSpace(c.UserID)
	if c.UserID == "" || c.AccessToken == "" {
		return eris.Wrap(ErrCredentialInvalid, "user id and access token are required")
	}
	provider, ok := models.ParseProvider(string(c.Provider))
	if !ok {
		return eris.Wrapf(ErrCredentialInvalid, "unknown provider %q", c.Provider)
	}
	c.Provider = provider
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "token_type", "expiry", "updated_at"}),
	}).Create(c).Error
	if err != nil {
		return eris.Wrap(err, "save credential")
	}
	return nil
}

// Get returns a usable credential or ErrCredentialNotFound / ErrCredentialInvalid.
func (s *CredentialStore) Get(ctx context.Context, userID string, provider models.Provider) (*models.Credential, error) {
	var c models.Credential
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Take(&c).Error
	if eris.Is(err, gorm.ErrRecordNotFound) {
		return nil, eris.Wrapf(ErrCredentialNotFound, "user %s provider %s", userID, provider)
	}
	if err != nil {
		return nil, eris.Wrap(err, "load credential")
	}
	if c.Expired(s.clock()) {
		return nil, eris.Wrapf(ErrCredentialInvalid, "user %s provider %s expired at %s", userID, provider, c.Expiry.Format(time.RFC3339))
	}
	return &c, nil
}

// Delete invalidates a credential (logout).
func (s *CredentialStore) Delete(ctx context.Context, userID string, provider models.Provider) error {
	res := s.DB.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&models.Credential{})
	if res.Error != nil {
		return eris.Wrap(res.Error, "delete credential")
	}
	if res.RowsAffected == 0 {
		return eris.Wrapf(ErrCredentialNotFound, "user %s provider %s", userID, provider)
	}
	return nil
}

// ListValid returns every credential that has not expired.
func (s *CredentialStore) ListValid(ctx context.Context) ([]models.Credential, error) {
	var all []models.Credential
	if err := s.DB.WithContext(ctx).Order("user_id, provider").Find(&all).Error; err != nil {
		return nil, eris.Wrap(err, "list credentials")
	}
	now := s.clock()
	valid := all[:0]
	for _, c := range all {
		if !c.Expired(now) {
			valid = append(valid, c)
		}
	}
	return valid, nil
}

// PurgeExpired deletes credentials past their expiry.
func (s *CredentialStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("expiry > ? AND expiry <= ?", time.Time{}, s.clock()).
		Delete(&models.Credential{})
	if res.Error != nil {
		return 0, eris.Wrap(res.Error, "purge credentials")
	}
	return res.RowsAffected, nil
}

func (s *CredentialStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
