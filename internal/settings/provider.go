// Package settings implements the app-state coordinator's settings/auth
// collaborator on top of the local database.
package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldfolio/fieldfoliogo/internal/appstate"
	"github.com/fieldfolio/fieldfoliogo/internal/database"
	"github.com/fieldfolio/fieldfoliogo/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Provider reads and writes the per-account settings record. The signed-in
// account is session state: SetAccount after login, ClearAccount on logout.
type Provider struct {
	mu        sync.RWMutex
	db        *database.DB
	accountID string
}

// NewProvider creates a settings provider with no signed-in account.
func NewProvider(db *database.DB) *Provider {
	return &Provider{db: db}
}

// SetAccount binds the provider to the signed-in account and makes sure its
// settings row exists.
func (p *Provider) SetAccount(ctx context.Context, accountID string) error {
	row := models.AccountSettings{AccountID: accountID}
	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("ensure settings row: %w", err)
	}

	p.mu.Lock()
	p.accountID = accountID
	p.mu.Unlock()
	return nil
}

// ClearAccount drops the session binding.
func (p *Provider) ClearAccount() {
	p.mu.Lock()
	p.accountID = ""
	p.mu.Unlock()
}

// AccountID returns the signed-in account id, empty when signed out.
func (p *Provider) AccountID(ctx context.Context) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.accountID, nil
}

// CurrentAccountID is the non-erroring variant used by sync guards.
func (p *Provider) CurrentAccountID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.accountID
}

// FetchAuth reports authentication and admin role for the bound account.
func (p *Provider) FetchAuth(ctx context.Context) (bool, bool, error) {
	id := p.CurrentAccountID()
	if id == "" {
		return false, false, nil
	}

	var user models.UserAuth
	err := p.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err == gorm.ErrRecordNotFound {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("fetch user: %w", err)
	}
	return user.IsActive, user.IsAdmin(), nil
}

func (p *Provider) settingsRow(ctx context.Context) (*models.AccountSettings, error) {
	id := p.CurrentAccountID()
	if id == "" {
		return &models.AccountSettings{}, nil
	}

	var row models.AccountSettings
	err := p.db.WithContext(ctx).Where("account_id = ?", id).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return &models.AccountSettings{AccountID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch settings: %w", err)
	}
	return &row, nil
}

// FetchSetup returns the onboarding fields.
func (p *Provider) FetchSetup(ctx context.Context) (appstate.SetupInfo, error) {
	row, err := p.settingsRow(ctx)
	if err != nil {
		return appstate.SetupInfo{}, err
	}
	return appstate.SetupInfo{
		SetupCompleted: row.SetupCompleted,
		CompanyName:    row.CompanyName,
		BusinessType:   row.BusinessType,
		BusinessSector: row.BusinessSector,
	}, nil
}

// FetchTrials decodes the trial map. Malformed entries are skipped rather
// than failing the whole signal group.
func (p *Provider) FetchTrials(ctx context.Context) (map[string]appstate.Trial, error) {
	row, err := p.settingsRow(ctx)
	if err != nil {
		return nil, err
	}

	trials := make(map[string]appstate.Trial, len(row.Trials))
	for key, raw := range row.Trials {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		started, err1 := time.Parse(time.RFC3339, fmt.Sprintf("%v", entry["startedAt"]))
		expires, err2 := time.Parse(time.RFC3339, fmt.Sprintf("%v", entry["expiresAt"]))
		if err1 != nil || err2 != nil {
			continue
		}
		trials[key] = appstate.Trial{StartedAt: started, ExpiresAt: expires}
	}
	return trials, nil
}

// FetchPaidFeatures decodes the paid-feature flags.
func (p *Provider) FetchPaidFeatures(ctx context.Context) (map[string]bool, error) {
	row, err := p.settingsRow(ctx)
	if err != nil {
		return nil, err
	}

	paid := make(map[string]bool, len(row.PaidFeatures))
	for key, raw := range row.PaidFeatures {
		if on, ok := raw.(bool); ok {
			paid[key] = on
		}
	}
	return paid, nil
}

var setupColumns = map[string]string{
	"companyName":    "company_name",
	"businessType":   "business_type",
	"businessSector": "business_sector",
	"setupCompleted": "setup_completed",
}

// WriteSetupField writes a single onboarding field.
func (p *Provider) WriteSetupField(ctx context.Context, field string, value interface{}) error {
	column, ok := setupColumns[field]
	if !ok {
		return fmt.Errorf("unknown setup field %q", field)
	}

	id := p.CurrentAccountID()
	if id == "" {
		return fmt.Errorf("no signed-in account")
	}

	return p.db.WithContext(ctx).Model(&models.AccountSettings{}).
		Where("account_id = ?", id).
		Update(column, value).Error
}

// StartTrial records a trial window for one feature key. Existing entries
// are never overwritten: a trial can only be taken once.
func (p *Provider) StartTrial(ctx context.Context, key string, duration time.Duration) error {
	id := p.CurrentAccountID()
	if id == "" {
		return fmt.Errorf("no signed-in account")
	}

	row, err := p.settingsRow(ctx)
	if err != nil {
		return err
	}
	if _, exists := row.Trials[key]; exists {
		return fmt.Errorf("trial for %q already used", key)
	}

	now := time.Now().UTC()
	if row.Trials == nil {
		row.Trials = make(models.JSONB)
	}
	row.Trials[key] = map[string]interface{}{
		"startedAt": now.Format(time.RFC3339),
		"expiresAt": now.Add(duration).Format(time.RFC3339),
	}
	return p.db.WithContext(ctx).Model(&models.AccountSettings{}).
		Where("account_id = ?", id).
		Update("trials", row.Trials).Error
}

// SetPaidFeature flips one paid-feature flag on after a purchase.
func (p *Provider) SetPaidFeature(ctx context.Context, key string) error {
	id := p.CurrentAccountID()
	if id == "" {
		return fmt.Errorf("no signed-in account")
	}

	row, err := p.settingsRow(ctx)
	if err != nil {
		return err
	}
	if row.PaidFeatures == nil {
		row.PaidFeatures = make(models.JSONB)
	}
	row.PaidFeatures[key] = true
	return p.db.WithContext(ctx).Model(&models.AccountSettings{}).
		Where("account_id = ?", id).
		Update("paid_features", row.PaidFeatures).Error
}

// WriteReset marks setup incomplete and clears every trial entry and
// paid-feature flag, not just individual ones.
func (p *Provider) WriteReset(ctx context.Context) error {
	id := p.CurrentAccountID()
	if id == "" {
		return fmt.Errorf("no signed-in account")
	}

	return p.db.WithContext(ctx).Model(&models.AccountSettings{}).
		Where("account_id = ?", id).
		Updates(map[string]interface{}{
			"setup_completed": false,
			"company_name":    "",
			"business_type":   "",
			"business_sector": "",
			"trials":          models.JSONB{},
			"paid_features":   models.JSONB{},
		}).Error
}
