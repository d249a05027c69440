package models

import "time"

// AccountSettings is the per-account settings record the app-state signals
// are derived from. Trials maps feature key to {startedAt, expiresAt};
// PaidFeatures maps feature key to a boolean flag.
type AccountSettings struct {
	AccountID      string `gorm:"primaryKey;type:uuid" json:"accountId"`
	SetupCompleted bool   `gorm:"default:false" json:"setupCompleted"`
	CompanyName    string `json:"companyName,omitempty"`
	BusinessType   string `json:"businessType,omitempty"`
	BusinessSector string `json:"businessSector,omitempty"`
	Trials         JSONB  `gorm:"type:jsonb;default:'{}'" json:"trials"`
	PaidFeatures   JSONB  `gorm:"type:jsonb;default:'{}'" json:"paidFeatures"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (AccountSettings) TableName() string {
	return "account_settings"
}
