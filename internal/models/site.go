package models

import "time"

// Site is a Webflow site whose forms are routed
type Site struct {
	ID            int       `json:"id" gorm:"primaryKey;autoIncrement"`
	WebflowSiteID string    `json:"webflow_site_id" gorm:"uniqueIndex;not null"`
	Name          string    `json:"name"`
	UserID        *int      `json:"user_id,omitempty" gorm:"index"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Forms []Form `json:"-" gorm:"foreignKey:SiteID"`
}

// TableName specifies the table name for Site
func (Site) TableName() string {
	return "sites"
}

// OwnedBy reports whether userID is the dashboard user who claimed the site.
func (s Site) OwnedBy(userID int) bool {
	return s.UserID != nil && *s.UserID == userID
}

// Form is one form on a site, identified by its HTML form id
type Form struct {
	ID         int       `json:"id" gorm:"primaryKey;autoIncrement"`
	SiteID     int       `json:"site_id" gorm:"not null;uniqueIndex:idx_forms_site_html"`
	HTMLFormID string    `json:"html_form_id" gorm:"column:html_form_id;not null;uniqueIndex:idx_forms_site_html"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Site Site `json:"-" gorm:"foreignKey:SiteID"`
}

// TableName specifies the table name for Form
func (Form) TableName() string {
	return "forms"
}

// FormRef carries the string identifiers a caller knows a form by. FormID
// may be a numeric database id or an HTML form id.
type FormRef struct {
	SiteID   string `json:"siteId"`
	FormID   string `json:"formId"`
	FormName string `json:"formName,omitempty"`
}
