package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/Rocksteady808/roolify-sub002/internal/routing"
)

// NotificationSettings is the routing configuration of one form. Rows are
// replaced wholesale on update, keyed by (form, user, site).
type NotificationSettings struct {
	ID                  int            `json:"id" gorm:"primaryKey;autoIncrement"`
	FormID              int            `json:"form_id" gorm:"not null;uniqueIndex:idx_settings_form_user_site"`
	UserID              int            `json:"user_id" gorm:"not null;uniqueIndex:idx_settings_form_user_site"`
	SiteID              int            `json:"site_id" gorm:"not null;uniqueIndex:idx_settings_form_user_site"`
	AdminRoutes         datatypes.JSON `json:"admin_routes" gorm:"type:jsonb"`
	UserRoutes          datatypes.JSON `json:"user_routes" gorm:"type:jsonb"`
	AdminFallbackEmail  string         `json:"admin_fallback_email"`
	UserFallbackEmail   string         `json:"user_fallback_email"`
	CustomValueTemplate string         `json:"custom_value_template" gorm:"type:text"`
	CustomValues        datatypes.JSON `json:"custom_values" gorm:"type:jsonb"`
	EmailTemplate       string         `json:"email_template" gorm:"type:text"`
	AdminSubject        string         `json:"admin_subject"`
	UserSubject         string         `json:"user_subject"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// TableName specifies the table name for NotificationSettings
func (NotificationSettings) TableName() string {
	return "notification_settings"
}

// ParsedAdminRoutes decodes the admin route list. A corrupted list is
// returned as an error so callers can log it and continue without routes.
func (s *NotificationSettings) ParsedAdminRoutes() ([]routing.Route, error) {
	return routing.ParseRoutes(s.AdminRoutes)
}

// ParsedUserRoutes decodes the user route list
func (s *NotificationSettings) ParsedUserRoutes() ([]routing.Route, error) {
	return routing.ParseRoutes(s.UserRoutes)
}

// ParsedCustomValues decodes the per-field display value mapping
func (s *NotificationSettings) ParsedCustomValues() (map[string]string, error) {
	if len(s.CustomValues) == 0 || string(s.CustomValues) == "null" {
		return nil, nil
	}
	var values map[string]string
	if err := json.Unmarshal(s.CustomValues, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// SetRoutes encodes both route lists
func (s *NotificationSettings) SetRoutes(admin, user []routing.Route) error {
	adminJSON, err := marshalRoutes(admin)
	if err != nil {
		return err
	}
	userJSON, err := marshalRoutes(user)
	if err != nil {
		return err
	}
	s.AdminRoutes = adminJSON
	s.UserRoutes = userJSON
	return nil
}

// SetCustomValues encodes the per-field display value mapping
func (s *NotificationSettings) SetCustomValues(values map[string]string) error {
	if values == nil {
		values = map[string]string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return err
	}
	s.CustomValues = datatypes.JSON(b)
	return nil
}

func marshalRoutes(routes []routing.Route) (datatypes.JSON, error) {
	if routes == nil {
		routes = []routing.Route{}
	}
	b, err := json.Marshal(routes)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
