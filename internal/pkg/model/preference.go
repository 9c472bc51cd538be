package model

import "time"

// Themes accepted for the theme preference.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// ValidTheme reports whether t is one of the supported themes.
func ValidTheme(t string) bool { return t == ThemeLight || t == ThemeDark }

// ThemePreference represents a row in theme_preference.
type ThemePreference struct {
	ClientID  string    `gorm:"column:client_id;primaryKey;size:64" json:"client_id"`
	Theme     string    `gorm:"column:theme;size:16;not null" json:"theme" validate:"oneof=light dark"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName implements gorm's tabler interface.
func (ThemePreference) TableName() string { return "theme_preference" }
