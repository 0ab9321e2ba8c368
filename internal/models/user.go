package models

// User is a platform account. Registration and credentials live elsewhere;
// this service only reads users to resolve the authenticated principal.
type User struct {
	BaseModel

	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName string `json:"display_name"`
	IsActive    bool   `gorm:"not null;default:true" json:"is_active"`
}
