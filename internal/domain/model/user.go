package model

import "time"

// User is the profile collaborator the lifecycle manager reads owner
// snapshots from. Only the fields consumed here are modelled.
type User struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UID           string    `gorm:"unique;not null;size:100" json:"uid"`
	Username      string    `gorm:"not null;size:200" json:"username"`
	WalletAddress string    `gorm:"size:100" json:"wallet_address"`
	LoginType     string    `gorm:"size:50" json:"login_type"`
	CreatedAt     time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt     time.Time `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}
