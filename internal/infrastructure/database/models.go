package database

import "time"

// Shell is the persisted form of a registered stub. Credential holds a
// fernet token, never the raw key.
type Shell struct {
	ID          uint       `gorm:"primaryKey;autoIncrement:false"`
	Location    string     `gorm:"not null"`
	Type        string     `gorm:"not null;default:posix"`
	SourceIP    string     `gorm:"default:''"`
	Credential  string     `gorm:"type:text;default:''"`
	Encoding    string     `gorm:"not null;default:utf-8"`
	Status      string     `gorm:"not null;default:unknown;index"`
	Label       string     `gorm:"default:''"`
	Note        string     `gorm:"type:text;default:''"`
	Fingerprint string     `gorm:"not null;uniqueIndex"`
	LastSeenAt  *time.Time
	CreatedAt   time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
}

// Setting is a key/value row for store-level state such as the id sequence
// and the generated fernet key.
type Setting struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
