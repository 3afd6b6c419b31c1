package model

import (
	"time"
)

type User struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	GithubID  string    `gorm:"column:github_id;size:50;uniqueIndex;not null" json:"-"`
	Username  string    `gorm:"size:50;not null" json:"username"`
	Email     *string   `gorm:"size:100" json:"email,omitempty"`
	AvatarURL string    `gorm:"size:500" json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
