package entity

import "time"

// Story 故事（由外部故事服务维护，本服务只读）
type Story struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID   string    `json:"owner_id" gorm:"type:varchar(64);index"`
	Title     string    `json:"title" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Story) TableName() string {
	return "stories"
}
