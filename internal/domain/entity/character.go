package entity

import "time"

// Character 角色，名称在故事内大小写不敏感唯一
type Character struct {
	ID                   string    `json:"id" gorm:"type:uuid;primaryKey"`
	StoryID              string    `json:"story_id" gorm:"type:uuid;index;not null"`
	Name                 string    `json:"name" gorm:"type:varchar(255);not null"`
	CanonicalDescription string    `json:"canonical_description" gorm:"type:text"`
	CreatedAt            time.Time `json:"created_at"`
}

// TableName 指定表名
func (Character) TableName() string {
	return "characters"
}
