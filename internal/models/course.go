package models

import "time"

// Course maps to the `courses` table. One course unlocks one stage.
type Course struct {
	ID          uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"column:name;size:200" json:"name"`
	Price       int    `gorm:"column:price" json:"price"`
	Description string `gorm:"column:description;type:text" json:"description"`

	// Stage token this course belongs to. The catalog should hold at most
	// one active course per token; lookups fall back to "first active".
	Level string `gorm:"column:level;size:50;index" json:"level"`

	IsActive bool       `gorm:"column:is_active;default:true" json:"is_active"`
	StartsAt *time.Time `gorm:"column:starts_at" json:"starts_at"`
	EndsAt   *time.Time `gorm:"column:ends_at" json:"ends_at"`

	// Private channel granted on purchase.
	PrivateChannelID string `gorm:"column:private_channel_id;size:100" json:"private_channel_id"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Course) TableName() string {
	return "courses"
}

// CourseParticipation maps to the `course_participations` table.
// Records that a user bought a course; creation is idempotent per pair.
type CourseParticipation struct {
	ID       uint `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID   uint `gorm:"column:user_id;uniqueIndex:idx_participation_user_course" json:"user_id"`
	CourseID uint `gorm:"column:course_id;uniqueIndex:idx_participation_user_course" json:"course_id"`

	User   User   `gorm:"foreignKey:UserID" json:"-"`
	Course Course `gorm:"foreignKey:CourseID" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (CourseParticipation) TableName() string {
	return "course_participations"
}

// MandatoryChannel maps to the `mandatory_channels` table.
type MandatoryChannel struct {
	ID         uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name       string `gorm:"column:name;size:100" json:"name"`
	TelegramID string `gorm:"column:telegram_id;size:100" json:"telegram_id"`
	Link       string `gorm:"column:link;size:200" json:"link"`
	IsTelegram bool   `gorm:"column:is_telegram;default:true" json:"is_telegram"`
	IsActive   bool   `gorm:"column:is_active;default:true" json:"is_active"`
}

func (MandatoryChannel) TableName() string {
	return "mandatory_channels"
}
