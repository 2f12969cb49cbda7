package models

import "time"

// User maps to the `users` table.
// Telegram chat ID is stored as string, matching what the Bot API returns.
type User struct {
	ID               uint    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TelegramID       string  `gorm:"column:telegram_id;size:50;uniqueIndex" json:"telegram_id"`
	FullName         string  `gorm:"column:full_name;size:120" json:"full_name"`
	// Empty until registration completes, so uniqueness is enforced in
	// the registration flow rather than by a DB constraint.
	PhoneNumber      string  `gorm:"column:phone_number;size:20;index" json:"phone_number"`
	TelegramUsername string  `gorm:"column:telegram_username;size:50" json:"telegram_username"`
	Region           string  `gorm:"column:region;size:50" json:"region"`
	Age              int     `gorm:"column:age" json:"age"`
	Profession       string  `gorm:"column:profession;size:100" json:"profession"`
	Gender           string  `gorm:"column:gender;size:1" json:"gender"`

	// Progression. Stored as a stage token; compare only via level.Ordinal.
	Level string `gorm:"column:level;size:50;default:'0-bosqich'" json:"level"`

	// Referral linkage. ReferralCount is a cached counter over the
	// invited_by relation; replacement paths recount it, they never
	// increment in place.
	InvitedByID   *uint   `gorm:"column:invited_by_id;index" json:"invited_by_id"`
	InvitedBy     *User   `gorm:"foreignKey:InvitedByID" json:"-"`
	ReferralCode  *string `gorm:"column:referral_code;size:50;uniqueIndex" json:"referral_code"`
	ReferralCount int     `gorm:"column:referral_count;default:0" json:"referral_count"`

	// Trust flags.
	IsConfirmed   bool       `gorm:"column:is_confirmed;default:false" json:"is_confirmed"`
	IsAdmin       bool       `gorm:"column:is_admin;default:false" json:"is_admin"`
	IsBlocked     bool       `gorm:"column:is_blocked;default:false" json:"is_blocked"`
	ConfirmedByID *uint      `gorm:"column:confirmed_by_id" json:"confirmed_by_id"`
	ConfirmedAt   *time.Time `gorm:"column:confirmed_at" json:"confirmed_at"`

	// Payout requisites shown to downstream referrals.
	CardNumber         string `gorm:"column:card_number;size:30" json:"card_number"`
	CardHolderFullName string `gorm:"column:card_holder_full_name;size:120" json:"card_holder_full_name"`

	// Conversation state. Step is where the user is in a bot dialog;
	// ProcessingValue stashes the record id the dialog is about.
	Step            string `gorm:"column:step;size:50;default:'none'" json:"-"`
	ProcessingValue string `gorm:"column:processing_value;size:100" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

// Gender codes, from the registration keyboard.
const (
	GenderMale   = "M"
	GenderFemale = "F"
)
