package models

import "time"

// Payment status lifecycle. PENDING is initial; CONFIRMED and REJECTED are
// terminal except for an explicit admin reset back to PENDING.
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusConfirmed = "CONFIRMED"
	PaymentStatusRejected  = "REJECTED"
)

// Payment kinds.
const (
	PaymentKindCourse        = "COURSE"
	PaymentKindReferralBonus = "REFERRAL_BONUS"
)

// Payment maps to the `payments` table: one course-purchase attempt.
type Payment struct {
	ID       uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID   uint   `gorm:"column:user_id;index" json:"user_id"`
	CourseID *uint  `gorm:"column:course_id" json:"course_id"`
	Kind     string `gorm:"column:kind;size:20;default:'COURSE'" json:"kind"`
	Amount   int    `gorm:"column:amount" json:"amount"`
	Status   string `gorm:"column:status;size:20;default:'PENDING';index" json:"status"`

	// Screenshot is the Telegram file id of the submitted receipt;
	// ScreenshotName is the generated name it is archived under.
	Screenshot      string `gorm:"column:screenshot;size:300" json:"screenshot"`
	ScreenshotName  string `gorm:"column:screenshot_name;size:120" json:"screenshot_name"`
	RejectionReason string `gorm:"column:rejection_reason;size:500" json:"rejection_reason"`

	ConfirmedByID *uint      `gorm:"column:confirmed_by_id" json:"confirmed_by_id"`
	ConfirmedAt   *time.Time `gorm:"column:confirmed_at" json:"confirmed_at"`

	// Delivery handle of the admin review prompt, kept on the record so a
	// decision can retract it. Concurrent reviews each carry their own.
	ReviewChatID    string `gorm:"column:review_chat_id;size:50" json:"review_chat_id"`
	ReviewMessageID int    `gorm:"column:review_message_id" json:"review_message_id"`

	User        User    `gorm:"foreignKey:UserID" json:"-"`
	Course      *Course `gorm:"foreignKey:CourseID" json:"-"`
	ConfirmedBy *User   `gorm:"foreignKey:ConfirmedByID" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// ReferralPayment maps to the `referral_payments` table: the one-off bonus a
// new member pays upward before their referral code is unlocked. The
// beneficiary is the payer's root referrer, not necessarily the direct one.
type ReferralPayment struct {
	ID         uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID     uint   `gorm:"column:user_id;index" json:"user_id"`
	ReferrerID uint   `gorm:"column:referrer_id;index" json:"referrer_id"`
	Amount     int    `gorm:"column:amount" json:"amount"`
	Status     string `gorm:"column:status;size:20;default:'PENDING';index" json:"status"`

	Screenshot      string `gorm:"column:screenshot;size:300" json:"screenshot"`
	ScreenshotName  string `gorm:"column:screenshot_name;size:120" json:"screenshot_name"`
	RejectionReason string `gorm:"column:rejection_reason;size:500" json:"rejection_reason"`

	ConfirmedByID *uint      `gorm:"column:confirmed_by_id" json:"confirmed_by_id"`
	ConfirmedAt   *time.Time `gorm:"column:confirmed_at" json:"confirmed_at"`

	ReviewChatID    string `gorm:"column:review_chat_id;size:50" json:"review_chat_id"`
	ReviewMessageID int    `gorm:"column:review_message_id" json:"review_message_id"`

	User     User `gorm:"foreignKey:UserID" json:"-"`
	Referrer User `gorm:"foreignKey:ReferrerID" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ReferralPayment) TableName() string {
	return "referral_payments"
}
