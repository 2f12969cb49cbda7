package repository

import (
	"gorm.io/gorm"

	"kursbot/internal/models"
)

// CourseRepository handles course catalog database operations.
type CourseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) WithTx(tx *gorm.DB) *CourseRepository {
	return &CourseRepository{db: tx}
}

// FindByID finds a course by primary key.
func (r *CourseRepository) FindByID(id uint) (*models.Course, error) {
	var course models.Course
	if err := r.db.First(&course, id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// FindActiveByLevel returns the active course for a stage token.
// The catalog should hold one active course per stage; if that is violated
// the oldest active one wins.
func (r *CourseRepository) FindActiveByLevel(levelToken string) (*models.Course, error) {
	var course models.Course
	err := r.db.Where("level = ? AND is_active = ?", levelToken, true).
		Order("id ASC").
		First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// FindActive returns all active courses ordered by stage.
func (r *CourseRepository) FindActive() ([]models.Course, error) {
	var courses []models.Course
	err := r.db.Where("is_active = ?", true).Order("level ASC").Find(&courses).Error
	return courses, err
}

// Create inserts a new course.
func (r *CourseRepository) Create(course *models.Course) error {
	return r.db.Create(course).Error
}

// EnsureParticipation records that a user bought a course. Creating the
// same pair twice is a no-op.
func (r *CourseRepository) EnsureParticipation(userID, courseID uint) error {
	participation := models.CourseParticipation{UserID: userID, CourseID: courseID}
	return r.db.Where("user_id = ? AND course_id = ?", userID, courseID).
		FirstOrCreate(&participation).Error
}

// FindParticipations returns all course participations for a user,
// course preloaded.
func (r *CourseRepository) FindParticipations(userID uint) ([]models.CourseParticipation, error) {
	var participations []models.CourseParticipation
	err := r.db.Preload("Course").Where("user_id = ?", userID).Find(&participations).Error
	return participations, err
}

// ChannelRepository handles mandatory channel lookups.
type ChannelRepository struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// FindActive returns all active mandatory channels.
func (r *ChannelRepository) FindActive() ([]models.MandatoryChannel, error) {
	var channels []models.MandatoryChannel
	err := r.db.Where("is_active = ?", true).Order("name ASC").Find(&channels).Error
	return channels, err
}
