package models

import "gorm.io/gorm"

// OrphanMedia records a remote media id whose backing binary still needs a
// server-side delete (its video was removed, or its upload was aborted/failed).
// Rows are written the moment the id enters the pending-deletion set and marked
// reclaimed only after a save round-trip confirms the backend processed it, so
// cleanup obligations survive a studio restart.
type OrphanMedia struct {
	gorm.Model
	CourseID  uint   `json:"course_id" gorm:"index;not null"`
	MediaUID  string `json:"media_uid" gorm:"index;not null"`
	Reclaimed bool   `json:"reclaimed" gorm:"default:false"`
}
