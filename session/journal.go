package session

import (
	"log"

	"studio/models"

	"gorm.io/gorm"
)

// recordOrphans writes pending-deletion ids to the journal. Journal problems
// are logged, never surfaced; the in-memory set remains authoritative.
func recordOrphans(db *gorm.DB, courseID uint, uids []string) {
	if db == nil || len(uids) == 0 {
		return
	}
	for _, uid := range uids {
		var row models.OrphanMedia
		err := db.Where("course_id = ? AND media_uid = ? AND reclaimed = ?", courseID, uid, false).
			FirstOrCreate(&row, models.OrphanMedia{CourseID: courseID, MediaUID: uid}).Error
		if err != nil {
			log.Printf("Failed to journal orphan media %s: %v", uid, err)
		}
	}
}

// reclaimOrphans marks journaled ids as processed after a successful save
func reclaimOrphans(db *gorm.DB, courseID uint, uids []string) {
	if db == nil || len(uids) == 0 {
		return
	}
	err := db.Model(&models.OrphanMedia{}).
		Where("course_id = ? AND media_uid IN ? AND reclaimed = ?", courseID, uids, false).
		Update("reclaimed", true).Error
	if err != nil {
		log.Printf("Failed to reclaim journaled media: %v", err)
	}
}

// unreclaimedOrphans loads cleanup obligations left over from earlier runs
func unreclaimedOrphans(db *gorm.DB, courseID uint) []string {
	if db == nil {
		return nil
	}
	var rows []models.OrphanMedia
	if err := db.Where("course_id = ? AND reclaimed = ?", courseID, false).Find(&rows).Error; err != nil {
		log.Printf("Failed to load orphan journal: %v", err)
		return nil
	}
	uids := make([]string, 0, len(rows))
	for _, row := range rows {
		uids = append(uids, row.MediaUID)
	}
	return uids
}
