package db

import (
	"time"
)

type AttachmentSchema struct {
	ID        uint `gorm:"primarykey"`
	JobID     uint
	Name      string
	Mime      string
	Size      int
	Path      string
	CreatedAt time.Time
}

func CreateAttachment(attachment AttachmentSchema) (AttachmentSchema, error) {
	result := db.Create(&attachment)
	if result.Error != nil {
		return AttachmentSchema{}, result.Error
	}
	return attachment, nil
}

func GetAttachmentsForJob(jobID uint) ([]AttachmentSchema, error) {
	var attachments []AttachmentSchema
	result := db.Where("job_id = ?", jobID).Find(&attachments)
	if result.Error != nil {
		return nil, result.Error
	}
	return attachments, nil
}
