package db

import (
	"time"
)

// DeliverySchema records one attempt at posting a receipt to the
// evaluation server, successful or not.
type DeliverySchema struct {
	ID         uint `gorm:"primarykey"`
	JobID      uint
	TargetURL  string
	Attempt    int
	StatusCode int
	Error      string
	CreatedAt  time.Time
}

func CreateDelivery(delivery DeliverySchema) (DeliverySchema, error) {
	result := db.Create(&delivery)
	if result.Error != nil {
		return DeliverySchema{}, result.Error
	}
	return delivery, nil
}

func GetDeliveriesForJob(jobID uint) ([]DeliverySchema, error) {
	var deliveries []DeliverySchema
	result := db.Where("job_id = ?", jobID).Order("id asc").Find(&deliveries)
	if result.Error != nil {
		return nil, result.Error
	}
	return deliveries, nil
}
