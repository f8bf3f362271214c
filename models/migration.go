package models

import "github.com/campuslab/lostfound_backend/config"

func MigrateDatabase() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&User{},
		&Item{},
		&ItemImage{},
		&NegotiationSession{},
		&ReturnSchedule{},
		&Notification{},
		&FailedMatch{},
	)
}
