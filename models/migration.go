package models

import (
	"log"

	"bitbucket.org/mmdatafocus/contacts_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Job{}, &ContactRow{},
		&Issue{}, &Resolution{},
		&FinalContact{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
