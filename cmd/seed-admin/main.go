package main

import (
	"context"
	"log"
	"os"

	"bitbucket.org/mmdatafocus/contacts_backend/config"
	"bitbucket.org/mmdatafocus/contacts_backend/models"
)

// Seeds the first user from env so a fresh deployment can log in.
// Idempotent: exits cleanly if the username already exists.
func main() {
	username := os.Getenv("SEED_ADMIN_USERNAME")
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if username == "" || password == "" {
		log.Fatal("SEED_ADMIN_USERNAME and SEED_ADMIN_PASSWORD are required")
	}

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	db := config.GetDB()

	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).Count(&count).Error; err != nil {
		log.Fatal(err)
	}
	if count > 0 {
		log.Printf("user %q already exists, nothing to do", username)
		return
	}

	user, err := models.CreateUser(ctx, &models.NewUser{
		Username: username,
		Name:     os.Getenv("SEED_ADMIN_NAME"),
		Email:    os.Getenv("SEED_ADMIN_EMAIL"),
		Password: password,
	})
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("created user %q (id=%d)", user.Username, user.ID)
}
