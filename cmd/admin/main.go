// Command admin is the operator CLI: inspect open dialogs, force-close a
// stuck one or reset a user's presence, straight against the database.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"anonchat/backend/internal/models"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file loaded")
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		log.Fatal("DATABASE_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <dialogs|close|reset> [args]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "dialogs":
		if err := listOpenDialogs(db); err != nil {
			log.Fatalf("Error listing dialogs: %v", err)
		}
	case "close":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin close <dialog_id>")
			os.Exit(1)
		}
		if err := closeDialog(db, os.Args[2]); err != nil {
			log.Fatalf("Error closing dialog: %v", err)
		}
		fmt.Printf("Dialog %s has been closed.\n", os.Args[2])
	case "reset":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin reset <user_id>")
			os.Exit(1)
		}
		if err := resetUser(db, os.Args[2]); err != nil {
			log.Fatalf("Error resetting user: %v", err)
		}
		fmt.Printf("User %s has been reset to Offline.\n", os.Args[2])
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func listOpenDialogs(db *gorm.DB) error {
	var dialogs []models.Dialog
	if err := db.Where("status = ?", models.DialogStatusOpen).
		Order("created_at asc").
		Find(&dialogs).Error; err != nil {
		return err
	}
	if len(dialogs) == 0 {
		fmt.Println("No open dialogs.")
		return nil
	}
	for _, d := range dialogs {
		fmt.Printf("%s\t%s <-> %s\topened %s\n",
			d.DialogID, d.Participant1, d.Participant2,
			d.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// closeDialog forcibly ends a dialog and releases both participants.
func closeDialog(db *gorm.DB, dialogID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var dialog models.Dialog
		if err := tx.First(&dialog, "dialog_id = ?", dialogID).Error; err != nil {
			return err
		}
		if err := tx.Model(&dialog).
			Update("status", models.DialogStatusClosed).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("id IN ?", []string{dialog.Participant1, dialog.Participant2}).
			Update("state", models.PresenceOffline).Error
	})
}

func resetUser(db *gorm.DB, userID string) error {
	return db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("state", models.PresenceOffline).Error
}
