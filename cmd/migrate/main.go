package main

import (
	"fmt"
	"os"

	"github.com/campuslab/lostfound_backend/config"
	"github.com/campuslab/lostfound_backend/models"
)

// Standalone migration job. Run this instead of startup migrations when the
// server is deployed with SKIP_MIGRATIONS=true.
func main() {
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	if err := models.MigrateDatabase(); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("migrations applied")
}
