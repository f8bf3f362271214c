package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/campuslab/lostfound_backend/config"
	"github.com/campuslab/lostfound_backend/models"
	"github.com/campuslab/lostfound_backend/workflow"
)

// Batch sweep over open items: re-runs matching for items that have been
// sitting without a match, e.g. after a bulk import or a matcher bugfix.
func main() {
	itemType := flag.String("type", "", "Limit to LOST or FOUND items (default: both)")
	olderThan := flag.Duration("older-than", 0, "Only items created at least this long ago (e.g. 24h)")
	limit := flag.Int("limit", 100, "Maximum number of items to sweep")
	dryRun := flag.Bool("dry-run", true, "List candidates only (no matching)")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	query := db.Where("status = ?", models.ItemStatusOpen)
	if *itemType != "" {
		t, err := models.ParseItemType(*itemType)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		query = query.Where("type = ?", t)
	}
	if *olderThan > 0 {
		query = query.Where("created_at <= ?", time.Now().Add(-*olderThan))
	}

	var items []*models.Item
	if err := query.Order("created_at ASC").Limit(*limit).Find(&items).Error; err != nil {
		fmt.Fprintf(os.Stderr, "fetch open items: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%d open items selected\n", len(items))

	if *dryRun {
		for _, item := range items {
			fmt.Printf("would rematch item %d (%s %q)\n", item.ID, item.Type, item.Title)
		}
		return
	}

	matcher := workflow.NewMatcher(workflow.NewLLMGenerator())
	for _, item := range items {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		err := matcher.Run(ctx, item.ID)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "item %d: %v\n", item.ID, err)
			continue
		}
		fmt.Printf("item %d swept\n", item.ID)
	}
}
