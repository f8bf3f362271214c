package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/campuslab/lostfound_backend/config"
	"github.com/campuslab/lostfound_backend/models"
	"github.com/campuslab/lostfound_backend/utils"
	"github.com/campuslab/lostfound_backend/workflow"
)

// TestNegotiationConcurrency exercises the two race-sensitive paths: session
// creation when both owners trigger matching at once, and return
// confirmation when both parties answer at once.
func TestNegotiationConcurrency(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "lostfound_test")
	t.Setenv("LLM_API_KEY", "")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if err := models.MigrateDatabase(); err != nil {
		t.Fatalf("MigrateDatabase: %v", err)
	}
	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	seeker, err := models.RegisterUser(context.Background(), &models.NewUser{
		Username: "carol", Password: "secret-pass", Name: "Carol", ContactInfo: "carol@campus.edu.cn",
	})
	if err != nil {
		t.Fatalf("RegisterUser(seeker): %v", err)
	}
	finder, err := models.RegisterUser(context.Background(), &models.NewUser{
		Username: "dave", Password: "secret-pass", Name: "Dave", ContactInfo: "dave@campus.edu.cn",
	})
	if err != nil {
		t.Fatalf("RegisterUser(finder): %v", err)
	}
	seekerCtx := userContext(seeker)
	finderCtx := userContext(finder)

	lost, err := models.CreateItem(seekerCtx, &models.NewItem{
		Title:       "black leather wallet",
		Description: "black wallet with a student card and a bus pass inside",
		Type:        "LOST",
		Location:    "library second floor",
	})
	if err != nil {
		t.Fatalf("CreateItem(lost): %v", err)
	}
	found, err := models.CreateItem(finderCtx, &models.NewItem{
		Title:       "leather wallet",
		Description: "found a black wallet with a student card inside",
		Type:        "FOUND",
		Location:    "library",
	})
	if err != nil {
		t.Fatalf("CreateItem(found): %v", err)
	}

	// Both owners trigger matching at the same time. The pair lock plus the
	// in-transaction recheck must leave exactly one session behind; the
	// losing run may see the pair mid-claim and report a conflict, which is
	// as good as a no-op here.
	matcher := workflow.NewMatcher(workflow.NewRuleGenerator())
	var wg sync.WaitGroup
	runErrs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); runErrs[0] = matcher.Run(context.Background(), lost.ID) }()
	go func() { defer wg.Done(); runErrs[1] = matcher.Run(context.Background(), found.ID) }()
	wg.Wait()
	for i, err := range runErrs {
		if err == nil {
			continue
		}
		var appErr *utils.AppError
		if errors.As(err, &appErr) && appErr.Kind == utils.KindConflict {
			continue
		}
		t.Fatalf("Matcher.Run #%d: %v", i, err)
	}

	var count int64
	if err := db.Model(&models.NegotiationSession{}).
		Where("lost_item_id = ? AND found_item_id = ?", lost.ID, found.ID).
		Count(&count).Error; err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if count != 1 {
		t.Fatalf("concurrent triggers created %d sessions, want exactly 1", count)
	}

	var session models.NegotiationSession
	if err := db.Where("lost_item_id = ?", lost.ID).First(&session).Error; err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.Status != models.NegotiationStatusPendingConfirm {
		t.Fatalf("after dialogue: status = %s, want PENDING_CONFIRM", session.Status)
	}

	if _, err := models.ConfirmItem(seekerCtx, session.ID, true); err != nil {
		t.Fatalf("ConfirmItem: %v", err)
	}
	proposal := models.NewSchedule{
		ProposedTime: time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second),
		Location:     "student center",
	}
	if _, err := models.SubmitSchedule(finderCtx, session.ID, &proposal); err != nil {
		t.Fatalf("SubmitSchedule: %v", err)
	}
	if _, err := models.ApproveSchedule(seekerCtx, session.ID); err != nil {
		t.Fatalf("ApproveSchedule: %v", err)
	}

	// Both parties report a successful handover at the same time. Each
	// verdict must land, and the session must resolve to RETURNED exactly
	// once instead of both calls seeing the other side as unanswered.
	retErrs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); _, retErrs[0] = models.ConfirmReturn(seekerCtx, session.ID, true) }()
	go func() { defer wg.Done(); _, retErrs[1] = models.ConfirmReturn(finderCtx, session.ID, true) }()
	wg.Wait()
	for i, err := range retErrs {
		if err != nil {
			t.Fatalf("ConfirmReturn #%d: %v", i, err)
		}
	}

	var final models.NegotiationSession
	if err := db.First(&final, session.ID).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if final.Status != models.NegotiationStatusReturned {
		t.Fatalf("after both confirm concurrently: status = %s, want RETURNED", final.Status)
	}
	if final.SeekerReturnConfirm != models.ConfirmationYes || final.FinderReturnConfirm != models.ConfirmationYes {
		t.Fatalf("return confirms = %s/%s, want YES/YES",
			final.SeekerReturnConfirm, final.FinderReturnConfirm)
	}
	if final.CompletedAt == nil {
		t.Fatal("a returned session must carry a completion time")
	}
	assertItemStatus(t, db, lost.ID, models.ItemStatusClosed)
	assertItemStatus(t, db, found.ID, models.ItemStatusClosed)
}
