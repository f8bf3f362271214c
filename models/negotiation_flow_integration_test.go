package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/campuslab/lostfound_backend/config"
	"github.com/campuslab/lostfound_backend/models"
	"github.com/campuslab/lostfound_backend/utils"
	"github.com/campuslab/lostfound_backend/workflow"
	"gorm.io/gorm"
)

// TestNegotiationLifecycle covers the whole happy path plus the schedule
// rejection detour: post items, auto-match, converge the dialogue, confirm,
// schedule, and confirm the return from both sides.
func TestNegotiationLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "lostfound_test")
	// The rule-based policy keeps the dialogue deterministic.
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
		Username: "alice", Password: "secret-pass", Name: "Alice", ContactInfo: "alice@campus.edu.cn",
	})
	if err != nil {
		t.Fatalf("RegisterUser(seeker): %v", err)
	}
	finder, err := models.RegisterUser(context.Background(), &models.NewUser{
		Username: "bob", Password: "secret-pass", Name: "Bob", ContactInfo: "bob@campus.edu.cn",
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

	matcher := workflow.NewMatcher(workflow.NewRuleGenerator())
	if err := matcher.Run(context.Background(), lost.ID); err != nil {
		t.Fatalf("Matcher.Run: %v", err)
	}

	var session models.NegotiationSession
	if err := db.Where("lost_item_id = ?", lost.ID).First(&session).Error; err != nil {
		t.Fatalf("expected a negotiation session for the pair: %v", err)
	}
	if session.FoundItemId != found.ID {
		t.Fatalf("session paired with item %d, want %d", session.FoundItemId, found.ID)
	}
	if session.Status != models.NegotiationStatusPendingConfirm {
		t.Fatalf("after dialogue: status = %s, want PENDING_CONFIRM", session.Status)
	}
	assertItemStatus(t, db, lost.ID, models.ItemStatusNegotiating)
	assertItemStatus(t, db, found.ID, models.ItemStatusNegotiating)

	// The finder has no say in the confirmation step.
	if _, err := models.ConfirmItem(finderCtx, session.ID, true); err == nil {
		t.Fatal("finder must not be able to confirm the match")
	}

	confirmed, err := models.ConfirmItem(seekerCtx, session.ID, true)
	if err != nil {
		t.Fatalf("ConfirmItem: %v", err)
	}
	if confirmed.Status != models.NegotiationStatusConfirmed {
		t.Fatalf("after confirm: status = %s, want CONFIRMED", confirmed.Status)
	}
	assertItemStatus(t, db, lost.ID, models.ItemStatusMatched)

	// Confirming twice must conflict.
	if _, err := models.ConfirmItem(seekerCtx, session.ID, true); err == nil {
		t.Fatal("double confirm must be rejected")
	}

	proposal := models.NewSchedule{
		ProposedTime: time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second),
		Location:     "library entrance",
	}
	if _, err := models.SubmitSchedule(seekerCtx, session.ID, &proposal); err == nil {
		t.Fatal("only the finder may propose a schedule")
	}
	if _, err := models.SubmitSchedule(finderCtx, session.ID, &proposal); err != nil {
		t.Fatalf("SubmitSchedule: %v", err)
	}

	rejected, err := models.RejectSchedule(seekerCtx, session.ID, &models.ScheduleRejection{Reason: "cannot make that time"})
	if err != nil {
		t.Fatalf("RejectSchedule: %v", err)
	}
	if rejected.Status != models.NegotiationStatusConfirmed {
		t.Fatalf("after schedule rejection: status = %s, want CONFIRMED", rejected.Status)
	}

	proposal.ProposedTime = proposal.ProposedTime.Add(48 * time.Hour)
	if _, err := models.SubmitSchedule(finderCtx, session.ID, &proposal); err != nil {
		t.Fatalf("SubmitSchedule(second): %v", err)
	}
	approved, err := models.ApproveSchedule(seekerCtx, session.ID)
	if err != nil {
		t.Fatalf("ApproveSchedule: %v", err)
	}
	if approved.Status != models.NegotiationStatusWaitingReturn {
		t.Fatalf("after approval: status = %s, want WAITING_RETURN", approved.Status)
	}

	oneSide, err := models.ConfirmReturn(seekerCtx, session.ID, true)
	if err != nil {
		t.Fatalf("ConfirmReturn(seeker): %v", err)
	}
	if oneSide.Status != models.NegotiationStatusWaitingReturn {
		t.Fatalf("one-sided return confirm must not finish the session, got %s", oneSide.Status)
	}

	done, err := models.ConfirmReturn(finderCtx, session.ID, true)
	if err != nil {
		t.Fatalf("ConfirmReturn(finder): %v", err)
	}
	if done.Status != models.NegotiationStatusReturned {
		t.Fatalf("after both confirm: status = %s, want RETURNED", done.Status)
	}
	assertItemStatus(t, db, lost.ID, models.ItemStatusClosed)
	assertItemStatus(t, db, found.ID, models.ItemStatusClosed)

	notifications, err := models.GetUserNotifications(seekerCtx, false)
	if err != nil {
		t.Fatalf("GetUserNotifications: %v", err)
	}
	if len(notifications) == 0 {
		t.Fatal("expected the seeker to have notifications from the flow")
	}

	// A closed item no longer blocks deletion.
	if err := models.DeleteItem(seekerCtx, lost.ID); err != nil {
		t.Fatalf("DeleteItem after RETURNED: %v", err)
	}

	// Session cache: login caches the token, logout-all sweeps the whole set.
	info, err := models.Login(context.Background(), &models.LoginInput{Username: "alice", Password: "secret-pass"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, cached, _ := config.GetRedisValue("Token:" + info.Token); !cached {
		t.Fatal("login should cache the session token")
	}
	revoked, err := models.LogoutAll(seekerCtx)
	if err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if revoked == 0 {
		t.Fatal("LogoutAll should revoke at least the fresh token")
	}
	if _, cached, _ := config.GetRedisValue("Token:" + info.Token); cached {
		t.Fatal("LogoutAll must drop every cached token")
	}
}

func userContext(u *models.User) context.Context {
	ctx := utils.SetUserIdInContext(context.Background(), u.ID)
	return utils.SetUsernameInContext(ctx, u.Username)
}

func assertItemStatus(t *testing.T, db *gorm.DB, itemId int, want models.ItemStatus) {
	t.Helper()
	var item models.Item
	if err := db.First(&item, itemId).Error; err != nil {
		t.Fatalf("fetch item %d: %v", itemId, err)
	}
	if item.Status != want {
		t.Fatalf("item %d status = %s, want %s", itemId, item.Status, want)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("lostfound-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("lostfound-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=lostfound_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
