package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/campuslab/lostfound_backend/config"
	"github.com/campuslab/lostfound_backend/models"
	"github.com/campuslab/lostfound_backend/utils"
	"gorm.io/gorm"
)

const DefaultMinScore = 0.3

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

func tokenize(text string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, t := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		tokens[t] = struct{}{}
	}
	return tokens
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// MatchScore rates how likely a lost/found pair describes the same item.
// Title, description and the analyzer's description weigh 0.3 each, location
// 0.1; a field both sides lack drops out and the remaining weights are
// renormalized.
func MatchScore(lost, found *models.Item) float64 {
	fields := []struct {
		a, b   string
		weight float64
	}{
		{lost.Title, found.Title, 0.3},
		{lost.Description, found.Description, 0.3},
		{lost.AiDescription, found.AiDescription, 0.3},
		{lost.Location, found.Location, 0.1},
	}

	var score, total float64
	for _, f := range fields {
		if strings.TrimSpace(f.a) == "" || strings.TrimSpace(f.b) == "" {
			continue
		}
		score += f.weight * jaccard(tokenize(f.a), tokenize(f.b))
		total += f.weight
	}
	if total == 0 {
		return 0
	}
	return score / total
}

func minScoreFromEnv() float64 {
	if v := os.Getenv("MATCH_MIN_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			return f
		}
	}
	return DefaultMinScore
}

type Candidate struct {
	Item  *models.Item
	Score float64
}

// FindMatches scores every open counterpart item against the given one,
// skipping the item's own owner and any pair a previous negotiation already
// wrote off. It returns at most config.SearchLimit candidates at or above the
// threshold, best first.
func FindMatches(ctx context.Context, item *models.Item) ([]Candidate, error) {
	db := config.GetDB()
	minScore := minScoreFromEnv()

	counterparts, err := utils.FetchModelsWhere[models.Item](ctx,
		"type = ? AND status IN ? AND owner_id <> ?", item.Type.Counterpart(),
		[]models.ItemStatus{models.ItemStatusOpen, models.ItemStatusMatching}, item.OwnerId)
	if err != nil {
		return nil, err
	}

	failed := map[[2]int]bool{}
	var records []models.FailedMatch
	if err := db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, err
	}
	for _, r := range records {
		failed[[2]int{r.LostItemId, r.FoundItemId}] = true
	}

	var candidates []Candidate
	for _, other := range counterparts {
		lost, found := pairOf(item, other)
		if failed[[2]int{lost.ID, found.ID}] {
			continue
		}
		if score := MatchScore(lost, found); score >= minScore {
			candidates = append(candidates, Candidate{Item: other, Score: score})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > config.SearchLimit {
		candidates = candidates[:config.SearchLimit]
	}
	return candidates, nil
}

func pairOf(a, b *models.Item) (lost, found *models.Item) {
	if a.Type == models.ItemTypeLost {
		return a, b
	}
	return b, a
}

// Matcher runs the automated pipeline for a newly posted or re-opened item:
// find the best candidate, lock the pair, open a session and hand it to the
// dialogue.
type Matcher struct {
	Dialogue *Dialogue
}

func NewMatcher(gen TurnGenerator) *Matcher {
	return &Matcher{Dialogue: NewDialogue(gen)}
}

// pairLockKey orders the pair as lost:found so both sides contend on the
// same lock regardless of which item triggered the run.
func pairLockKey(lostId, foundId int) string {
	return fmt.Sprintf("lock:pair:%d:%d", lostId, foundId)
}

// Run attempts to open a negotiation for the item. It walks candidates best
// first, claims the pair lock for each and opens a session for the first
// pair whose items are still free. When nothing qualifies, the owner gets a
// no-match notification.
func (m *Matcher) Run(ctx context.Context, itemId int) error {
	db := config.GetDB()
	logger := config.GetLogger()

	var item models.Item
	if err := db.WithContext(ctx).First(&item, itemId).Error; err != nil {
		return err
	}
	if item.Status == models.ItemStatusMatching {
		// Another run already owns this item.
		return nil
	}
	if item.Status != models.ItemStatusOpen {
		return utils.ConflictError("item %d is %s, only open items are matched", itemId, item.Status)
	}
	claim := db.WithContext(ctx).Model(&models.Item{}).
		Where("id = ? AND status = ?", item.ID, models.ItemStatusOpen).
		Update("status", models.ItemStatusMatching)
	if claim.Error != nil {
		return claim.Error
	}
	if claim.RowsAffected == 0 {
		// A concurrent run claimed the item between the read and the update.
		return nil
	}
	// The item reverts to OPEN unless a session claims it below.
	reopen := func() {
		if err := db.WithContext(ctx).Model(&models.Item{}).
			Where("id = ? AND status = ?", item.ID, models.ItemStatusMatching).
			Update("status", models.ItemStatusOpen).Error; err != nil {
			config.LogError(logger, "workflow", "Matcher.Run", "reopening item after matching", itemId, err)
		}
	}

	candidates, err := FindMatches(ctx, &item)
	if err != nil {
		reopen()
		return err
	}
	if len(candidates) == 0 {
		reopen()
		return m.notifyNoMatch(ctx, &item)
	}

	for _, c := range candidates {
		lost, found := pairOf(&item, c.Item)
		session, err := m.openSession(ctx, lost, found, c.Score)
		if err != nil {
			var appErr *utils.AppError
			if errors.Is(err, redislock.ErrNotObtained) ||
				(errors.As(err, &appErr) && appErr.Kind == utils.KindConflict) {
				logger.WithFields(map[string]interface{}{
					"lost_item_id":  lost.ID,
					"found_item_id": found.ID,
				}).Info("candidate pair already claimed, trying next")
				continue
			}
			reopen()
			return err
		}
		converged, err := RunNegotiationDialogue(ctx, m.Dialogue, session.ID)
		if err != nil {
			m.failSession(session)
			return err
		}
		if converged {
			return nil
		}
		// The failed dialogue reopened both items; the next candidate gets
		// its own session.
	}

	reopen()
	return m.notifyNoMatch(ctx, &item)
}

func (m *Matcher) openSession(ctx context.Context, lost, found *models.Item, score float64) (*models.NegotiationSession, error) {
	locker := config.GetRedisLock()
	if locker != nil {
		lock, err := locker.Obtain(ctx, pairLockKey(lost.ID, found.ID), 30*time.Second, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(200*time.Millisecond), 3),
		})
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				config.LogWarn(config.GetLogger(), "workflow", "Matcher.openSession", "releasing pair lock", pairLockKey(lost.ID, found.ID), err)
			}
		}()
	}

	db := config.GetDB()
	var session *models.NegotiationSession
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		session, err = models.CreateSession(tx, lost, found, score, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// failSession is the salvage path for a dialogue whose outcome could not be
// persisted. Without it the session would sit ACTIVE and both items
// NEGOTIATING with nobody left to move them.
func (m *Matcher) failSession(session *models.NegotiationSession) {
	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.NegotiationSession{}).
			Where("id = ? AND status = ?", session.ID, models.NegotiationStatusActive).
			Updates(map[string]interface{}{
				"status":       models.NegotiationStatusFailed,
				"completed_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&models.Item{}).
			Where("id IN ?", []int{session.LostItemId, session.FoundItemId}).
			Update("status", models.ItemStatusOpen).Error
	})
	if err != nil {
		config.LogError(config.GetLogger(), "workflow", "Matcher.failSession", "failing stranded session", session.ID, err)
	}
}

func (m *Matcher) notifyNoMatch(ctx context.Context, item *models.Item) error {
	db := config.GetDB()
	content := fmt.Sprintf("No candidate matched %q yet. We will keep looking as new items come in.", item.Title)
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return models.SendNotification(tx, item.OwnerId, models.NotificationTypeNoMatch, content, &item.ID, nil)
	})
}
