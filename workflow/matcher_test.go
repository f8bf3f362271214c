package workflow

import (
	"math"
	"testing"

	"github.com/campuslab/lostfound_backend/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMatchScore_IdenticalItemsScoreOne(t *testing.T) {
	lost := &models.Item{
		Title:       "red bicycle",
		Description: "red mountain bicycle with a broken bell",
		Location:    "north gate",
		Type:        models.ItemTypeLost,
	}
	found := &models.Item{
		Title:       "red bicycle",
		Description: "red mountain bicycle with a broken bell",
		Location:    "north gate",
		Type:        models.ItemTypeFound,
	}
	if got := MatchScore(lost, found); !almostEqual(got, 1.0) {
		t.Errorf("MatchScore = %v, want 1.0", got)
	}
}

func TestMatchScore_NoOverlapScoresZero(t *testing.T) {
	lost := &models.Item{Title: "umbrella", Description: "silver umbrella", Location: "gym"}
	found := &models.Item{Title: "backpack", Description: "blue backpack", Location: "cafeteria"}
	if got := MatchScore(lost, found); got != 0 {
		t.Errorf("MatchScore = %v, want 0", got)
	}
}

// Missing fields drop out of the weighting instead of dragging the score
// down: a pair without analyzer descriptions is scored on what both sides do
// have.
func TestMatchScore_RenormalizesMissingFields(t *testing.T) {
	lost := &models.Item{Title: "red bicycle", Description: "different words entirely", Location: "east dorm"}
	found := &models.Item{Title: "red bicycle", Description: "nothing shared here", Location: "west lab"}

	// Only the title matches; weights in play are title 0.3, description 0.3,
	// location 0.1.
	want := 0.3 / 0.7
	if got := MatchScore(lost, found); !almostEqual(got, want) {
		t.Errorf("MatchScore = %v, want %v", got, want)
	}
}

func TestMatchScore_AiDescriptionCountsWhenBothPresent(t *testing.T) {
	lost := &models.Item{Title: "phone", Description: "phone", AiDescription: "black smartphone cracked screen"}
	found := &models.Item{Title: "phone", Description: "phone", AiDescription: "black smartphone cracked screen"}
	if got := MatchScore(lost, found); !almostEqual(got, 1.0) {
		t.Errorf("MatchScore = %v, want 1.0", got)
	}

	// One-sided analyzer output is ignored rather than scored as zero.
	found.AiDescription = ""
	if got := MatchScore(lost, found); !almostEqual(got, 1.0) {
		t.Errorf("MatchScore with one-sided ai description = %v, want 1.0", got)
	}
}

func TestJaccard_CaseAndPunctuationInsensitive(t *testing.T) {
	a := tokenize("Black Wallet, leather!")
	b := tokenize("black wallet leather")
	if got := jaccard(a, b); !almostEqual(got, 1.0) {
		t.Errorf("jaccard = %v, want 1.0", got)
	}
}

func TestPairOf_OrdersLostFirst(t *testing.T) {
	lost := &models.Item{ID: 1, Type: models.ItemTypeLost}
	found := &models.Item{ID: 2, Type: models.ItemTypeFound}

	l, f := pairOf(lost, found)
	if l.ID != 1 || f.ID != 2 {
		t.Errorf("pairOf(lost, found) = (%d, %d), want (1, 2)", l.ID, f.ID)
	}
	l, f = pairOf(found, lost)
	if l.ID != 1 || f.ID != 2 {
		t.Errorf("pairOf(found, lost) = (%d, %d), want (1, 2)", l.ID, f.ID)
	}
}

func TestPairLockKey_IsPairStable(t *testing.T) {
	if got, want := pairLockKey(3, 9), "lock:pair:3:9"; got != want {
		t.Errorf("pairLockKey = %q, want %q", got, want)
	}
}
