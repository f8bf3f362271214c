package workflow

import (
	"context"
	"testing"

	"github.com/campuslab/lostfound_backend/models"
)

func TestParseTurn_ExtractsActionPrefix(t *testing.T) {
	cases := []struct {
		in         string
		wantAction models.AgentAction
		wantText   string
	}{
		{"[ASK] What color is the handle?", models.AgentActionAsk, "What color is the handle?"},
		{"[agree] Sounds right to me.", models.AgentActionAgree, "Sounds right to me."},
		{"[PROPOSE_MEET] Library entrance at 5pm?", models.AgentActionProposeMeet, "Library entrance at 5pm?"},
		// Replies without a recognizable action degrade to a plain answer.
		{"It has a sticker on the back.", models.AgentActionAnswer, "It has a sticker on the back."},
		{"[SHRUG] no idea", models.AgentActionAnswer, "[SHRUG] no idea"},
	}
	for _, tc := range cases {
		turn, err := parseTurn(tc.in)
		if err != nil {
			t.Fatalf("parseTurn(%q) returned error: %v", tc.in, err)
		}
		if turn.Action != tc.wantAction {
			t.Errorf("parseTurn(%q) action = %s, want %s", tc.in, turn.Action, tc.wantAction)
		}
		if turn.Content != tc.wantText {
			t.Errorf("parseTurn(%q) content = %q, want %q", tc.in, turn.Content, tc.wantText)
		}
	}
}

func TestLLMGenerator_DisabledFallsBackToRules(t *testing.T) {
	gen := &LLMGenerator{fallback: NewRuleGenerator()}
	if gen.Enabled() {
		t.Fatal("generator without an api key must report disabled")
	}

	lost, found := testItems()
	turn, err := gen.Generate(context.Background(), models.ChatSenderSeeker, lost, found, models.ChatLog{})
	if err != nil {
		t.Fatalf("fallback generation failed: %v", err)
	}
	if turn.Action != models.AgentActionAsk {
		t.Errorf("first seeker turn action = %s, want ASK", turn.Action)
	}
}
