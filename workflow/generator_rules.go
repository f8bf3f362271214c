package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/campuslab/lostfound_backend/models"
)

// RuleGenerator is the deterministic fallback conversation policy. It scripts
// a short exchange: the seeker asks for distinguishing details, the finder
// answers from the found item's description, then the seeker checks how well
// the two descriptions overlap and either confirms or rejects.
type RuleGenerator struct {
	// AgreeThreshold is the token overlap below which the seeker rejects.
	AgreeThreshold float64
}

func NewRuleGenerator() *RuleGenerator {
	return &RuleGenerator{AgreeThreshold: 0.2}
}

func (g *RuleGenerator) Generate(_ context.Context, role models.ChatSender, own, other *models.Item, transcript models.ChatLog) (AgentTurn, error) {
	agentTurns := 0
	var lastAction models.AgentAction
	for _, entry := range transcript {
		if entry.Sender == models.ChatSenderSystem {
			continue
		}
		agentTurns++
		lastAction = entry.Action
	}

	if role == models.ChatSenderSeeker {
		return g.seekerTurn(own, other, agentTurns, lastAction), nil
	}
	return g.finderTurn(own, agentTurns, lastAction), nil
}

func (g *RuleGenerator) seekerTurn(own, other *models.Item, agentTurns int, lastAction models.AgentAction) AgentTurn {
	if agentTurns == 0 {
		return AgentTurn{
			Action:  models.AgentActionAsk,
			Content: fmt.Sprintf("I lost %q near %s. Can you describe what you found in more detail?", own.Title, locationOr(own.Location, "campus")),
		}
	}
	if lastAction == models.AgentActionAnswer {
		if descriptionOverlap(own, other) >= g.AgreeThreshold {
			return AgentTurn{
				Action:  models.AgentActionConfirm,
				Content: "That matches what I remember about my item.",
			}
		}
		return AgentTurn{
			Action:  models.AgentActionReject,
			Content: "That does not sound like my item at all.",
		}
	}
	return AgentTurn{
		Action:  models.AgentActionAsk,
		Content: "Could you tell me anything else about it, like markings or contents?",
	}
}

func (g *RuleGenerator) finderTurn(own *models.Item, agentTurns int, lastAction models.AgentAction) AgentTurn {
	if lastAction == models.AgentActionConfirm {
		return AgentTurn{
			Action:  models.AgentActionAgree,
			Content: "Great, that lines up with what I picked up. Let's arrange the return.",
		}
	}
	detail := own.Description
	if own.AiDescription != "" {
		detail = detail + " " + own.AiDescription
	}
	return AgentTurn{
		Action:  models.AgentActionAnswer,
		Content: fmt.Sprintf("I found it at %s. %s", locationOr(own.Location, "an unspecified spot"), strings.TrimSpace(detail)),
	}
}

// descriptionOverlap measures how much the two items' text fields share,
// using the same token overlap the matcher scores with.
func descriptionOverlap(a, b *models.Item) float64 {
	textA := strings.Join([]string{a.Title, a.Description, a.AiDescription}, " ")
	textB := strings.Join([]string{b.Title, b.Description, b.AiDescription}, " ")
	return jaccard(tokenize(textA), tokenize(textB))
}

func locationOr(loc, fallback string) string {
	if strings.TrimSpace(loc) == "" {
		return fallback
	}
	return loc
}
