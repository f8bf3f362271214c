package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/campuslab/lostfound_backend/config"
	"github.com/campuslab/lostfound_backend/models"
)

// LLMGenerator drives the agent conversation through an OpenAI-compatible
// chat completions endpoint. When the endpoint is not configured or a call
// fails, it falls back to the rule-based policy for that turn so a flaky
// provider cannot stall a negotiation.
type LLMGenerator struct {
	apiKey   string
	baseURL  string
	model    string
	http     *http.Client
	fallback *RuleGenerator
}

func NewLLMGenerator() *LLMGenerator {
	baseURL := os.Getenv("LLM_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.deepseek.com/v1"
	}
	model := os.Getenv("LLM_MODEL")
	if model == "" {
		model = "deepseek-chat"
	}
	return &LLMGenerator{
		apiKey:   os.Getenv("LLM_API_KEY"),
		baseURL:  strings.TrimRight(baseURL, "/"),
		model:    model,
		http:     &http.Client{Timeout: 30 * time.Second},
		fallback: NewRuleGenerator(),
	}
}

func (g *LLMGenerator) Enabled() bool {
	return g.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (g *LLMGenerator) Generate(ctx context.Context, role models.ChatSender, own, other *models.Item, transcript models.ChatLog) (AgentTurn, error) {
	if !g.Enabled() {
		return g.fallback.Generate(ctx, role, own, other, transcript)
	}
	turn, err := g.complete(ctx, role, own, other, transcript)
	if err != nil {
		config.LogWarn(config.GetLogger(), "workflow", "LLMGenerator.Generate", "falling back to rule policy", map[string]interface{}{
			"role": string(role),
		}, err)
		return g.fallback.Generate(ctx, role, own, other, transcript)
	}
	return turn, nil
}

func (g *LLMGenerator) complete(ctx context.Context, role models.ChatSender, own, other *models.Item, transcript models.ChatLog) (AgentTurn, error) {
	messages := []chatMessage{
		{Role: "system", Content: personaPrompt(role, own, other)},
	}
	for _, entry := range transcript {
		if entry.Sender == models.ChatSenderSystem {
			continue
		}
		msgRole := "user"
		if entry.Sender == role {
			msgRole = "assistant"
		}
		messages = append(messages, chatMessage{
			Role:    msgRole,
			Content: fmt.Sprintf("[%s] %s", entry.Action, entry.Content),
		})
	}

	payload, err := json.Marshal(chatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: 0.4,
		MaxTokens:   200,
	})
	if err != nil {
		return AgentTurn{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return AgentTurn{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return AgentTurn{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return AgentTurn{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return AgentTurn{}, fmt.Errorf("llm endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return AgentTurn{}, err
	}
	if len(completion.Choices) == 0 {
		return AgentTurn{}, fmt.Errorf("llm endpoint returned no choices")
	}
	return parseTurn(completion.Choices[0].Message.Content)
}

func personaPrompt(role models.ChatSender, own, other *models.Item) string {
	var b strings.Builder
	if role == models.ChatSenderSeeker {
		b.WriteString("You represent someone who lost an item and are checking whether a found item is theirs. ")
		b.WriteString("Ask about details only the real owner would know, then CONFIRM or REJECT. ")
	} else {
		b.WriteString("You represent someone who found an item and are checking whether the claimant really owns it. ")
		b.WriteString("Answer questions from the found item's description only; AGREE once the claimant's account matches. ")
	}
	fmt.Fprintf(&b, "Your item: title %q, description %q, location %q. ", own.Title, own.Description, own.Location)
	fmt.Fprintf(&b, "The other party's public listing: title %q, location %q. ", other.Title, other.Location)
	b.WriteString("Reply with exactly one line of the form [ACTION] message, where ACTION is one of ASK, ANSWER, CONFIRM, REJECT, PROPOSE_MEET, AGREE.")
	return b.String()
}

// parseTurn extracts the [ACTION] prefix the persona prompt demands. An
// unparseable reply is treated as a plain answer rather than an error.
func parseTurn(content string) (AgentTurn, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "[") {
		if end := strings.Index(content, "]"); end > 1 {
			action := models.AgentAction(strings.ToUpper(strings.TrimSpace(content[1:end])))
			switch action {
			case models.AgentActionAsk, models.AgentActionAnswer, models.AgentActionConfirm,
				models.AgentActionReject, models.AgentActionProposeMeet, models.AgentActionAgree:
				return AgentTurn{Action: action, Content: strings.TrimSpace(content[end+1:])}, nil
			}
		}
	}
	return AgentTurn{Action: models.AgentActionAnswer, Content: content}, nil
}
