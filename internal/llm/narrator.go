// Package llm turns mechanical combat results into dungeon master prose
// using the Anthropic Messages API.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/dmforge/dungeonmaster/internal/config"
	"github.com/dmforge/dungeonmaster/internal/game/session"
)

// systemPrompt frames every narration request. Mechanical outcomes are
// authoritative: the model describes them, it never re-rolls them.
const systemPrompt = `You are the dungeon master for a fantasy text adventure.
Narrate the scene in second person, two to four sentences, vivid but concise.
The mechanical results you are given (rolls, hits, damage, defeats) already
happened; describe them faithfully and never change or contradict them.
Do not mention dice, numbers, or game mechanics unless the player asks.`

// Narrator generates DM responses from player input, recent session history,
// and the engine's combat log.
type Narrator struct {
	client       anthropic.Client
	model        anthropic.Model
	maxTokens    int64
	historyLimit int
	logger       *zap.Logger
}

// NewNarrator creates a Narrator from the given configuration. An empty
// cfg.APIKey defers to the ANTHROPIC_API_KEY environment variable.
//
// Precondition: cfg must have passed config validation (Model non-empty,
// MaxTokens >= 1).
func NewNarrator(cfg config.LLMConfig, logger *zap.Logger) *Narrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	return &Narrator{
		client:       anthropic.NewClient(opts...),
		model:        anthropic.Model(cfg.Model),
		maxTokens:    int64(cfg.MaxTokens),
		historyLimit: cfg.HistoryLimit,
		logger:       logger,
	}
}

// HistoryLimit returns how many recent exchanges accompany each request.
func (n *Narrator) HistoryLimit() int {
	return n.historyLimit
}

// Narrate produces the DM response for one player input. history is the
// session's recent exchanges, oldest first; combatLog is the engine log for
// the action just resolved and may be empty for pure roleplay input.
//
// Precondition: playerInput must be non-empty.
// Postcondition: Returns the narrated text or a non-nil error; the response
// text is never empty on success.
func (n *Narrator) Narrate(ctx context.Context, history []session.Exchange, playerInput string, combatLog []string) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(history)*2+1)
	for _, ex := range history {
		messages = append(messages,
			anthropic.NewUserMessage(anthropic.NewTextBlock(ex.PlayerInput)),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock(ex.DMResponse)),
		)
	}
	messages = append(messages,
		anthropic.NewUserMessage(anthropic.NewTextBlock(buildUserPrompt(playerInput, combatLog))))

	msg, err := n.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     n.model,
		MaxTokens: n.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("requesting narration: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("empty narration response for model %s", n.model)
	}

	n.logger.Debug("narration generated",
		zap.Int("history_len", len(history)),
		zap.Int("combat_log_len", len(combatLog)),
		zap.Int("response_len", len(text)),
	)
	return text, nil
}

// buildUserPrompt merges the player's raw input with the mechanical results
// the narration must honor.
func buildUserPrompt(playerInput string, combatLog []string) string {
	if len(combatLog) == 0 {
		return playerInput
	}
	return fmt.Sprintf("%s\n\nMechanical results:\n%s",
		playerInput, strings.Join(combatLog, "\n"))
}
