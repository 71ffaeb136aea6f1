// Package ai generates review questions, test cases, and risk notes for
// a ticket using a chat-completion model. The prompt is intentionally
// small; the store does not care how the analysis was produced.
package ai

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"tickettriage/internal/errors"
	"tickettriage/internal/models"

	"github.com/sashabaranov/go-openai"
)

type Client struct {
	client *openai.Client
	model  string
}

func NewClient() Client {
	return Client{
		client: openai.NewClient(os.Getenv("OPENAI_API_KEY")),
		model:  openai.GPT4TurboPreview,
	}
}

const MaxTokens = 4096

// analysisPayload is the JSON shape the model is asked to produce.
type analysisPayload struct {
	SuggestedQuestions []string `json:"suggested_questions"`
	DesignQuestions    []string `json:"design_questions"`
	BusinessQuestions  []string `json:"business_questions"`
	Risks              []string `json:"risks"`
	TestCases          []string `json:"test_cases"`
}

const systemPrompt = `You review Jira tickets before development starts. ` +
	`Respond with a single JSON object with string-array fields ` +
	`"suggested_questions", "design_questions", "business_questions", "risks", and "test_cases".`

// Analyze asks the model for review questions, risks, and test cases for
// the given ticket and returns them as a typed analysis plus the flat
// test-case list.
func (c *Client) Analyze(ctx context.Context, title, description string) (models.Analysis, []string, error) {
	completion, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     c.model,
			MaxTokens: MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: "Title: " + title + "\n\nDescription:\n" + description},
			},
		},
	)
	if err != nil {
		return models.Analysis{}, nil, errors.Wrap(err, "create chat completion")
	}
	if len(completion.Choices) == 0 {
		return models.Analysis{}, nil, errors.New("empty completion")
	}

	var payload analysisPayload
	content := stripCodeFence(completion.Choices[0].Message.Content)
	if err = json.Unmarshal([]byte(content), &payload); err != nil {
		return models.Analysis{}, nil, errors.Wrap(err, "decode analysis payload")
	}

	analysis := models.Analysis{
		SuggestedQuestions: payload.SuggestedQuestions,
		DesignQuestions:    payload.DesignQuestions,
		BusinessQuestions:  payload.BusinessQuestions,
		Risks:              payload.Risks,
		Extra:              nil,
	}
	return analysis, payload.TestCases, nil
}

// stripCodeFence removes a surrounding markdown code fence, which models
// sometimes wrap JSON responses in despite instructions.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimSuffix(content, "```")
	if _, rest, ok := strings.Cut(content, "\n"); ok {
		content = rest
	}
	return strings.TrimSpace(content)
}
