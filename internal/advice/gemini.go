package advice

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient answers advice queries directly with Gemini instead of the
// local analyze endpoint. Selected with ADVICE_BACKEND=gemini; credentials
// come from the GenAI SDK's usual environment variables.
type GeminiClient struct {
	model string
}

// NewGeminiClient creates a Gemini-backed advice client.
func NewGeminiClient(model string) *GeminiClient {
	return &GeminiClient{model: model}
}

// Advise implements Client.
func (c *GeminiClient) Advise(ctx context.Context, query, dataContext string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("Advise: create genai client: %w", err)
	}

	prompt := "You are a personal-finance assistant.\n\n" +
		"The user's aggregated monthly spending is provided as JSON below.\n" +
		"Answer the user's question using only this data. Be concise and " +
		"practical, and reference concrete categories and amounts.\n\n" +
		"Spending data:\n" + dataContext + "\n\n" +
		"Question: " + query + "\n"

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Advise: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("Advise: empty response from model")
	}
	return text, nil
}
