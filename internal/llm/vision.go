package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/pipwine/pip/pkg/jsonx"
)

// LabelAnalysis is what the vision model read off a wine label.
// AdditionalInfo carries free-text failure hints ("image is blurry",
// "this is the back label") used to triage bad photos.
type LabelAnalysis struct {
	Name           string  `json:"name"`
	Producer       string  `json:"producer"`
	Vintage        int     `json:"vintage"`
	WineType       string  `json:"wine_type"`
	Varietal       string  `json:"varietal"`
	Region         string  `json:"region"`
	Country        string  `json:"country"`
	Confidence     float64 `json:"confidence"`
	AdditionalInfo string  `json:"additional_info"`
}

// Vision analyzes wine label photos.
type Vision interface {
	AnalyzeLabel(ctx context.Context, imageURL string) (*LabelAnalysis, error)
}

const labelPrompt = `Analyze this wine bottle label image and extract the wine's details.

Respond with ONLY a JSON object:
{
    "name": "<wine name, empty string if unreadable>",
    "producer": "<producer/winery>",
    "vintage": <year as number, 0 if not visible>,
    "wine_type": "<red, white, rosé, or sparkling>",
    "varietal": "<grape variety if shown>",
    "region": "<region if shown>",
    "country": "<country if shown>",
    "confidence": <0.0-1.0 how sure you are of the identification>,
    "additional_info": "<note problems here: not a wine label, blurry, dark lighting, glare, partial/cropped label, back label>"
}`

// AnalyzeLabel sends the image through the vision-capable chat API and
// parses the structured result.
func (c *OpenAIClient) AnalyzeLabel(ctx context.Context, imageURL string) (*LabelAnalysis, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{
							Type: openai.ChatMessagePartTypeText,
							Text: labelPrompt,
						},
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL:    imageURL,
								Detail: openai.ImageURLDetailAuto,
							},
						},
					},
				},
			},
			MaxTokens: 400,
		},
	)
	if err != nil {
		c.logger.Error("Failed to analyze label image", zap.Error(err))
		return nil, fmt.Errorf("error analyzing label: %v", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("error analyzing label: empty response")
	}

	var analysis LabelAnalysis
	if err := jsonx.Unmarshal(resp.Choices[0].Message.Content, &analysis); err != nil {
		return nil, fmt.Errorf("error parsing label analysis: %v", err)
	}
	return &analysis, nil
}
