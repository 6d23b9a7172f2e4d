package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pipwine/pip/internal/llm"
)

func TestClassifyFailureHintsWin(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		info       string
		want       FailureType
	}{
		{"not a wine", 0.8, "This is not a wine bottle, it looks like a soda can", FailureNotWine},
		{"blurry", 0.4, "The image is too blurry to read", FailureBlurry},
		{"dark", 0.1, "The photo is very dark", FailureLighting},
		{"glare", 0.4, "Strong reflection obscures the text", FailureGlare},
		{"partial", 0.4, "The label appears cropped", FailurePartial},
		{"back label", 0.4, "This appears to be the back of the bottle", FailureWrongSide},
		{"very low confidence", 0.1, "", FailureUnreadable},
		{"low confidence", 0.4, "", FailureLowConfidence},
		{"no signal", 0.6, "", FailureUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFailure(tt.confidence, tt.info))
		})
	}
}

func TestGuidanceForRetry(t *testing.T) {
	// A non-wine photo is the one case where retrying won't help.
	assert.False(t, GuidanceFor(FailureNotWine).CanRetry)

	for _, failure := range []FailureType{
		FailureBlurry, FailureLighting, FailureGlare,
		FailurePartial, FailureWrongSide, FailureUnreadable,
		FailureLowConfidence, FailureUnknown,
	} {
		g := GuidanceFor(failure)
		assert.True(t, g.CanRetry, string(failure))
		assert.NotEmpty(t, g.Message, string(failure))
		assert.NotEmpty(t, g.Suggestions, string(failure))
	}
}

func TestFormatSuccessHighConfidence(t *testing.T) {
	msg := FormatSuccess(&llm.LabelAnalysis{
		Name: "Opus One", Producer: "Opus One Winery", Vintage: 2019,
		Region: "Napa Valley", Country: "USA", Confidence: 0.95,
	})
	assert.Contains(t, msg, "**Opus One** by Opus One Winery")
	assert.Contains(t, msg, "(2019)")
	assert.Contains(t, msg, "from Napa Valley, USA")
	assert.NotContains(t, msg, "fairly confident")
}

func TestFormatSuccessMediumConfidence(t *testing.T) {
	msg := FormatSuccess(&llm.LabelAnalysis{Name: "Opus One", Confidence: 0.75})
	assert.Contains(t, msg, "fairly confident")
}

func TestFormatSuccessLowConfidence(t *testing.T) {
	msg := FormatSuccess(&llm.LabelAnalysis{Name: "Opus One", Confidence: 0.5})
	assert.Contains(t, msg, "doesn't look right")
}
