package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/llm"
)

// FailureType classifies why a label photo couldn't be identified.
type FailureType string

const (
	FailureNotWine       FailureType = "not_wine"
	FailureBlurry        FailureType = "blurry"
	FailureLighting      FailureType = "lighting"
	FailureGlare         FailureType = "glare"
	FailurePartial       FailureType = "partial"
	FailureWrongSide     FailureType = "wrong_side"
	FailureUnreadable    FailureType = "unreadable"
	FailureLowConfidence FailureType = "low_confidence"
	FailureUnknown       FailureType = "unknown"
)

// Guidance is retry advice for a failed photo.
type Guidance struct {
	FailureType FailureType
	Message     string
	Suggestions []string
	CanRetry    bool
}

// PhotoAgent handles wine label photos: analysis via the vision model,
// triage and retry guidance when the shot is bad.
type PhotoAgent struct {
	vision llm.Vision
	logger *zap.Logger
}

func NewPhotoAgent(vision llm.Vision, logger *zap.Logger) *PhotoAgent {
	return &PhotoAgent{vision: vision, logger: logger}
}

// Analyze runs the vision model on a label image.
func (a *PhotoAgent) Analyze(ctx context.Context, imageURL string) (*llm.LabelAnalysis, error) {
	analysis, err := a.vision.AnalyzeLabel(ctx, imageURL)
	if err != nil {
		a.logger.Error("label analysis failed", zap.Error(err))
		return nil, err
	}
	return analysis, nil
}

// ClassifyFailure maps hints from the vision model onto a failure type.
// Free-text hints win over the confidence thresholds.
func ClassifyFailure(confidence float64, additionalInfo string) FailureType {
	info := strings.ToLower(additionalInfo)

	switch {
	case strings.Contains(info, "not a wine") || strings.Contains(info, "not wine"):
		return FailureNotWine
	case strings.Contains(info, "blur"):
		return FailureBlurry
	case strings.Contains(info, "dark") || strings.Contains(info, "lighting"):
		return FailureLighting
	case strings.Contains(info, "glare") || strings.Contains(info, "reflection"):
		return FailureGlare
	case strings.Contains(info, "partial") || strings.Contains(info, "cropped"):
		return FailurePartial
	case strings.Contains(info, "back"):
		return FailureWrongSide
	case confidence < 0.2:
		return FailureUnreadable
	case confidence < 0.5:
		return FailureLowConfidence
	}
	return FailureUnknown
}

// GuidanceFor returns the retry guidance for a failure type.
func GuidanceFor(failure FailureType) Guidance {
	g := Guidance{FailureType: failure, CanRetry: failure != FailureNotWine}

	switch failure {
	case FailureNotWine:
		g.Message = "That doesn't look like a wine label. I can only identify wine bottles."
		g.Suggestions = []string{
			"Make sure you're photographing a wine bottle label",
			"You can also just tell me the wine name directly",
		}
	case FailureBlurry:
		g.Message = "The image is a bit blurry and I can't read the label clearly."
		g.Suggestions = []string{
			"Hold your camera steady when taking the photo",
			"Tap to focus on the label before shooting",
			"Try getting a bit closer to the label",
		}
	case FailureLighting:
		g.Message = "The lighting makes it hard to read the label."
		g.Suggestions = []string{
			"Move to a brighter area or turn on a light",
			"Avoid shadows falling on the label",
			"Natural daylight works best",
		}
	case FailureGlare:
		g.Message = "There's glare on the label making it hard to read."
		g.Suggestions = []string{
			"Angle the bottle slightly to reduce reflections",
			"Move away from direct light sources",
			"Glossy labels can be tricky - try a slight angle",
		}
	case FailurePartial:
		g.Message = "I can only see part of the label."
		g.Suggestions = []string{
			"Make sure the entire front label is in the frame",
			"Get the wine name and producer in view",
			"Step back a bit if you're too close",
		}
	case FailureWrongSide:
		g.Message = "This looks like the back label. I need the front!"
		g.Suggestions = []string{
			"Flip the bottle to show the front label",
			"The front label usually has the wine name and producer",
		}
	case FailureUnreadable:
		g.Message = "I couldn't read the text on this label."
		g.Suggestions = []string{
			"Try better lighting",
			"Make sure the camera is focused on the label",
			"Or just tell me the wine name and I'll help from there",
		}
	case FailureLowConfidence:
		g.Message = "I'm not confident about this identification."
		g.Suggestions = []string{
			"Try a clearer photo of the front label",
			"Make sure the wine name is visible",
			"You can also type the wine name if you know it",
		}
	default:
		g.Message = "I had trouble with that image."
		g.Suggestions = []string{
			"Try a new photo with good lighting",
			"Focus on the main label with the wine name",
			"Or simply tell me the wine name",
		}
	}
	return g
}

// FormatSuccess builds the identification message, hedged by how sure
// the model was.
func FormatSuccess(analysis *llm.LabelAnalysis) string {
	var parts []string

	if analysis.Name != "" {
		if analysis.Producer != "" {
			parts = append(parts, fmt.Sprintf("I found **%s** by %s", analysis.Name, analysis.Producer))
		} else {
			parts = append(parts, fmt.Sprintf("I found **%s**", analysis.Name))
		}
	}
	if analysis.Vintage > 0 {
		parts = append(parts, fmt.Sprintf("(%d)", analysis.Vintage))
	}
	switch {
	case analysis.Region != "" && analysis.Country != "":
		parts = append(parts, fmt.Sprintf("from %s, %s", analysis.Region, analysis.Country))
	case analysis.Region != "":
		parts = append(parts, "from "+analysis.Region)
	case analysis.Country != "":
		parts = append(parts, "from "+analysis.Country)
	}

	message := "I identified a wine"
	if len(parts) > 0 {
		message = strings.Join(parts, " ")
	}

	switch {
	case analysis.Confidence >= 0.9:
		message += "."
	case analysis.Confidence >= 0.7:
		message += ". I'm fairly confident about this."
	default:
		message += ". Let me know if that doesn't look right."
	}
	return message
}
