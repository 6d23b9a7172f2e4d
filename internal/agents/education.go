package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/llm"
	"github.com/pipwine/pip/internal/models"
	"github.com/pipwine/pip/internal/retrieval"
	"github.com/pipwine/pip/internal/storage"
)

const pipSystemPrompt = "You are Pip, a friendly and knowledgeable wine mentor."

// EducationAgent answers wine knowledge questions, backed by the WSET
// knowledge index for general questions and the catalog for specific
// wines.
type EducationAgent struct {
	storage   storage.Storage
	llm       llm.Completer
	retriever retrieval.Retriever
	logger    *zap.Logger
}

func NewEducationAgent(store storage.Storage, completer llm.Completer, retriever retrieval.Retriever, logger *zap.Logger) *EducationAgent {
	return &EducationAgent{storage: store, llm: completer, retriever: retriever, logger: logger}
}

// AnswerGeneral answers a knowledge question grounded on retrieved
// passages. Retrieval failures degrade to an ungrounded answer rather
// than failing the turn.
func (a *EducationAgent) AnswerGeneral(ctx context.Context, question string) (string, error) {
	chunks, err := a.retriever.SearchKnowledge(ctx, question, 3)
	if err != nil {
		a.logger.Warn("knowledge search failed", zap.Error(err))
		chunks = nil
	}

	if len(chunks) == 0 {
		return a.generate(ctx, fmt.Sprintf(`You are Pip, a wine expert. Answer this wine question to the best of your knowledge.
Be honest if you're not certain about something.

Question: %s

Provide a helpful, educational response.`, question))
	}

	var contextParts []string
	for _, chunk := range chunks {
		if chunk.Heading != "" {
			contextParts = append(contextParts, fmt.Sprintf("[%s]\n%s", chunk.Heading, chunk.Text))
		} else {
			contextParts = append(contextParts, chunk.Text)
		}
	}

	prompt := fmt.Sprintf(`You are Pip, a wine expert trained in WSET wine knowledge.
Answer the user's wine question using the provided knowledge context.

RULES:
- Be informative but conversational
- Use the WSET knowledge provided, but explain in accessible terms
- DO NOT recommend specific wines - this is an educational response
- Keep response focused and under 3 paragraphs
- If the context doesn't fully answer the question, acknowledge what you do know

WSET Knowledge Context:
%s

User Question: %s

Respond as Pip, the friendly wine mentor.`,
		strings.Join(contextParts, "\n\n"), question)

	return a.generate(ctx, prompt)
}

// AnswerSpecific answers a question about one catalog wine, located by
// ID or by name substring.
func (a *EducationAgent) AnswerSpecific(ctx context.Context, wineID, wineName, question string) (string, *models.Wine, error) {
	wine := a.findWine(ctx, wineID, wineName)
	if wine == nil {
		return "I don't have specific details about that wine in my catalog. If you tell me more about it (producer, region, grape variety), I can share general knowledge about wines like that.", nil, nil
	}

	if question == "" {
		question = "Tell me about this wine"
	}

	prompt := fmt.Sprintf(`You are Pip, a wine expert. The user is asking about a specific wine.

Wine Details:
%s

User Question: %s

Provide helpful information about this wine. Cover:
- What makes this wine special or notable
- Tasting profile and what to expect
- Food pairing suggestions
- When to drink it (is it ready now or should it age?)

Keep it conversational and informative.`, describeWine(wine), question)

	answer, err := a.generate(ctx, prompt)
	return answer, wine, err
}

// ExplainTerm answers "what is X" for a wine term.
func (a *EducationAgent) ExplainTerm(ctx context.Context, term string) (string, error) {
	return a.AnswerGeneral(ctx, fmt.Sprintf("What is %s in wine?", term))
}

// CompareWines explains the difference between two wines or styles.
func (a *EducationAgent) CompareWines(ctx context.Context, first, second string) (string, error) {
	return a.AnswerGeneral(ctx, fmt.Sprintf("difference between %s and %s wine", first, second))
}

func (a *EducationAgent) findWine(ctx context.Context, wineID, wineName string) *models.Wine {
	if wineID != "" {
		if wine, err := a.storage.GetWine(ctx, wineID); err == nil {
			return wine
		}
	}
	if wineName == "" {
		return nil
	}
	wines, err := a.storage.ListWines(ctx)
	if err != nil {
		a.logger.Warn("catalog list failed", zap.Error(err))
		return nil
	}
	needle := strings.ToLower(wineName)
	for i, wine := range wines {
		if strings.Contains(strings.ToLower(wine.Name), needle) ||
			strings.Contains(strings.ToLower(wine.Varietal), needle) {
			return &wines[i]
		}
	}
	return nil
}

func (a *EducationAgent) generate(ctx context.Context, prompt string) (string, error) {
	answer, err := a.llm.Complete(ctx, pipSystemPrompt, prompt, 0.7, 600)
	if err != nil {
		a.logger.Error("education completion failed", zap.Error(err))
		return "I'm having trouble generating a response right now. Please try again.", nil
	}
	return answer, nil
}

func describeWine(wine *models.Wine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Wine: %s\n", wine.Name)
	fmt.Fprintf(&b, "Producer: %s\n", orDefault(wine.Producer, "Unknown"))
	if wine.Vintage > 0 {
		fmt.Fprintf(&b, "Vintage: %d\n", wine.Vintage)
	} else {
		b.WriteString("Vintage: NV\n")
	}
	fmt.Fprintf(&b, "Type: %s\n", wine.Type)
	fmt.Fprintf(&b, "Varietal: %s\n", orDefault(wine.Varietal, "Blend"))
	fmt.Fprintf(&b, "Region: %s, %s\n", orDefault(wine.Region, "Unknown"), wine.Country)
	if wine.PriceUSD > 0 {
		fmt.Fprintf(&b, "Price: $%.0f\n", wine.PriceUSD)
	}
	if wine.Metadata.Body != "" {
		fmt.Fprintf(&b, "Body: %s\n", wine.Metadata.Body)
	}
	if len(wine.Metadata.Characteristics) > 0 {
		fmt.Fprintf(&b, "Characteristics: %s\n", strings.Join(wine.Metadata.Characteristics, ", "))
	}
	if len(wine.Metadata.FlavorNotes) > 0 {
		fmt.Fprintf(&b, "Flavor Notes: %s\n", strings.Join(wine.Metadata.FlavorNotes, ", "))
	}
	return b.String()
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
