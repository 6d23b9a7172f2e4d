package models

// Intent is the classified purpose of a user message. The classifier
// decodes the model's text output into this closed set; anything it
// cannot decode becomes IntentUnknown.
type Intent string

const (
	IntentRecommend       Intent = "recommend"
	IntentEducateGeneral  Intent = "educate_general"
	IntentEducateSpecific Intent = "educate_specific"
	IntentCellarAdd       Intent = "cellar_add"
	IntentCellarQuery     Intent = "cellar_query"
	IntentCellarRemove    Intent = "cellar_remove"
	IntentRate            Intent = "rate"
	IntentDecide          Intent = "decide"
	IntentCorrect         Intent = "correct"
	IntentPhoto           Intent = "photo"
	IntentGreeting        Intent = "greeting"
	IntentUnknown         Intent = "unknown"

	// Response-only intents, never produced by the classifier.
	IntentAmbiguous     Intent = "ambiguous"
	IntentClarifySource Intent = "clarify_source"
)

// ParseIntent maps classifier output onto the closed intent set.
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentRecommend, IntentEducateGeneral, IntentEducateSpecific,
		IntentCellarAdd, IntentCellarQuery, IntentCellarRemove,
		IntentRate, IntentDecide, IntentCorrect, IntentPhoto,
		IntentGreeting:
		return Intent(s)
	default:
		return IntentUnknown
	}
}

// Entities are the structured fields extracted from one message.
// Zero values mean "not mentioned".
type Entities struct {
	PriceMin        float64  `json:"price_min,omitempty"`
	PriceMax        float64  `json:"price_max,omitempty"`
	WineType        string   `json:"wine_type,omitempty"`
	Region          string   `json:"region,omitempty"`
	Country         string   `json:"country,omitempty"`
	Varietal        string   `json:"varietal,omitempty"`
	Occasion        string   `json:"occasion,omitempty"`
	FoodPairing     string   `json:"food_pairing,omitempty"`
	Characteristics []string `json:"characteristics,omitempty"`
	WineReference   string   `json:"wine_reference,omitempty"`
}

// IsEmpty reports whether nothing was extracted.
func (e Entities) IsEmpty() bool {
	return e.PriceMin == 0 && e.PriceMax == 0 && e.WineType == "" &&
		e.Region == "" && e.Country == "" && e.Varietal == "" &&
		e.Occasion == "" && e.FoodPairing == "" &&
		len(e.Characteristics) == 0 && e.WineReference == ""
}

// CardType discriminates the card payload.
type CardType string

const (
	CardWine           CardType = "wine"
	CardCellar         CardType = "cellar"
	CardSaved          CardType = "saved"
	CardIdentifiedWine CardType = "identified_wine"
)

// Card is one structured wine/bottle payload attached to a response for
// client-side rendering.
type Card struct {
	Type CardType `json:"type"`

	WineID   string `json:"wine_id,omitempty"`
	BottleID string `json:"bottle_id,omitempty"`
	SavedID  string `json:"saved_id,omitempty"`

	WineName string   `json:"wine_name"`
	Producer string   `json:"producer,omitempty"`
	Vintage  int      `json:"vintage,omitempty"`
	WineType WineType `json:"wine_type,omitempty"`
	Varietal string   `json:"varietal,omitempty"`
	Region   string   `json:"region,omitempty"`
	Country  string   `json:"country,omitempty"`
	PriceUSD float64  `json:"price_usd,omitempty"`

	// Recommendation cards.
	Explanation    string  `json:"explanation,omitempty"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
	IsSaved        bool    `json:"is_saved,omitempty"`
	IsInCellar     bool    `json:"is_in_cellar,omitempty"`

	// Cellar cards.
	Status       BottleStatus `json:"status,omitempty"`
	Quantity     int          `json:"quantity,omitempty"`
	Rating       float64      `json:"rating,omitempty"`
	TastingNotes string       `json:"tasting_notes,omitempty"`

	// Saved cards.
	SavedAt string `json:"saved_at,omitempty"`
	Notes   string `json:"notes,omitempty"`

	// Identified-wine cards.
	Confidence float64 `json:"confidence,omitempty"`
}

// Action is a quick-reply button offered with a response.
type Action struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

// Response is the orchestrator's uniform envelope, consumed by the
// HTTP/UI layer.
type Response struct {
	Response              string   `json:"response"`
	Intent                Intent   `json:"intent"`
	SessionID             string   `json:"session_id"`
	Cards                 []Card   `json:"cards"`
	Actions               []Action `json:"actions"`
	RequiresAuth          bool     `json:"requires_auth"`
	RequiresClarification bool     `json:"requires_clarification"`
	ConfirmationRequired  bool     `json:"confirmation_required"`
	Error                 string   `json:"error,omitempty"`
}
