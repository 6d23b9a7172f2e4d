package models

import "time"

type WineType string

const (
	WineTypeRed       WineType = "red"
	WineTypeWhite     WineType = "white"
	WineTypeRose      WineType = "rosé"
	WineTypeSparkling WineType = "sparkling"
)

// User is an OAuth-backed account. No passwords are stored.
type User struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	DisplayName   string         `json:"display_name,omitempty"`
	OAuthProvider string         `json:"oauth_provider"`
	OAuthID       string         `json:"oauth_id"`
	Preferences   map[string]any `json:"preferences,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// WineMetadata holds the open-ended catalog attributes used for
// education answers and recommendation explanations.
type WineMetadata struct {
	Body            string   `json:"body,omitempty"`
	Sweetness       string   `json:"sweetness,omitempty"`
	Acidity         string   `json:"acidity,omitempty"`
	Tannin          string   `json:"tannin,omitempty"`
	Characteristics []string `json:"characteristics,omitempty"`
	FlavorNotes     []string `json:"flavor_notes,omitempty"`
}

// Wine is a catalog entry, immutable from the orchestrator's side.
// Populated by the offline seeding pipeline.
type Wine struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Producer string       `json:"producer,omitempty"`
	Vintage  int          `json:"vintage,omitempty"`
	Type     WineType     `json:"wine_type"`
	Varietal string       `json:"varietal,omitempty"`
	Country  string       `json:"country,omitempty"`
	Region   string       `json:"region,omitempty"`
	PriceUSD float64      `json:"price_usd,omitempty"`
	Metadata WineMetadata `json:"metadata,omitempty"`
}

// SavedBottle is a "want to try" bookmark, unique per (user, wine).
// Moving it to the cellar deletes the saved record.
type SavedBottle struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	WineID                string    `json:"wine_id"`
	RecommendationContext string    `json:"recommendation_context,omitempty"`
	Notes                 string    `json:"notes,omitempty"`
	SavedAt               time.Time `json:"saved_at"`
}

type BottleStatus string

const (
	StatusOwned BottleStatus = "owned"
	StatusTried BottleStatus = "tried"
)

// CellarBottle is a bottle the user owns or has tried. It references a
// catalog wine via WineID, or carries Custom* fields for bottles not in
// the catalog (photo recognition, manual entry). Exactly one of the two
// identity sources is set.
type CellarBottle struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	WineID string `json:"wine_id,omitempty"`

	CustomName     string   `json:"custom_wine_name,omitempty"`
	CustomProducer string   `json:"custom_wine_producer,omitempty"`
	CustomVintage  int      `json:"custom_wine_vintage,omitempty"`
	CustomType     WineType `json:"custom_wine_type,omitempty"`
	CustomVarietal string   `json:"custom_wine_varietal,omitempty"`
	CustomRegion   string   `json:"custom_wine_region,omitempty"`
	CustomCountry  string   `json:"custom_wine_country,omitempty"`

	Status   BottleStatus `json:"status"`
	Quantity int          `json:"quantity"`

	PurchaseDate     *time.Time `json:"purchase_date,omitempty"`
	PurchasePrice    float64    `json:"purchase_price,omitempty"`
	PurchaseLocation string     `json:"purchase_location,omitempty"`

	Rating       float64    `json:"rating,omitempty"` // 1-5, 0 means unrated
	TastingNotes string     `json:"tasting_notes,omitempty"`
	TriedDate    *time.Time `json:"tried_date,omitempty"`

	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FlavorProfile tracks notes the user liked and disliked.
type FlavorProfile struct {
	LikedNotes    []string `json:"liked_notes,omitempty"`
	DislikedNotes []string `json:"disliked_notes,omitempty"`
}

// UserTasteProfile is a derived aggregate, upserted after every rating.
type UserTasteProfile struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	// Signed weights per wine type, accumulated across ratings.
	PreferredTypes     map[WineType]float64 `json:"preferred_types,omitempty"`
	PreferredRegions   []string             `json:"preferred_regions,omitempty"`
	PreferredCountries []string             `json:"preferred_countries,omitempty"`
	PreferredVarietals []string             `json:"preferred_varietals,omitempty"`

	PriceRangeMin float64 `json:"price_range_min,omitempty"`
	PriceRangeMax float64 `json:"price_range_max,omitempty"`

	FlavorProfile *FlavorProfile `json:"flavor_profile,omitempty"`

	RatingCount   int     `json:"rating_count"`
	AverageRating float64 `json:"average_rating,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
