package agents

import (
	"context"

	"github.com/pipwine/pip/internal/models"
	"github.com/pipwine/pip/internal/storage"
)

// BottleView flattens a cellar bottle with its catalog wine, so filters
// and formatting read one set of attributes whether the bottle is a
// catalog reference or a custom entry.
type BottleView struct {
	Bottle models.CellarBottle
	Wine   *models.Wine
}

func (v BottleView) Name() string {
	if v.Wine != nil {
		return v.Wine.Name
	}
	return v.Bottle.CustomName
}

func (v BottleView) Producer() string {
	if v.Wine != nil {
		return v.Wine.Producer
	}
	return v.Bottle.CustomProducer
}

func (v BottleView) Vintage() int {
	if v.Wine != nil {
		return v.Wine.Vintage
	}
	return v.Bottle.CustomVintage
}

func (v BottleView) Type() models.WineType {
	if v.Wine != nil {
		return v.Wine.Type
	}
	return v.Bottle.CustomType
}

func (v BottleView) Varietal() string {
	if v.Wine != nil {
		return v.Wine.Varietal
	}
	return v.Bottle.CustomVarietal
}

func (v BottleView) Region() string {
	if v.Wine != nil {
		return v.Wine.Region
	}
	return v.Bottle.CustomRegion
}

func (v BottleView) Country() string {
	if v.Wine != nil {
		return v.Wine.Country
	}
	return v.Bottle.CustomCountry
}

// Price is the catalog price for catalog wines, else what the user paid.
func (v BottleView) Price() float64 {
	if v.Wine != nil {
		return v.Wine.PriceUSD
	}
	return v.Bottle.PurchasePrice
}

// Reference builds a conversation wine reference for this bottle.
func (v BottleView) Reference(source string) models.WineReference {
	return models.WineReference{
		WineID:   v.Bottle.WineID,
		BottleID: v.Bottle.ID,
		WineName: v.Name(),
		Producer: v.Producer(),
		Vintage:  v.Vintage(),
		WineType: v.Type(),
		Varietal: v.Varietal(),
		Region:   v.Region(),
		Country:  v.Country(),
		Source:   source,
	}
}

// Card builds a cellar card for this bottle.
func (v BottleView) Card() models.Card {
	return models.Card{
		Type:         models.CardCellar,
		BottleID:     v.Bottle.ID,
		WineID:       v.Bottle.WineID,
		WineName:     v.Name(),
		Producer:     v.Producer(),
		Vintage:      v.Vintage(),
		WineType:     v.Type(),
		Varietal:     v.Varietal(),
		Region:       v.Region(),
		Country:      v.Country(),
		PriceUSD:     v.Price(),
		Status:       v.Bottle.Status,
		Quantity:     v.Bottle.Quantity,
		Rating:       v.Bottle.Rating,
		TastingNotes: v.Bottle.TastingNotes,
	}
}

// loadViews resolves catalog wines for a set of bottles. A bottle whose
// wine record is missing degrades to its custom fields.
func loadViews(ctx context.Context, store storage.Storage, bottles []models.CellarBottle) []BottleView {
	views := make([]BottleView, 0, len(bottles))
	for _, bottle := range bottles {
		view := BottleView{Bottle: bottle}
		if bottle.WineID != "" {
			if wine, err := store.GetWine(ctx, bottle.WineID); err == nil {
				view.Wine = wine
			}
		}
		views = append(views, view)
	}
	return views
}
