package model

import (
	"sort"

	"checkout-bridge/internal/domain"
)

// Plan is a payment-platform pricing configuration.
type Plan struct {
	ID   string
	Name string
}

func (p Plan) IsZero() bool { return p.ID == "" }

// PlanBand maps an inclusive price range (minor units) to a plan.
type PlanBand struct {
	MinPrice int64
	MaxPrice int64
	PlanID   string
	PlanName string
}

func (b PlanBand) Contains(amount int64) bool {
	return amount >= b.MinPrice && amount <= b.MaxPrice
}

// NewPlanBands validates and orders a band table. The table must start at 0
// and adjacent bands must touch or overlap; the last band is open-ended.
func NewPlanBands(bands []PlanBand) ([]PlanBand, error) {
	if len(bands) == 0 {
		return nil, nil
	}
	out := make([]PlanBand, len(bands))
	copy(out, bands)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinPrice < out[j].MinPrice })

	if out[0].MinPrice != 0 {
		return nil, domain.ErrInvalidPlanBands
	}
	var reach int64 = -1
	for i, b := range out {
		if i < len(out)-1 && b.MaxPrice < b.MinPrice {
			return nil, domain.ErrInvalidPlanBands
		}
		if b.MinPrice > reach+1 {
			return nil, domain.ErrInvalidPlanBands
		}
		if b.MaxPrice > reach {
			reach = b.MaxPrice
		}
	}
	return out, nil
}
