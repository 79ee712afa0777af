package usecase

import (
	"checkout-bridge/internal/domain"
	"checkout-bridge/internal/domain/model"
)

// PlanSelector maps an order amount to a payment plan.
type PlanSelector interface {
	// Select never returns a zero plan: amounts no band claims get the default.
	Select(amount int64) model.Plan
	Bands() []model.PlanBand
}

var _ PlanSelector = (*planSelector)(nil)

type planSelector struct {
	bands []model.PlanBand
	def   model.Plan
}

// NewPlanSelector validates the band table once. Bands are matched in
// ascending order with inclusive bounds; the top band has no upper bound.
func NewPlanSelector(bands []model.PlanBand, defaultPlan model.Plan) (*planSelector, error) {
	if defaultPlan.ID == "" {
		return nil, domain.ErrInvalidArgument
	}
	ordered, err := model.NewPlanBands(bands)
	if err != nil {
		return nil, err
	}
	if defaultPlan.Name == "" {
		defaultPlan.Name = defaultPlan.ID
	}
	return &planSelector{bands: ordered, def: defaultPlan}, nil
}

func (s *planSelector) Select(amount int64) model.Plan {
	if amount < 0 {
		amount = 0
	}
	last := len(s.bands) - 1
	for i, b := range s.bands {
		if b.PlanID == "" {
			continue
		}
		if b.Contains(amount) || (i == last && amount >= b.MinPrice) {
			name := b.PlanName
			if name == "" {
				name = b.PlanID
			}
			return model.Plan{ID: b.PlanID, Name: name}
		}
	}
	return s.def
}

func (s *planSelector) Bands() []model.PlanBand {
	out := make([]model.PlanBand, len(s.bands))
	copy(out, s.bands)
	return out
}
