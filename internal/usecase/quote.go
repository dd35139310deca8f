package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"travel-funnel/internal/domain"
	"travel-funnel/internal/integrations/coris"
)

const defaultMaxConcurrentPricing = 10

// InsuranceQuoter lists plans and prices one plan for a trip.
type InsuranceQuoter interface {
	ListPlans(ctx context.Context, destination string, days int) ([]domain.PlanCandidate, error)
	PricePlan(ctx context.Context, planID string, days int, tally domain.AgeTally) (float64, error)
}

// QuoteService aggregates the vendor's eligible plans into a priced,
// filtered, ascending-sorted list.
type QuoteService struct {
	quoter        InsuranceQuoter
	maxConcurrent int
}

type QuoteInput struct {
	Destination string
	Days        int
	Ages        []int
	TripType    string
	Origin      string
}

func NewQuoteService(quoter InsuranceQuoter, maxConcurrent int) (*QuoteService, error) {
	if quoter == nil {
		return nil, errors.New("usecase: quoter must not be nil")
	}
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentPricing
	}
	return &QuoteService{quoter: quoter, maxConcurrent: maxConcurrent}, nil
}

// Quote runs the aggregation pipeline. A failed listing call aborts; a
// failed or malformed pricing call only drops that plan. An empty result
// after filtering is a valid response, not an error.
func (s *QuoteService) Quote(ctx context.Context, in QuoteInput) ([]domain.PricedPlan, error) {
	if in.Destination == "" {
		return nil, newError(ErrorInvalidInput, "missing_destination", nil)
	}
	if in.Days <= 0 {
		return nil, newError(ErrorInvalidInput, "missing_days", nil)
	}
	if len(in.Ages) == 0 {
		return nil, newError(ErrorInvalidInput, "missing_ages", nil)
	}

	tally := domain.TallyAges(in.Ages)

	candidates, err := s.quoter.ListPlans(ctx, in.Destination, in.Days)
	if err != nil {
		if errors.Is(err, coris.ErrCredentials) {
			return nil, newError(ErrorConfig, "insurance_credentials", err)
		}
		return nil, newError(ErrorUpstream, "plan_listing_failed", err)
	}

	plans := make([]domain.PlanCandidate, 0, len(candidates))
	for _, p := range candidates {
		if domain.KeepPlan(in.Origin, domain.CoverageValue(p.Name, "")) {
			plans = append(plans, p)
		}
	}
	if len(plans) == 0 {
		return []domain.PricedPlan{}, nil
	}

	priced := make([]*domain.PricedPlan, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for idx := range plans {
		idx := idx
		g.Go(func() error {
			p := plans[idx]
			total, err := s.quoter.PricePlan(gctx, p.ID, in.Days, tally)
			if err != nil {
				// Pricing failures degrade to dropping the plan.
				slog.Warn("pricing call failed, dropping plan", "planId", p.ID, "err", err)
				return nil
			}
			coverage := domain.CoverageValue(p.Name, p.Attributes["descricao"])
			priced[idx] = &domain.PricedPlan{
				ID:         p.ID,
				Name:       p.Name,
				Coverage:   domain.CoverageLabel(coverage),
				Baggage:    domain.BaggageLimit(coverage),
				TotalPrice: total,
				TripTypeID: in.TripType,
			}
			return nil
		})
	}
	_ = g.Wait()

	result := make([]domain.PricedPlan, 0, len(priced))
	for _, p := range priced {
		if p != nil {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TotalPrice < result[j].TotalPrice
	})
	return result, nil
}
