package flow

import "flowdesk/internal/domain"

type sideAccumulator struct {
	volume       int
	priceSum     float64 // Σ price × qty
	breakevenSum float64 // Σ breakeven × qty
}

func (a *sideAccumulator) add(t *domain.OptionTrade) {
	q := float64(t.Quantity)
	a.volume += t.Quantity
	a.priceSum += t.Price * q
	a.breakevenSum += t.Breakeven * q
}

func (a *sideAccumulator) averages() (price, breakeven float64) {
	if a.volume == 0 {
		return 0, 0
	}
	v := float64(a.volume)
	return a.priceSum / v, a.breakevenSum / v
}

// Summarize folds trades into call and put volume totals with
// volume-weighted average price and breakeven per side. A side with no
// volume reports zero averages.
func Summarize(trades []domain.OptionTrade) domain.OptionsSummary {
	var calls, puts sideAccumulator
	for i := range trades {
		if trades[i].Type == domain.OptionTypeCall {
			calls.add(&trades[i])
		} else {
			puts.add(&trades[i])
		}
	}

	var s domain.OptionsSummary
	s.TotalCallVolume = calls.volume
	s.TotalPutVolume = puts.volume
	s.AverageCallPrice, s.AverageCallBreakeven = calls.averages()
	s.AveragePutPrice, s.AveragePutBreakeven = puts.averages()
	return s
}

// PutCallRatio returns put volume divided by call volume, or 0 when there is
// no call volume.
func PutCallRatio(trades []domain.OptionTrade) float64 {
	s := Summarize(trades)
	if s.TotalCallVolume == 0 {
		return 0
	}
	return float64(s.TotalPutVolume) / float64(s.TotalCallVolume)
}
