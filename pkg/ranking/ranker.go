package ranking

import (
	"sort"
	"time"

	"github.com/smartreview/platform/pkg/common/models"
)

// RankedOffer pairs an offer with its computed score and the reason it was
// placed where it was.
type RankedOffer struct {
	Offer  models.Offer `json:"offer"`
	Score  float64      `json:"score"`
	Reason string       `json:"reason"`
}

var sourcePriority = map[string]float64{
	models.SourceAmazon:     1.0,
	models.SourceAliExpress: 0.85,
	models.SourceTemu:       0.75,
	models.SourceAlibaba:    0.72,
	models.SourceEbay:       0.7,
}

func sourceFactor(source string) float64 {
	if p, ok := sourcePriority[source]; ok {
		return p
	}
	return 0.5
}

func freshnessFactor(lastUpdated *time.Time, now time.Time) float64 {
	if lastUpdated == nil {
		return 0.15
	}
	age := now.Sub(*lastUpdated)
	switch {
	case age <= 24*time.Hour:
		return 1.0
	case age <= 3*24*time.Hour:
		return 0.85
	case age <= 7*24*time.Hour:
		return 0.65
	case age <= 30*24*time.Hour:
		return 0.35
	default:
		return 0.15
	}
}

func apiConfidenceFactor(partner *models.Partner) float64 {
	if partner == nil {
		return 0.3
	}
	if partner.HasAPI {
		return 1.0
	}
	return 0.55
}

// Score computes the composite ranking score. Priced offers weight freshness
// heavier, unpriced offers lean more on source priority.
func Score(offer models.Offer, partner *models.Partner, now time.Time) float64 {
	f := freshnessFactor(offer.LastUpdated, now)
	s := sourceFactor(offer.Source)
	a := apiConfidenceFactor(partner)
	if offer.Price != nil {
		return f*0.45 + s*0.35 + a*0.2
	}
	return f*0.4 + s*0.4 + a*0.2
}

// Rank orders offers for display. Priced offers come first sorted by
// ascending price, unpriced offers follow sorted by score.
func Rank(offers []models.Offer, partners map[string]models.Partner, now time.Time) []RankedOffer {
	ranked := make([]RankedOffer, 0, len(offers))
	for _, offer := range offers {
		var partner *models.Partner
		if offer.PartnerID != nil {
			if p, ok := partners[*offer.PartnerID]; ok {
				partner = &p
			}
		}
		entry := RankedOffer{Offer: offer, Score: Score(offer, partner, now)}
		if offer.Price != nil {
			entry.Reason = "priced-offer"
		} else {
			entry.Reason = "best-available-without-price"
		}
		ranked = append(ranked, entry)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		aPriced := a.Offer.Price != nil
		bPriced := b.Offer.Price != nil
		if aPriced != bPriced {
			return aPriced
		}
		if aPriced && bPriced && *a.Offer.Price != *b.Offer.Price {
			return *a.Offer.Price < *b.Offer.Price
		}
		return a.Score > b.Score
	})
	return ranked
}
