package export

import (
	"sort"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// DefaultMinRatingCount is the rating count a product needs to enter the
// brand analysis.
const DefaultMinRatingCount = 75

// PriceStats summarizes prices of priced products (price > 0).
type PriceStats struct {
	Priced int
	Min    float64
	Mean   float64
	Max    float64
}

// BrandStats aggregates one brand over qualifying products.
type BrandStats struct {
	Brand      string
	Products   int
	MeanRating float64
	MeanPrice  float64
	TopRated   models.CleanedProduct
}

// Summary is the analytics view of a cleaned dataset.
type Summary struct {
	Source         string
	Products       int
	Brands         int
	Price          PriceStats
	MinRatingCount int
	Qualified      int
	ByBrand        []BrandStats
	Stats          models.CleanStats
}

// Summarize computes dataset totals and the per-brand analysis over
// products with at least minRatingCount ratings. ByBrand is ordered by
// product count, then brand name.
func Summarize(ds *models.Dataset, minRatingCount int) Summary {
	s := Summary{MinRatingCount: minRatingCount}
	if ds == nil {
		return s
	}
	s.Source = ds.Source
	s.Products = len(ds.Records)
	s.Stats = ds.Stats

	type acc struct {
		stats       BrandStats
		ratingTotal float64
		priceTotal  float64
	}
	brands := make(map[string]struct{})
	byBrand := make(map[string]*acc)
	var priceTotal float64

	for _, p := range ds.Records {
		brands[p.Brand] = struct{}{}

		if p.Price > 0 {
			if s.Price.Priced == 0 || p.Price < s.Price.Min {
				s.Price.Min = p.Price
			}
			if p.Price > s.Price.Max {
				s.Price.Max = p.Price
			}
			s.Price.Priced++
			priceTotal += p.Price
		}

		if p.RatingCount < minRatingCount {
			continue
		}
		s.Qualified++
		a, ok := byBrand[p.Brand]
		if !ok {
			a = &acc{stats: BrandStats{Brand: p.Brand, TopRated: p}}
			byBrand[p.Brand] = a
		}
		a.stats.Products++
		a.ratingTotal += p.RatingScore
		a.priceTotal += p.Price
		if p.RatingScore > a.stats.TopRated.RatingScore {
			a.stats.TopRated = p
		}
	}

	s.Brands = len(brands)
	if s.Price.Priced > 0 {
		s.Price.Mean = priceTotal / float64(s.Price.Priced)
	}

	s.ByBrand = make([]BrandStats, 0, len(byBrand))
	for _, a := range byBrand {
		a.stats.MeanRating = a.ratingTotal / float64(a.stats.Products)
		a.stats.MeanPrice = a.priceTotal / float64(a.stats.Products)
		s.ByBrand = append(s.ByBrand, a.stats)
	}
	sort.Slice(s.ByBrand, func(i, j int) bool {
		if s.ByBrand[i].Products != s.ByBrand[j].Products {
			return s.ByBrand[i].Products > s.ByBrand[j].Products
		}
		return s.ByBrand[i].Brand < s.ByBrand[j].Brand
	})
	return s
}
