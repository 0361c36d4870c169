package service

import (
	"math"

	"github.com/noah-isme/feedback-insights-api/internal/models"
)

// ReduceRatings folds a sequence of 1–5 ratings into a RatingStats value.
// An empty sequence is a valid zero result: total 0, average 0, all five
// distribution buckets present and zero. Out-of-range values are an upstream
// contract violation; the reducer counts them as-is rather than crashing.
func ReduceRatings(ratings []int) models.RatingStats {
	stats := models.NewRatingStats()
	if len(ratings) == 0 {
		return stats
	}

	sum := 0
	for _, rating := range ratings {
		stats.RatingDistribution[rating]++
		sum += rating
	}
	stats.TotalResponses = len(ratings)
	stats.AverageRating = round2(float64(sum) / float64(len(ratings)))
	return stats
}

// mergeStats pools src into dst bucket-by-bucket and recomputes the pooled
// average from the merged distribution. Pooling keeps weighting correct when
// the merged groups have different response counts; averaging the averages
// would not.
func mergeStats(dst *models.RatingStats, src models.RatingStats) {
	for rating, count := range src.RatingDistribution {
		dst.RatingDistribution[rating] += count
	}
	dst.TotalResponses += src.TotalResponses
	if dst.TotalResponses == 0 {
		dst.AverageRating = 0
		return
	}
	sum := 0
	for rating, count := range dst.RatingDistribution {
		sum += rating * count
	}
	dst.AverageRating = round2(float64(sum) / float64(dst.TotalResponses))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
