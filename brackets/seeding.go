package brackets

import (
	"bytes"
	"math/rand"
	"sort"
)

const DefaultRating = 1000

// AverageRating is the arithmetic mean of the member ratings. A roster
// without members is rated at defaultRating.
func AverageRating(memberRatings []int, defaultRating int) float64 {
	if len(memberRatings) == 0 {
		return float64(defaultRating)
	}
	sum := 0
	for _, r := range memberRatings {
		sum += r
	}
	return float64(sum) / float64(len(memberRatings))
}

// SeedOrder returns the entries ordered best first: carried-over placements
// ascending, then rating descending, then roster id so repeated reads of the
// same snapshot give the same order.
func SeedOrder(entries []Entry) []Entry {
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Placement != b.Placement {
			switch {
			case a.Placement == 0:
				return false
			case b.Placement == 0:
				return true
			default:
				return a.Placement < b.Placement
			}
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		return bytes.Compare(a.RosterID[:], b.RosterID[:]) < 0
	})
	return ordered
}

// ShuffleEntries is an in-place Fisher-Yates shuffle.
func ShuffleEntries(entries []Entry, rng *rand.Rand) {
	for i := len(entries) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		entries[i], entries[j] = entries[j], entries[i]
	}
}
