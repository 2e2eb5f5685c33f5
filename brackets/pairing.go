package brackets

import "fmt"

// SeedPositions returns the seed ranks (1-based) in bracket line order for a
// power-of-two bracket. Adjacent positions meet in the first round.
//
// The rank array is folded from both ends (first with last, second with
// second to last, ...) and the resulting groups are folded again until one
// group is left. Seed 1 meets the lowest remaining seed each round and the
// top two seeds can only meet in the final:
//
//	size 8 -> 1 8 4 5 2 7 3 6
func SeedPositions(size int) ([]int, error) {
	if size < 2 || !isPowerOfTwo(size) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBracketSize, size)
	}

	groups := make([][]int, size)
	for i := range groups {
		groups[i] = []int{i + 1}
	}

	for len(groups) > 1 {
		lo, hi := 0, len(groups)-1
		next := make([][]int, 0, len(groups)/2)
		for lo < hi {
			merged := make([]int, 0, len(groups[lo])+len(groups[hi]))
			merged = append(merged, groups[lo]...)
			merged = append(merged, groups[hi]...)
			next = append(next, merged)
			lo++
			hi--
		}
		groups = next
	}

	return groups[0], nil
}

// FirstRoundPairs returns the seed pairs of the first round in bracket order.
func FirstRoundPairs(size int) ([][2]int, error) {
	positions, err := SeedPositions(size)
	if err != nil {
		return nil, err
	}
	pairs := make([][2]int, 0, size/2)
	for i := 0; i < len(positions); i += 2 {
		pairs = append(pairs, [2]int{positions[i], positions[i+1]})
	}
	return pairs, nil
}
