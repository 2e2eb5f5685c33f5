package brackets

import (
	"fmt"
	"math/bits"
)

type BracketPlan struct {
	Teams  int
	Size   int
	Byes   int
	Rounds int
}

// Playable reports whether the plan has at least one round to schedule.
func (p BracketPlan) Playable() bool {
	return p.Rounds >= 1
}

// PlanBracket computes the smallest power-of-two bracket holding n teams.
func PlanBracket(n int) BracketPlan {
	if n <= 0 {
		return BracketPlan{}
	}
	if n == 1 {
		return BracketPlan{Teams: 1, Size: 1}
	}
	size := 1 << bits.Len(uint(n-1))
	return BracketPlan{
		Teams:  n,
		Size:   size,
		Byes:   size - n,
		Rounds: bits.TrailingZeros(uint(size)),
	}
}

// PlanFixedBracket plans n teams into a caller-chosen bracket size. A size
// that is not a power of two or cannot hold every team is an error, the
// roster list is never truncated.
func PlanFixedBracket(n, size int) (BracketPlan, error) {
	if !isPowerOfTwo(size) {
		return BracketPlan{}, fmt.Errorf("%w: got %d", ErrInvalidBracketSize, size)
	}
	if size < n {
		return BracketPlan{}, fmt.Errorf("%w: size %d, entries %d", ErrBracketTooSmall, size, n)
	}
	return BracketPlan{
		Teams:  n,
		Size:   size,
		Byes:   size - n,
		Rounds: bits.TrailingZeros(uint(size)),
	}, nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
