package session

import (
	"cmp"
	"slices"

	"github.com/DoyleJ11/poipoi-backend/pkg/types"
)

// Result is one row of the end-of-match board.
type Result struct {
	Participant string
	Name        string
	Slot        int
	Score       int
	Record      float64
	You         bool
	Winner      bool
	Longest     bool
}

// Results ranks the participants still in the room. Ties share the winner
// and longest-throw flags. Both maxima start at zero: when nobody scored,
// everybody shares the win, and a participant who never threw (record -1)
// never holds the longest throw. Offline, only the local participant is
// compared.
func (c *Controller) Results() []Result {
	var players []types.PlayerProps
	if c.net.Offline() {
		if p, ok := c.net.Local(); ok {
			players = append(players, p)
		}
	} else {
		for _, p := range c.net.Players() {
			if p.Ready {
				players = append(players, p)
			}
		}
	}
	return rank(players, c.net.Self())
}

func rank(players []types.PlayerProps, self string) []Result {
	maxScore, maxRecord := 0, 0.0
	for _, p := range players {
		maxScore = max(maxScore, p.Score)
		maxRecord = max(maxRecord, p.Record)
	}
	out := make([]Result, 0, len(players))
	for _, p := range players {
		out = append(out, Result{
			Participant: p.ID,
			Name:        p.Name,
			Slot:        p.Slot,
			Score:       p.Score,
			Record:      p.Record,
			You:         p.ID == self,
			Winner:      p.Score >= maxScore,
			Longest:     p.Record >= maxRecord,
		})
	}
	slices.SortFunc(out, func(a, b Result) int { return cmp.Compare(a.Slot, b.Slot) })
	return out
}
