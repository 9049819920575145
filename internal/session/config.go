package session

import (
	"time"

	"github.com/DoyleJ11/poipoi-backend/internal/match"
	"github.com/DoyleJ11/poipoi-backend/pkg/types"
)

type Config struct {
	MatchDuration time.Duration
	MaxPlayers    int
	// Practice is written to the room by the authority before it starts the
	// match. A practice match has no clock and keeps no score.
	Practice bool

	FadeIn       time.Duration
	OpeningDelay time.Duration
	MessageDelay time.Duration
	FinishDelay  time.Duration
	ResultsDelay time.Duration
	HideDelay    time.Duration
	FadeOut      time.Duration
	ClosingDelay time.Duration

	SpawnMin types.Vec2
	SpawnMax types.Vec2

	// Items seeded by the authority when the match starts.
	ItemCount   int
	ItemMin     types.Vec2
	ItemMax     types.Vec2
	ItemMaxMass float64

	World match.Config
	// Seed fixes the spawn rolls; zero draws one at random.
	Seed uint64
}

func DefaultConfig() Config {
	return Config{
		MatchDuration: 90 * time.Second,
		MaxPlayers:    4,
		FadeIn:        time.Second,
		OpeningDelay:  1500 * time.Millisecond,
		MessageDelay:  1500 * time.Millisecond,
		FinishDelay:   3 * time.Second,
		ResultsDelay:  500 * time.Millisecond,
		HideDelay:     time.Second,
		FadeOut:       time.Second,
		ClosingDelay:  1500 * time.Millisecond,
		SpawnMin:      types.Vec2{X: 2, Y: 9},
		SpawnMax:      types.Vec2{X: 4, Y: 11},
		ItemCount:     6,
		ItemMin:       types.Vec2{X: 0, Y: 4},
		ItemMax:       types.Vec2{X: 8, Y: 14},
		ItemMaxMass:   5,
		World:         match.DefaultConfig(),
	}
}
