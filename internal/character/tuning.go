package character

import "time"

type Config struct {
	Speed            float64 // units per second at full ramp
	SmoothTime       float64 // seconds for velocity to settle on the command
	AccelRate        float64 // ramp gain per second, 0..1
	ChargeRate       float64 // charge gained per second
	ChargeCeiling    float64
	ChargeLoop       bool // wrap at the ceiling instead of saturating
	ThrowForce       float64
	MaxMass          float64 // mass at which the carrier is slowest
	MinSpeedFraction float64
	SearchWindow     time.Duration
	ReleaseHeight    float64 // height of the carry socket above ground
}

func DefaultConfig() Config {
	return Config{
		Speed:            4,
		SmoothTime:       0.15,
		AccelRate:        2,
		ChargeRate:       1,
		ChargeCeiling:    1,
		ThrowForce:       20,
		MaxMass:          5,
		MinSpeedFraction: 0.1,
		SearchWindow:     100 * time.Millisecond,
		ReleaseHeight:    0.5,
	}
}
