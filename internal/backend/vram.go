package backend

import "fmt"

// VramTier is one of the four fixed memory-capacity classes. Each tier
// selects exactly one optimization-bundle platform.
type VramTier string

const (
	Tier32G  VramTier = "32G"
	Tier48G  VramTier = "48G"
	Tier64G  VramTier = "64G"
	Tier128G VramTier = "128G"
)

const (
	PlatformOrin = "Orin"
	PlatformThor = "Thor"
)

// Tiers lists the defined tiers in menu order.
var Tiers = []VramTier{Tier32G, Tier48G, Tier64G, Tier128G}

// ParseTier validates a tier string.
func ParseTier(s string) (VramTier, error) {
	for _, t := range Tiers {
		if s == string(t) {
			return t, nil
		}
	}

	return "", fmt.Errorf("unknown VRAM tier %q (expected one of 32G, 48G, 64G, 128G)", s)
}

// Platform maps a tier to its optimization-bundle platform: 128G is Thor
// hardware, everything else is Orin. Fixed, non-configurable.
func (t VramTier) Platform() string {
	if t == Tier128G {
		return PlatformThor
	}

	return PlatformOrin
}
