// Package roll turns resolved die requests into roll specifications and
// executes them against the shared state store.
package roll

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"

	"dicebridge/internal/catalog"
)

// Advantage is the tri-state keep rule for a roll.
type Advantage int

const (
	AdvantageNone Advantage = iota
	AdvantageHigh
	AdvantageLow
)

func ParseAdvantage(s string) Advantage {
	switch strings.ToLower(s) {
	case "advantage", "high":
		return AdvantageHigh
	case "disadvantage", "low":
		return AdvantageLow
	default:
		return AdvantageNone
	}
}

func (a Advantage) String() string {
	switch a {
	case AdvantageHigh:
		return "advantage"
	case AdvantageLow:
		return "disadvantage"
	default:
		return "none"
	}
}

// Die is one resolved catalog entry plus how many times to roll it.
type Die struct {
	Entry catalog.Entry
	Count int
}

// Spec is the concrete, fully resolved instruction set for one roll.
// An empty Dice slice is a valid spec; submitting it is a no-op.
type Spec struct {
	RollID    string
	Subject   string
	Dice      []Die
	Bonus     int
	Advantage Advantage
	Hidden    bool
	Seed      int64
}

// InstanceKeys returns the per-die-instance keys the spec introduces, in
// deterministic order: dice in spec order, instances numbered from 1.
func (s Spec) InstanceKeys() []string {
	var keys []string
	for _, d := range s.Dice {
		for n := 1; n <= d.Count; n++ {
			keys = append(keys, InstanceKey(d.Entry.ID, n))
		}
	}
	return keys
}

func InstanceKey(dieID string, n int) string {
	return fmt.Sprintf("%s#%d", dieID, n)
}

// NewSeed draws a high-entropy seed for a roll's RNG.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
