// Package economy implements the paint economy: perceptual edit pricing,
// per-identity budgets, and iteration replenishment.
//
// Pricing is deliberately anti-entrenchment: the cost of repainting a cell
// grows geometrically with how many times that cell has already been
// repainted, scaled by how perceptually different the new color is from the
// current one. Identical colors are free but rejected upstream as no-ops.
package economy

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/easelhq/easel/pkg/board"
)

// CostGrowthRate is the per-repaint geometric growth factor for a cell's
// edit cost.
const CostGrowthRate = 1.1

// Defaults holds the configured starting-balance tiers and per-iteration
// top-up amount.
type Defaults struct {
	// Base is the starting paint for an unverified identity.
	Base int
	// Verified is the starting paint for a verified identity.
	Verified int
	// VIP is the starting paint for a VIP identity.
	VIP int
	// InvitationBonus is added to the starting paint once per recorded
	// invitation.
	InvitationBonus int
	// IterationPaint is granted by the replenish policy at each iteration
	// boundary.
	IterationPaint int
}

// StandardDefaults mirrors the stock deployment configuration.
func StandardDefaults() Defaults {
	return Defaults{
		Base:            200,
		Verified:        2000,
		VIP:             3000,
		InvitationBonus: 100,
		IterationPaint:  125,
	}
}

// InitialBalance computes the starting paint for an identity from its
// metrics. Tiers do not stack: VIP supersedes verified supersedes base.
// Invitation bonuses stack on top of whichever tier applies.
func (d Defaults) InitialBalance(user board.UserMetrics) int {
	balance := d.Base
	if user.Verified {
		balance = d.Verified
	}
	if user.VIP {
		balance = d.VIP
	}
	return balance + user.Invitations*d.InvitationBonus
}

// ColorDistance returns the perceptual distance between two palette colors,
// scaled so that black-to-white is roughly 100. Uses CIEDE2000, which
// tracks human color perception far better than RGB distance; a barely
// visible tweak prices near zero while an opposite-hue repaint prices near
// the full scale.
func ColorDistance(hexA, hexB string) (float64, error) {
	a, err := colorful.Hex(hexA)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: %w", hexA, err)
	}
	b, err := colorful.Hex(hexB)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: %w", hexB, err)
	}
	// go-colorful normalizes CIEDE2000 to [0,1]; scale back to the
	// conventional delta-E range.
	return a.DistanceCIEDE2000(b) * 100, nil
}

// Cost prices an edit that changes a cell from its current color to a new
// color, given how many accepted edits the cell has already seen:
//
//	floor(1.1^historyLength * distance)
//
// Repainting a cell to its current color is free; callers reject that case
// as a no-op before pricing.
func Cost(historyLength int, newColor, currentColor string) (int, error) {
	distance, err := ColorDistance(newColor, currentColor)
	if err != nil {
		return 0, err
	}
	return int(math.Floor(math.Pow(CostGrowthRate, float64(historyLength)) * distance)), nil
}

// ReplenishPolicy decides an identity's paint balance at an iteration
// boundary.
type ReplenishPolicy interface {
	// Replenish maps a pre-boundary balance to a post-boundary balance.
	Replenish(balance int) int
}

// TopUp grants a flat amount of paint on top of whatever remains. This is
// the stock policy: thrift carries over.
type TopUp struct {
	Amount int
}

func (p TopUp) Replenish(balance int) int {
	return balance + p.Amount
}

// Reset discards the remaining balance and starts each iteration from a
// fixed amount. Useful for deployments that want every iteration to be a
// level playing field.
type Reset struct {
	Amount int
}

func (p Reset) Replenish(balance int) int {
	return p.Amount
}

// PolicyFor maps a configured policy name to an implementation.
func PolicyFor(name string, amount int) (ReplenishPolicy, error) {
	switch name {
	case "", "topup":
		return TopUp{Amount: amount}, nil
	case "reset":
		return Reset{Amount: amount}, nil
	default:
		return nil, fmt.Errorf("unknown replenish policy %q", name)
	}
}
