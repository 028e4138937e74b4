// Package rankplan holds the static compensation plan: the ordered rank
// table with commission percentages and qualification requirements, plus
// the plan-wide constants shared by the volume, commission and pool
// services.
package rankplan

import "github.com/shopspring/decimal"

// Rank is one tier of the compensation plan, ordered lowest to highest.
type Rank string

const (
	RankStart      Rank = "start"
	RankBuilder    Rank = "builder"
	RankGrowth     Rank = "growth"
	RankLeadership Rank = "leadership"
	RankDirector   Rank = "director"
)

// Ordered lists ranks from lowest to highest.
var Ordered = []Rank{RankStart, RankBuilder, RankGrowth, RankLeadership, RankDirector}

// Requirements captures what a member must hold to qualify for a rank.
type Requirements struct {
	TeamVolume     decimal.Decimal
	ActivePartners int
}

type tier struct {
	Percentage   decimal.Decimal
	Requirements Requirements
}

var (
	// MinimumPV is the monthly personal volume required to count as active.
	MinimumPV = decimal.NewFromInt(200)

	// PioneerBonusPercentage is the flat bonus added for pioneer accounts.
	PioneerBonusPercentage = decimal.RequireFromString("0.04")

	// ReferralBonusPercentage is paid to the direct sponsor on large purchases.
	ReferralBonusPercentage = decimal.RequireFromString("0.01")

	// ReferralBonusMinAmount is the minimum purchase price for the referral bonus.
	ReferralBonusMinAmount = decimal.NewFromInt(5000)

	// GlobalPoolPercentage of monthly company volume funds the global pool.
	GlobalPoolPercentage = decimal.RequireFromString("0.02")

	// TransferBonusPercentage is credited on passive-to-active transfers.
	TransferBonusPercentage = decimal.RequireFromString("0.02")
)

var table = map[Rank]tier{
	RankStart: {
		Percentage:   decimal.RequireFromString("0.04"),
		Requirements: Requirements{TeamVolume: decimal.Zero, ActivePartners: 0},
	},
	RankBuilder: {
		Percentage:   decimal.RequireFromString("0.08"),
		Requirements: Requirements{TeamVolume: decimal.NewFromInt(50_000), ActivePartners: 2},
	},
	RankGrowth: {
		Percentage:   decimal.RequireFromString("0.12"),
		Requirements: Requirements{TeamVolume: decimal.NewFromInt(250_000), ActivePartners: 5},
	},
	RankLeadership: {
		Percentage:   decimal.RequireFromString("0.15"),
		Requirements: Requirements{TeamVolume: decimal.NewFromInt(1_000_000), ActivePartners: 10},
	},
	RankDirector: {
		Percentage:   decimal.RequireFromString("0.18"),
		Requirements: Requirements{TeamVolume: decimal.NewFromInt(5_000_000), ActivePartners: 15},
	},
}

var order = map[Rank]int{
	RankStart:      0,
	RankBuilder:    1,
	RankGrowth:     2,
	RankLeadership: 3,
	RankDirector:   4,
}

// Valid reports whether r names a configured rank.
func Valid(r Rank) bool {
	_, ok := table[r]
	return ok
}

// Normalize maps an unknown or empty rank to the lowest rank.
func Normalize(r Rank) Rank {
	if Valid(r) {
		return r
	}
	return RankStart
}

// PercentageFor returns the commission percentage for a rank. Unknown ranks
// degrade to the lowest rank rather than failing.
func PercentageFor(r Rank) decimal.Decimal {
	return table[Normalize(r)].Percentage
}

// RequirementsFor returns the qualification requirements for a rank.
func RequirementsFor(r Rank) Requirements {
	return table[Normalize(r)].Requirements
}

// MaxPercentage is the top rank's percentage, the cap for a whole
// differential chain.
func MaxPercentage() decimal.Decimal {
	return table[RankDirector].Percentage
}

// Compare orders two ranks: -1 when a is below b, 0 when equal, 1 when above.
// Unknown ranks compare as the lowest rank.
func Compare(a, b Rank) int {
	va := order[Normalize(a)]
	vb := order[Normalize(b)]
	switch {
	case va < vb:
		return -1
	case va > vb:
		return 1
	default:
		return 0
	}
}

// Above lists ranks strictly above r, highest first. Used by the rank
// service to probe qualification top-down.
func Above(r Rank) []Rank {
	cur := order[Normalize(r)]
	out := make([]Rank, 0, len(Ordered))
	for i := len(Ordered) - 1; i >= 0; i-- {
		if order[Ordered[i]] > cur {
			out = append(out, Ordered[i])
		}
	}
	return out
}
