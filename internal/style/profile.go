package style

import (
	"math"
	"time"

	"github.com/chessmate-desktop/enginecore/internal/domain"
	"github.com/chessmate-desktop/enginecore/internal/uci"
)

// MaxSkill is the top of the engine's strength-limiting scale.
const MaxSkill = 20

const (
	minErrorProbability = 0.02
	maxErrorProbability = 0.25

	// Tactical players get a single line; positional profiles request
	// extra lines so the selector can sample alternatives.
	tacticalThreshold = 65.0
	positionalLines   = 3

	thinkMinFloor   = 100 * time.Millisecond
	thinkMinCeiling = 2 * time.Second
	thinkMaxFloor   = 500 * time.Millisecond
	thinkMaxCeiling = 3 * time.Second
)

// Profile is the derived engine configuration and move-selection policy
// approximating one historical player. Immutable once derived.
type Profile struct {
	PlayerID         string        `json:"player_id"`
	SkillLevel       int           `json:"skill_level"`
	TargetRating     int           `json:"target_rating,omitempty"`
	DepthMin         int           `json:"depth_min"`
	DepthMax         int           `json:"depth_max"`
	ThinkTimeMin     time.Duration `json:"think_time_min"`
	ThinkTimeMax     time.Duration `json:"think_time_max"`
	ErrorProbability float64       `json:"error_probability"`
	MultiLineCount   int           `json:"multi_line_count"`
}

// Rating bands map average rating onto contiguous sub-ranges of the skill
// scale; the exact rating interpolates linearly inside its band. The band
// edges follow the original avatar tables and are policy, not contract.
var ratingBands = []struct {
	lo, hi           int
	skillLo, skillHi int
}{
	{900, 1200, 0, 2},
	{1200, 1400, 3, 5},
	{1400, 1600, 6, 8},
	{1600, 1800, 9, 11},
	{1800, 2000, 12, 14},
	{2000, 2200, 15, 17},
	{2200, 2600, 18, 20},
}

// Derive converts a player's aggregate history into a play profile.
// A summary with zero games carries no signal and is rejected.
func Derive(summary domain.GameHistorySummary) (Profile, error) {
	if summary.TotalGames <= 0 {
		return Profile{}, domain.E(domain.KindInsufficientData,
			"cannot derive a profile from an empty game history")
	}

	skill := skillFromRating(summary.AverageRating)

	// Strong over- or under-performers get nudged one level.
	if summary.WinRate > 60 && skill < MaxSkill {
		skill++
	} else if summary.WinRate < 40 && summary.WinRate > 0 && skill > 0 {
		skill--
	}

	depthMax := 4 + skill*16/MaxSkill
	depthMin := depthMax - 2
	if depthMin < 2 {
		depthMin = 2
	}

	lines := positionalLines
	if summary.TacticalScore > tacticalThreshold || summary.AggressiveScore > tacticalThreshold {
		lines = 1
	}

	return Profile{
		PlayerID:         summary.PlayerID,
		SkillLevel:       skill,
		TargetRating:     uci.ClampElo(summary.AverageRating),
		DepthMin:         depthMin,
		DepthMax:         depthMax,
		ThinkTimeMin:     lerpDuration(thinkMinFloor, thinkMinCeiling, skill),
		ThinkTimeMax:     lerpDuration(thinkMaxFloor, thinkMaxCeiling, skill),
		ErrorProbability: errorProbability(skill),
		MultiLineCount:   lines,
	}, nil
}

// EngineOptions translates the profile into the session configuration
// for the given engine binary.
func (p Profile) EngineOptions(binaryPath string) uci.EngineConfig {
	cfg := uci.EngineConfig{
		BinaryPath: binaryPath,
		SkillLevel: p.SkillLevel,
		MultiPV:    p.MultiLineCount,
		MoveTime:   p.ThinkTimeMin,
	}
	if p.TargetRating > 0 {
		cfg.LimitStrength = true
		cfg.Elo = p.TargetRating
	}
	return cfg
}

func skillFromRating(rating int) int {
	first := ratingBands[0]
	if rating <= first.lo {
		return first.skillLo
	}
	last := ratingBands[len(ratingBands)-1]
	if rating >= last.hi {
		return last.skillHi
	}
	for _, band := range ratingBands {
		if rating >= band.hi {
			continue
		}
		frac := float64(rating-band.lo) / float64(band.hi-band.lo)
		return band.skillLo + int(math.Round(frac*float64(band.skillHi-band.skillLo)))
	}
	return last.skillHi
}

// errorProbability decreases monotonically with skill: the weakest
// profiles err roughly one move in four, the strongest one in fifty.
func errorProbability(skill int) float64 {
	p := maxErrorProbability - 0.23*float64(skill)/float64(MaxSkill)
	if p < minErrorProbability {
		return minErrorProbability
	}
	if p > maxErrorProbability {
		return maxErrorProbability
	}
	return p
}

func lerpDuration(lo, hi time.Duration, skill int) time.Duration {
	return lo + time.Duration(float64(hi-lo)*float64(skill)/float64(MaxSkill))
}
