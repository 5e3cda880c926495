package style

import (
	"testing"
	"time"

	"github.com/chessmate-desktop/enginecore/internal/domain"
)

func summaryWithRating(rating int) domain.GameHistorySummary {
	return domain.GameHistorySummary{
		PlayerID:          "tester",
		TotalGames:        30,
		AverageRating:     rating,
		WinRate:           50,
		AverageGameLength: 40,
	}
}

func TestDeriveRejectsEmptyHistory(t *testing.T) {
	_, err := Derive(domain.GameHistorySummary{PlayerID: "ghost"})
	if err == nil {
		t.Fatal("expected an error for a zero-game summary")
	}
	if !domain.IsKind(err, domain.KindInsufficientData) {
		t.Fatalf("unexpected error kind %q", domain.KindOf(err))
	}
}

func TestDeriveSkillMonotonicInRating(t *testing.T) {
	prev := -1
	for rating := 800; rating <= 2700; rating += 50 {
		p, err := Derive(summaryWithRating(rating))
		if err != nil {
			t.Fatalf("rating %d: %v", rating, err)
		}
		if p.SkillLevel < prev {
			t.Fatalf("skill dropped from %d to %d at rating %d", prev, p.SkillLevel, rating)
		}
		if p.SkillLevel < 0 || p.SkillLevel > MaxSkill {
			t.Fatalf("skill %d out of range at rating %d", p.SkillLevel, rating)
		}
		prev = p.SkillLevel
	}
}

func TestDeriveRatingClamps(t *testing.T) {
	low, err := Derive(summaryWithRating(600))
	if err != nil {
		t.Fatal(err)
	}
	if low.SkillLevel != 0 {
		t.Fatalf("rating 600: skill = %d, want 0", low.SkillLevel)
	}
	high, err := Derive(summaryWithRating(3000))
	if err != nil {
		t.Fatal(err)
	}
	if high.SkillLevel != MaxSkill {
		t.Fatalf("rating 3000: skill = %d, want %d", high.SkillLevel, MaxSkill)
	}
}

func TestDeriveWinRateNudge(t *testing.T) {
	base, err := Derive(summaryWithRating(1500))
	if err != nil {
		t.Fatal(err)
	}

	over := summaryWithRating(1500)
	over.WinRate = 72
	strong, err := Derive(over)
	if err != nil {
		t.Fatal(err)
	}
	if strong.SkillLevel != base.SkillLevel+1 {
		t.Fatalf("overperformer skill = %d, want %d", strong.SkillLevel, base.SkillLevel+1)
	}

	under := summaryWithRating(1500)
	under.WinRate = 25
	weak, err := Derive(under)
	if err != nil {
		t.Fatal(err)
	}
	if weak.SkillLevel != base.SkillLevel-1 {
		t.Fatalf("underperformer skill = %d, want %d", weak.SkillLevel, base.SkillLevel-1)
	}
}

func TestDeriveLineCountFollowsStyleScores(t *testing.T) {
	positional, err := Derive(summaryWithRating(1500))
	if err != nil {
		t.Fatal(err)
	}
	if positional.MultiLineCount != positionalLines {
		t.Fatalf("positional profile lines = %d, want %d", positional.MultiLineCount, positionalLines)
	}

	sharp := summaryWithRating(1500)
	sharp.TacticalScore = 80
	tactical, err := Derive(sharp)
	if err != nil {
		t.Fatal(err)
	}
	if tactical.MultiLineCount != 1 {
		t.Fatalf("tactical profile lines = %d, want 1", tactical.MultiLineCount)
	}
}

func TestDeriveDepthAndThinkTimeBounds(t *testing.T) {
	for rating := 800; rating <= 2700; rating += 100 {
		p, err := Derive(summaryWithRating(rating))
		if err != nil {
			t.Fatal(err)
		}
		if p.DepthMin < 2 || p.DepthMax > 20 || p.DepthMin > p.DepthMax {
			t.Fatalf("rating %d: depth range %d-%d", rating, p.DepthMin, p.DepthMax)
		}
		if p.ThinkTimeMin < thinkMinFloor || p.ThinkTimeMin > thinkMinCeiling {
			t.Fatalf("rating %d: think min %v", rating, p.ThinkTimeMin)
		}
		if p.ThinkTimeMax < thinkMaxFloor || p.ThinkTimeMax > thinkMaxCeiling {
			t.Fatalf("rating %d: think max %v", rating, p.ThinkTimeMax)
		}
	}
}

func TestErrorProbabilityBounds(t *testing.T) {
	prev := 1.0
	for skill := 0; skill <= MaxSkill; skill++ {
		p := errorProbability(skill)
		if p < minErrorProbability || p > maxErrorProbability {
			t.Fatalf("skill %d: probability %v out of bounds", skill, p)
		}
		if p > prev {
			t.Fatalf("skill %d: probability %v increased from %v", skill, p, prev)
		}
		prev = p
	}
	if errorProbability(0) != maxErrorProbability {
		t.Fatalf("skill 0 probability = %v, want %v", errorProbability(0), maxErrorProbability)
	}
}

func TestEngineOptionsMapping(t *testing.T) {
	p := Profile{
		PlayerID:       "tester",
		SkillLevel:     7,
		TargetRating:   1500,
		ThinkTimeMin:   700 * time.Millisecond,
		MultiLineCount: 3,
	}
	cfg := p.EngineOptions("/opt/engines/stockfish")
	if cfg.BinaryPath != "/opt/engines/stockfish" {
		t.Fatalf("binary = %q", cfg.BinaryPath)
	}
	if cfg.SkillLevel != 7 || cfg.MultiPV != 3 {
		t.Fatalf("skill/multipv = %d/%d", cfg.SkillLevel, cfg.MultiPV)
	}
	if cfg.MoveTime != 700*time.Millisecond {
		t.Fatalf("move time = %v", cfg.MoveTime)
	}
	if !cfg.LimitStrength || cfg.Elo != 1500 {
		t.Fatalf("strength limit = %v/%d", cfg.LimitStrength, cfg.Elo)
	}

	unrated := p
	unrated.TargetRating = 0
	if unratedCfg := unrated.EngineOptions("x"); unratedCfg.LimitStrength {
		t.Fatal("unrated profile must not limit strength")
	}
}
