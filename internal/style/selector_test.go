package style

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/chessmate-desktop/enginecore/internal/uci"
)

func TestPickEmptyCandidates(t *testing.T) {
	_, _, err := Pick(Profile{ErrorProbability: 1}, nil, rand.New(rand.NewSource(1)))
	if err == nil {
		t.Fatal("expected an error for an empty candidate list")
	}
}

func TestPickSingleCandidateNeverPerturbed(t *testing.T) {
	p := Profile{ErrorProbability: 1}
	only := []uci.Candidate{{Move: "e2e4"}}
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		chosen, perturbed, err := Pick(p, only, r)
		if err != nil {
			t.Fatal(err)
		}
		if perturbed || chosen.Move != "e2e4" {
			t.Fatalf("forced move perturbed on draw %d", i)
		}
	}
}

func TestPickErrorRateMatchesProfile(t *testing.T) {
	p := Profile{ErrorProbability: 0.2}
	candidates := []uci.Candidate{
		{Move: "g1f3", EvalCP: 35},
		{Move: "e2e4", EvalCP: 30},
		{Move: "d2d4", EvalCP: 28},
	}
	r := rand.New(rand.NewSource(42))

	const draws = 20000
	perturbedCount := 0
	for i := 0; i < draws; i++ {
		chosen, perturbed, err := Pick(p, candidates, r)
		if err != nil {
			t.Fatal(err)
		}
		if perturbed {
			perturbedCount++
			if chosen.Move == "g1f3" {
				t.Fatal("perturbed pick returned the best candidate")
			}
		} else if chosen.Move != "g1f3" {
			t.Fatalf("unperturbed pick returned %q", chosen.Move)
		}
	}

	got := float64(perturbedCount) / draws
	if math.Abs(got-p.ErrorProbability) > 0.02 {
		t.Fatalf("perturbation rate %v, want about %v", got, p.ErrorProbability)
	}
}

func TestThinkTimeWithinRange(t *testing.T) {
	p := Profile{
		ThinkTimeMin: 200 * time.Millisecond,
		ThinkTimeMax: 900 * time.Millisecond,
	}
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 1000; i++ {
		d := ThinkTime(p, r)
		if d < p.ThinkTimeMin || d > p.ThinkTimeMax {
			t.Fatalf("sample %v outside [%v, %v]", d, p.ThinkTimeMin, p.ThinkTimeMax)
		}
	}
}

func TestThinkTimeDegenerateRange(t *testing.T) {
	p := Profile{ThinkTimeMin: 300 * time.Millisecond, ThinkTimeMax: 300 * time.Millisecond}
	if d := ThinkTime(p, rand.New(rand.NewSource(1))); d != p.ThinkTimeMin {
		t.Fatalf("degenerate range sampled %v", d)
	}
}
