package style

import (
	"errors"
	"math/rand"
	"time"

	"github.com/chessmate-desktop/enginecore/internal/uci"
)

// Pick applies the profile's error-injection policy to an engine's
// candidate list (ordered best to worst). With probability
// ErrorProbability it selects uniformly among the non-best candidates;
// with a single candidate no error is ever injected. The second return
// reports whether the result was perturbed.
func Pick(p Profile, candidates []uci.Candidate, r *rand.Rand) (uci.Candidate, bool, error) {
	if len(candidates) == 0 {
		return uci.Candidate{}, false, errors.New("no candidates to choose from")
	}
	if len(candidates) == 1 {
		return candidates[0], false, nil
	}
	if r.Float64() < p.ErrorProbability {
		idx := 1 + r.Intn(len(candidates)-1)
		return candidates[idx], true, nil
	}
	return candidates[0], false, nil
}

// ThinkTime samples a deliberation delay uniformly from the profile's
// think-time range.
func ThinkTime(p Profile, r *rand.Rand) time.Duration {
	span := p.ThinkTimeMax - p.ThinkTimeMin
	if span <= 0 {
		return p.ThinkTimeMin
	}
	return p.ThinkTimeMin + time.Duration(r.Int63n(int64(span)+1))
}
