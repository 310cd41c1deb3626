// Package determinism verifies that the pipeline is reproducible: two
// sequential runs over the same corpus and configuration must hash to the
// same canonical output.
package determinism

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caldarium/qa-bench/internal/model"
)

// RunFunc produces one complete report. Verify calls it twice, strictly
// sequentially.
type RunFunc func() (*model.Report, error)

// Canonicalize strips the wall-clock and per-run identity fields so that
// two runs over identical input produce an identical structure. Content
// hashes and the config digest stay in: they are input identity, not run
// identity.
func Canonicalize(rep *model.Report) *model.Report {
	out := *rep
	out.Run.RunID = ""
	out.Run.StartedAt = time.Time{}

	out.Types = make(map[string]*model.TypeSection, len(rep.Types))
	for name, sec := range rep.Types {
		s := *sec
		s.Determinism = nil
		out.Types[name] = &s
	}
	return &out
}

// Hash returns the SHA-256 hex digest of the canonicalized report. The JSON
// encoder writes struct fields in declaration order and map keys sorted, so
// equal structures always produce equal digests.
func Hash(rep *model.Report) (string, error) {
	data, err := json.Marshal(Canonicalize(rep))
	if err != nil {
		return "", eris.Wrap(err, "determinism: marshal report")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Verify runs the pipeline twice and compares canonical hashes. A
// divergence is a finding, not a failure: the check is returned either way
// and the structural diff is logged for diagnosis.
func Verify(run RunFunc) (model.DeterminismCheck, *model.Report, error) {
	first, err := run()
	if err != nil {
		return model.DeterminismCheck{}, nil, eris.Wrap(err, "determinism: first run")
	}
	second, err := run()
	if err != nil {
		return model.DeterminismCheck{}, nil, eris.Wrap(err, "determinism: second run")
	}

	hash1, err := Hash(first)
	if err != nil {
		return model.DeterminismCheck{}, nil, err
	}
	hash2, err := Hash(second)
	if err != nil {
		return model.DeterminismCheck{}, nil, err
	}

	check := model.DeterminismCheck{
		RunID1:        first.Run.RunID,
		RunID2:        second.Run.RunID,
		Hash1:         hash1,
		Hash2:         hash2,
		Deterministic: hash1 == hash2,
	}
	if !check.Deterministic {
		zap.L().Warn("determinism: runs diverged",
			zap.String("hash_1", hash1),
			zap.String("hash_2", hash2),
			zap.String("diff", cmp.Diff(Canonicalize(first), Canonicalize(second))),
		)
	}
	return check, first, nil
}
