package hybridquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ufdr-insight-api/internal/domain/evidence"
)

func chatCandidate(origin Origin, score float64, from, message string) Candidate {
	r := evidence.NewRecord(evidence.KindChat)
	r.Set("from", from)
	r.Set("message", message)
	return Candidate{Record: r, Origin: origin, RawScore: score}
}

func TestMergeScoresRelationalHighest(t *testing.T) {
	candidates := []Candidate{
		chatCandidate(OriginVector, 0.92, "+111", "wire the money"),
		chatCandidate(OriginRelational, 0, "+222", "meet at noon"),
		chatCandidate(OriginGraph, 0.40, "+333", "call me back"),
	}

	result := Merge(candidates, nil)
	require.Len(t, result.Candidates, 3)

	assert.Equal(t, []Origin{OriginRelational}, result.Candidates[0].Origins)
	assert.Equal(t, 1.0, result.Candidates[0].Score)
	assert.Equal(t, []Origin{OriginVector}, result.Candidates[1].Origins)
	assert.Equal(t, []Origin{OriginGraph}, result.Candidates[2].Origins)
}

func TestMergeDeduplicatesAcrossOrigins(t *testing.T) {
	candidates := []Candidate{
		chatCandidate(OriginVector, 0.80, "+111", "wire the money"),
		chatCandidate(OriginRelational, 0, "+111", "wire the money"),
	}

	result := Merge(candidates, nil)
	require.Len(t, result.Candidates, 1)

	merged := result.Candidates[0]
	assert.Equal(t, 1.0, merged.Score)
	assert.ElementsMatch(t, []Origin{OriginVector, OriginRelational}, merged.Origins)
}

func TestMergeTieBreakPrefersCertainProvenance(t *testing.T) {
	candidates := []Candidate{
		chatCandidate(OriginGraph, 1.0, "+333", "graph hit"),
		chatCandidate(OriginVector, 1.0, "+222", "vector hit"),
		chatCandidate(OriginRelational, 0, "+111", "relational hit"),
	}

	result := Merge(candidates, nil)
	require.Len(t, result.Candidates, 3)
	assert.Equal(t, []Origin{OriginRelational}, result.Candidates[0].Origins)
	assert.Equal(t, []Origin{OriginVector}, result.Candidates[1].Origins)
	assert.Equal(t, []Origin{OriginGraph}, result.Candidates[2].Origins)
}

func TestMergeDeterministicForIdenticalInput(t *testing.T) {
	candidates := []Candidate{
		chatCandidate(OriginVector, 0.75, "+111", "first"),
		chatCandidate(OriginVector, 0.75, "+222", "second"),
		chatCandidate(OriginVector, 0.75, "+333", "third"),
		chatCandidate(OriginGraph, 0.60, "+444", "fourth"),
	}

	first := Merge(candidates, nil)
	for i := 0; i < 10; i++ {
		again := Merge(candidates, nil)
		require.Len(t, again.Candidates, len(first.Candidates))
		for j := range first.Candidates {
			assert.Equal(t, first.Candidates[j].Record.Identity(), again.Candidates[j].Record.Identity())
			assert.Equal(t, first.Candidates[j].Score, again.Candidates[j].Score)
		}
	}

	// 同分向量命中维持发现顺序
	assert.Equal(t, "first", first.Candidates[0].Record.Chat.Message)
	assert.Equal(t, "second", first.Candidates[1].Record.Chat.Message)
	assert.Equal(t, "third", first.Candidates[2].Record.Chat.Message)
}

func TestMergeClampsScoresToUnitInterval(t *testing.T) {
	candidates := []Candidate{
		chatCandidate(OriginVector, 1.7, "+111", "overshoot"),
		chatCandidate(OriginGraph, -0.3, "+222", "undershoot"),
	}

	result := Merge(candidates, nil)
	require.Len(t, result.Candidates, 2)
	assert.Equal(t, 1.0, result.Candidates[0].Score)
	assert.Equal(t, 0.0, result.Candidates[1].Score)
}

func TestMergeCarriesDegradedOrigins(t *testing.T) {
	result := Merge(nil, []Origin{OriginGraph})
	assert.Empty(t, result.Candidates)
	assert.Equal(t, []Origin{OriginGraph}, result.Degraded)
}
