package hybridquery

import (
	"sort"
)

// relationalBaseScore 精确匹配给满分，置信度最高
const relationalBaseScore = 1.0

// Merge 将异构候选归并为单一排序结果。
// 三路分值先映射到同一 [0,1] 区间；指向同一实体的候选按稳定标识去重，
// 保留最高分并合并来源标签；同分按来源确定性排序，再按发现顺序稳定排序。
func Merge(candidates []Candidate, degraded []Origin) *RankedResult {
	type slot struct {
		ranked RankedCandidate
		seq    int
	}

	slots := make(map[string]*slot, len(candidates))
	order := make([]string, 0, len(candidates))

	for seq, c := range candidates {
		if c.Record == nil {
			continue
		}
		score := normalizeScore(c)
		id := c.Record.Identity()

		existing, ok := slots[id]
		if !ok {
			slots[id] = &slot{
				ranked: RankedCandidate{
					Record:  c.Record,
					Score:   score,
					Origins: []Origin{c.Origin},
				},
				seq: seq,
			}
			order = append(order, id)
			continue
		}

		if score > existing.ranked.Score {
			existing.ranked.Score = score
			existing.ranked.Record = c.Record
		}
		existing.ranked.Origins = appendOrigin(existing.ranked.Origins, c.Origin)
		if seq < existing.seq {
			existing.seq = seq
		}
	}

	merged := make([]*slot, 0, len(order))
	for _, id := range order {
		merged = append(merged, slots[id])
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.ranked.Score != b.ranked.Score {
			return a.ranked.Score > b.ranked.Score
		}
		ra, rb := bestOriginRank(a.ranked.Origins), bestOriginRank(b.ranked.Origins)
		if ra != rb {
			return ra < rb
		}
		return a.seq < b.seq
	})

	result := &RankedResult{
		Candidates: make([]RankedCandidate, 0, len(merged)),
		Degraded:   degraded,
	}
	for _, s := range merged {
		result.Candidates = append(result.Candidates, s.ranked)
	}
	return result
}

// normalizeScore 把单路原始分映射到统一 [0,1] 区间。
// 关系命中固定满分；向量命中用余弦相似度；图命中由仓储按
// 关系强度/路径长度预先算好，这里只做收敛。
func normalizeScore(c Candidate) float64 {
	var score float64
	switch c.Origin {
	case OriginRelational:
		score = relationalBaseScore
	default:
		score = c.RawScore
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func appendOrigin(origins []Origin, o Origin) []Origin {
	for _, existing := range origins {
		if existing == o {
			return origins
		}
	}
	return append(origins, o)
}

func bestOriginRank(origins []Origin) int {
	best := len(originRank)
	for _, o := range origins {
		if r, ok := originRank[o]; ok && r < best {
			best = r
		}
	}
	return best
}
