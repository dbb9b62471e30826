// Package report 生成案件级分析报告：证据规模、风险评估与叙述性摘要
package report

import (
	"sort"
	"strings"

	"ufdr-insight-api/internal/domain/evidence"
)

// RiskLevel 案件风险等级
type RiskLevel string

// 风险等级从低到高
const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// riskKeywords 风险关键词及权重，命中聊天内容时计入风险分
var riskKeywords = map[string]int{
	"drug":     8,
	"cocaine":  10,
	"heroin":   10,
	"weapon":   9,
	"gun":      8,
	"kill":     10,
	"threat":   7,
	"launder":  8,
	"bitcoin":  5,
	"crypto":   4,
	"wire":     4,
	"cash":     3,
	"delete":   4,
	"burner":   6,
	"police":   3,
	"meet":     2,
	"package":  3,
	"shipment": 4,
	"deal":     3,
}

// 风险分到等级的阈值
const (
	mediumThreshold   = 5
	highThreshold     = 15
	criticalThreshold = 30
)

// 结构性风险信号权重
const (
	zeroDurationCallWeight = 2
	multiAppWeight         = 4
	multiAppFloor          = 3
)

// Assessment 风险评估结果
type Assessment struct {
	Level      RiskLevel
	Score      int
	Indicators []string
	Flagged    []*evidence.Record
}

// Assess 对一组记录做风险评估：关键词命中加结构性信号
// （零时长通话、多应用通信）。纯函数，相同输入恒得相同评估。
func Assess(records []*evidence.Record) *Assessment {
	a := &Assessment{Level: RiskLow}
	seen := make(map[string]bool)
	indicators := make(map[string]bool)
	apps := make(map[string]bool)

	flag := func(rec *evidence.Record) {
		id := rec.Identity()
		if !seen[id] {
			seen[id] = true
			a.Flagged = append(a.Flagged, rec)
		}
	}

	for _, rec := range records {
		if rec == nil {
			continue
		}

		switch rec.Kind {
		case evidence.KindChat:
			if rec.Chat != nil && rec.Chat.App != "" {
				apps[strings.ToLower(rec.Chat.App)] = true
			}
		case evidence.KindCall:
			if rec.Call != nil && isZeroDuration(rec.Call.Duration) {
				a.Score += zeroDurationCallWeight
				indicators["zero-duration calls"] = true
				flag(rec)
			}
		}

		text := recordText(rec)
		if text == "" {
			continue
		}
		matched := false
		for keyword, weight := range riskKeywords {
			if strings.Contains(text, keyword) {
				indicators[keyword] = true
				a.Score += weight
				matched = true
			}
		}
		if matched {
			flag(rec)
		}
	}

	if len(apps) >= multiAppFloor {
		a.Score += multiAppWeight
		indicators["multiple messaging apps"] = true
	}

	for indicator := range indicators {
		a.Indicators = append(a.Indicators, indicator)
	}
	sort.Strings(a.Indicators)

	switch {
	case a.Score >= criticalThreshold:
		a.Level = RiskCritical
	case a.Score >= highThreshold:
		a.Level = RiskHigh
	case a.Score >= mediumThreshold:
		a.Level = RiskMedium
	}
	return a
}

// isZeroDuration 判定通话时长是否为零，容忍 "0"、"0s"、"00:00:00" 等写法
func isZeroDuration(duration string) bool {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case ':', '.', 's', 'm', 'h', ' ':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(duration)))
	if stripped == "" {
		return false
	}
	return strings.Trim(stripped, "0") == ""
}

// recordText 拼出参与风险匹配的记录文本
func recordText(rec *evidence.Record) string {
	var parts []string
	for _, f := range rec.Fields() {
		parts = append(parts, f.Value)
	}
	return strings.ToLower(strings.Join(parts, " "))
}
