package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"ufdr-insight-api/internal/application/hybridquery"
	"ufdr-insight-api/internal/config"
	"ufdr-insight-api/internal/protocol"
	"ufdr-insight-api/pkg/metrics"
)

// narrationContextLimit 提示词里最多携带的证据条数
const narrationContextLimit = 20

// systemPrompt 要求模型沿用分节/编号记录文法，解码器对不合规输出另有容错
const systemPrompt = `You are a forensic analyst assistant. Answer the investigator's question
based strictly on the evidence provided. Start with a short plain-text summary, then list the
supporting evidence grouped under section headers chosen from: CHAT RECORDS, CALL RECORDS,
MEDIA FILES, CONTACTS, SEARCH RESULTS, ANALYSIS RESULTS, DEVICE INFORMATION.
Within a section, number each item starting at 1 and write its fields as "Label: value" pairs
joined by " | ". Do not invent evidence that is not in the context.`

// Narrator 基于排序结果生成应答叙述
type Narrator struct {
	factory *EinoFactory
	cfg     *config.LLMConfig
}

// NewNarrator 创建叙述器
func NewNarrator(factory *EinoFactory, cfg *config.LLMConfig) *Narrator {
	return &Narrator{
		factory: factory,
		cfg:     cfg,
	}
}

// Narrate 调用 LLM 生成叙述。证据上下文用协议文法编码，
// 模型照着同一文法作答时客户端可以无损还原。
func (n *Narrator) Narrate(ctx context.Context, question string, result *hybridquery.RankedResult) (string, error) {
	chatModel, err := n.factory.Default(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get chat model: %w", err)
	}

	provider := n.cfg.DefaultProvider
	modelName := n.cfg.Providers[provider].Model

	start := time.Now()
	resp, err := chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(n.buildPrompt(question, result)),
	})
	metrics.LLMCallDuration.WithLabelValues(provider, modelName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(provider, modelName, "error").Inc()
		return "", fmt.Errorf("narration call failed: %w", err)
	}
	metrics.LLMCallTotal.WithLabelValues(provider, modelName, "ok").Inc()

	return strings.TrimSpace(resp.Content), nil
}

// buildPrompt 组装用户提示词：问题加协议编码的证据上下文
func (n *Narrator) buildPrompt(question string, result *hybridquery.RankedResult) string {
	records := result.Records()
	if len(records) > narrationContextLimit {
		records = records[:narrationContextLimit]
	}
	context := protocol.Encode(&protocol.Document{Records: records})

	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nEvidence context:\n")
	if strings.TrimSpace(context) == "" {
		b.WriteString("(no matching evidence found)\n")
	} else {
		b.WriteString(context)
	}
	if len(result.Degraded) > 0 {
		names := make([]string, 0, len(result.Degraded))
		for _, o := range result.Degraded {
			names = append(names, string(o))
		}
		b.WriteString("\nUnavailable sources during retrieval: ")
		b.WriteString(strings.Join(names, ", "))
		b.WriteString("\n")
	}
	return b.String()
}
