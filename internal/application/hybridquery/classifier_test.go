package hybridquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Strategy
	}{
		{"exact count", "How many call records are there?", StrategyStructured},
		{"list all", "List all contacts on the device", StrategyStructured},
		{"phone number", "Show messages from +14155550123", StrategyStructured},
		{"file name", "Find the file ledger.xlsx", StrategyStructured},
		{"conceptual", "Anything suspicious in the conversations?", StrategySemantic},
		{"descriptive", "Messages about the meeting at the docks", StrategySemantic},
		{"relationship", "What is the relationship between the suspects?", StrategyHybrid},
		{"network", "Map the communication network of this device", StrategyHybrid},
		{"exact plus concept", "How many suspicious transfers happened?", StrategyHybrid},
		{"ambiguous", "Tell me what happened on Friday", StrategyHybrid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.query))
		})
	}
}

func TestClassifyIdempotent(t *testing.T) {
	queries := []string{
		"How many call records are there?",
		"Anything suspicious?",
		"Who is connected to +111?",
		"",
	}
	for _, q := range queries {
		first := Classify(q)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, Classify(q), "query %q", q)
		}
	}
}

func TestClassifyNormalizesCaseAndPunctuation(t *testing.T) {
	assert.Equal(t, Classify("how many calls"), Classify("HOW MANY CALLS???"))
	assert.Equal(t, Classify("anything suspicious"), Classify("Anything... SUSPICIOUS!"))
}

func TestStartEntity(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"plus prefixed", "Who talked to +1415 555-0123?", "+14155550123"},
		{"plain digits", "calls with 5550123456", "5550123456"},
		{"no entity", "anything suspicious here", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StartEntity(tt.query))
		})
	}
}

func TestCacheKeyStableUnderWhitespaceAndCase(t *testing.T) {
	a := cacheKey("case-1", StrategyHybrid, "Who called  +111?")
	b := cacheKey("case-1", StrategyHybrid, "who called +111?")
	assert.Equal(t, a, b)

	c := cacheKey("case-2", StrategyHybrid, "Who called +111?")
	assert.NotEqual(t, a, c)
}
