// Package schema defines the shape of a document analysis and the history
// records built from it.
package schema

// Sentiment is the overall market tone of a document.
type Sentiment string

const (
	SentimentBullish Sentiment = "BULLISH"
	SentimentBearish Sentiment = "BEARISH"
	SentimentNeutral Sentiment = "NEUTRAL"
)

// Valid reports whether s is one of the declared sentiments.
func (s Sentiment) Valid() bool {
	return contains(sentimentValues, string(s))
}

// ComplexityLabel grades how much background a reader needs.
type ComplexityLabel string

const (
	ComplexityBeginner     ComplexityLabel = "Beginner"
	ComplexityIntermediate ComplexityLabel = "Intermediate"
	ComplexityAdvanced     ComplexityLabel = "Advanced"
)

func (c ComplexityLabel) Valid() bool {
	return contains(complexityValues, string(c))
}

// Trend is the direction of an extracted metric.
type Trend string

const (
	TrendUp      Trend = "UP"
	TrendDown    Trend = "DOWN"
	TrendFlat    Trend = "FLAT"
	TrendUnknown Trend = "UNKNOWN"
)

func (t Trend) Valid() bool {
	return contains(trendValues, string(t))
}

// EntityType classifies a named entity.
type EntityType string

const (
	EntityBlockchain EntityType = "BLOCKCHAIN"
	EntityProtocol   EntityType = "PROTOCOL"
	EntityToken      EntityType = "TOKEN"
	EntityOrg        EntityType = "ORG"
	EntityOther      EntityType = "OTHER"
)

func (e EntityType) Valid() bool {
	return contains(entityTypeValues, string(e))
}

var (
	sentimentValues  = []string{string(SentimentBullish), string(SentimentBearish), string(SentimentNeutral)}
	complexityValues = []string{string(ComplexityBeginner), string(ComplexityIntermediate), string(ComplexityAdvanced)}
	trendValues      = []string{string(TrendUp), string(TrendDown), string(TrendFlat), string(TrendUnknown)}
	entityTypeValues = []string{string(EntityBlockchain), string(EntityProtocol), string(EntityToken), string(EntityOrg), string(EntityOther)}
)

type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Trend Trend  `json:"trend"`
}

type TimelineEvent struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

type Entity struct {
	Name string     `json:"name"`
	Type EntityType `json:"type"`
}

// Relationship is a directed edge of the concept graph.
type Relationship struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

// AnalysisResult is the structured output of analyzing one document.
// Score fields are passed through as returned by the model.
type AnalysisResult struct {
	Summary             string          `json:"summary"`
	KeyFindings         []string        `json:"keyFindings"`
	Sentiment           Sentiment       `json:"sentiment"`
	SentimentConfidence float64         `json:"sentimentConfidence"`
	ComplexityScore     float64         `json:"complexityScore"`
	ComplexityLabel     ComplexityLabel `json:"complexityLabel"`

	Metrics     []Metric        `json:"metrics"`
	Timeline    []TimelineEvent `json:"timeline"`
	Entities    []Entity        `json:"entities"`
	Comparisons []string        `json:"comparisons"`

	Relationships []Relationship `json:"relationships"`
	RiskSignals   []string       `json:"riskSignals"`

	InvestorTakeaway  string   `json:"investorTakeaway"`
	RelatedMetrics    []string `json:"relatedMetrics"`
	QuestionsAnswered []string `json:"questionsAnswered"`
	KnowledgeGaps     []string `json:"knowledgeGaps"`

	CredibilityScore float64 `json:"credibilityScore"`
	DocumentType     string  `json:"documentType"`
}

// HistoryItem is a saved analysis. The result fields are flattened into the
// same JSON object as the identity fields.
type HistoryItem struct {
	AnalysisResult
	ID        string `json:"id"`
	FileName  string `json:"fileName"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
}

// Normalize replaces nil sequences with empty ones so results always encode
// every sequence as [] rather than null.
func (r AnalysisResult) Normalize() AnalysisResult {
	r.KeyFindings = nonNil(r.KeyFindings)
	r.Comparisons = nonNil(r.Comparisons)
	r.RiskSignals = nonNil(r.RiskSignals)
	r.RelatedMetrics = nonNil(r.RelatedMetrics)
	r.QuestionsAnswered = nonNil(r.QuestionsAnswered)
	r.KnowledgeGaps = nonNil(r.KnowledgeGaps)
	if r.Metrics == nil {
		r.Metrics = []Metric{}
	}
	if r.Timeline == nil {
		r.Timeline = []TimelineEvent{}
	}
	if r.Entities == nil {
		r.Entities = []Entity{}
	}
	if r.Relationships == nil {
		r.Relationships = []Relationship{}
	}
	return r
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
