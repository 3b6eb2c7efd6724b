package schema

import "slices"

// FallbackSummary is the summary text of the substitute result.
const FallbackSummary = "Analysis failed. Please try again or check the document format."

const fallbackRisk = "Analysis error occurred"

// Fallback returns the result substituted when an analysis cannot be
// produced. Each call returns independent slices.
func Fallback() AnalysisResult {
	return AnalysisResult{
		Summary:          FallbackSummary,
		Sentiment:        SentimentNeutral,
		ComplexityLabel:  ComplexityBeginner,
		InvestorTakeaway: "N/A",
		RiskSignals:      []string{fallbackRisk},
		DocumentType:     "Unknown",
	}.Normalize()
}

// IsFallback reports whether r is the substitute produced by Fallback.
func IsFallback(r AnalysisResult) bool {
	return r.Summary == FallbackSummary &&
		r.DocumentType == "Unknown" &&
		slices.Equal(r.RiskSignals, []string{fallbackRisk})
}
