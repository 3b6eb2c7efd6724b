package analysis

import "strings"

// Audience frames the extraction instructions for a reader role. It never
// changes the shape of the result.
type Audience string

const (
	AudienceInvestor   Audience = "INVESTOR"
	AudienceDeveloper  Audience = "DEVELOPER"
	AudienceResearcher Audience = "RESEARCHER"
	AudienceTrader     Audience = "TRADER"
)

// Audiences lists the supported audiences.
var Audiences = []Audience{AudienceInvestor, AudienceDeveloper, AudienceResearcher, AudienceTrader}

var audienceFocus = map[Audience]string{
	AudienceInvestor:   "ROI, Risk, and Strategic Value",
	AudienceDeveloper:  "Architecture, Implementation Detail, and Technical Risk",
	AudienceResearcher: "Methodology, Evidence Quality, and Open Questions",
	AudienceTrader:     "Catalysts, Price-Moving Events, and Timing",
}

var audienceNoun = map[Audience]string{
	AudienceInvestor:   "an Investor",
	AudienceDeveloper:  "a Developer",
	AudienceResearcher: "a Researcher",
	AudienceTrader:     "a Trader",
}

// ParseAudience maps s to an Audience case-insensitively. Empty or unknown
// values yield AudienceInvestor and ok=false.
func ParseAudience(s string) (Audience, bool) {
	a := Audience(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := audienceFocus[a]; ok {
		return a, true
	}
	return AudienceInvestor, false
}

func (a Audience) orDefault() Audience {
	if _, ok := audienceFocus[a]; ok {
		return a
	}
	return AudienceInvestor
}
