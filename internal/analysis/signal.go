// Package analysis collects market and business signals about features from
// external analyzers and normalizes them for scoring. Producers are
// unreliable; everything here is built to degrade rather than fail.
package analysis

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/onelens/backend/internal/storage/models"
	"github.com/onelens/backend/pkg/errs"
)

type Kind string

const (
	KindTrend          Kind = "trend"
	KindBusinessImpact Kind = "business_impact"
	KindCompetitive    Kind = "competitive"
	KindGeographic     Kind = "geographic"
)

// AllKinds in collection order.
var AllKinds = []Kind{KindTrend, KindBusinessImpact, KindCompetitive, KindGeographic}

type TrendSignal struct {
	AlignmentScore float64  `json:"alignment_score"`
	TrendKeywords  []string `json:"trend_keywords"`
	Confidence     float64  `json:"confidence_score"`
	Reasoning      string   `json:"reasoning,omitempty"`
}

type BusinessImpactSignal struct {
	ImpactScore   float64            `json:"impact_score"`
	RevenueImpact models.ImpactLevel `json:"revenue_impact"`
	Confidence    float64            `json:"confidence_score"`
	Reasoning     string             `json:"reasoning,omitempty"`
}

type CompetitiveSignal struct {
	Providing        int     `json:"providing"`
	NotProviding     int     `json:"not_providing"`
	TotalCompetitors int     `json:"total_competitors"`
	OpportunityScore float64 `json:"opportunity_score"`
	Confidence       float64 `json:"confidence_score"`
	Reasoning        string  `json:"reasoning,omitempty"`
}

type GeographicSignal struct {
	Regions             []string `json:"regions"`
	DemandConcentration float64  `json:"demand_concentration"`
	Confidence          float64  `json:"confidence_score"`
	Reasoning           string   `json:"reasoning,omitempty"`
}

// Signal is the tagged union handed to scoring. Exactly one payload field is
// set, matching Kind.
type Signal struct {
	Kind        Kind
	Trend       *TrendSignal
	Business    *BusinessImpactSignal
	Competitive *CompetitiveSignal
	Geographic  *GeographicSignal
}

func (s *Signal) Confidence() float64 {
	switch s.Kind {
	case KindTrend:
		return s.Trend.Confidence
	case KindBusinessImpact:
		return s.Business.Confidence
	case KindCompetitive:
		return s.Competitive.Confidence
	case KindGeographic:
		return s.Geographic.Confidence
	}
	return 0
}

func (s *Signal) payload() (interface{}, error) {
	switch s.Kind {
	case KindTrend:
		return s.Trend, nil
	case KindBusinessImpact:
		return s.Business, nil
	case KindCompetitive:
		return s.Competitive, nil
	case KindGeographic:
		return s.Geographic, nil
	}
	return nil, errs.Invariantf("signal with unknown kind %q", s.Kind)
}

// FromRecord rebuilds a Signal from its persisted form.
func FromRecord(record *models.AnalysisSignalRecord) (*Signal, error) {
	sig := &Signal{Kind: Kind(record.Kind)}

	var target interface{}
	switch sig.Kind {
	case KindTrend:
		sig.Trend = &TrendSignal{}
		target = sig.Trend
	case KindBusinessImpact:
		sig.Business = &BusinessImpactSignal{}
		target = sig.Business
	case KindCompetitive:
		sig.Competitive = &CompetitiveSignal{}
		target = sig.Competitive
	case KindGeographic:
		sig.Geographic = &GeographicSignal{}
		target = sig.Geographic
	default:
		return nil, errs.Invariantf("stored signal with unknown kind %q", record.Kind)
	}

	if err := json.Unmarshal([]byte(record.Payload), target); err != nil {
		return nil, errs.Invariantf("stored %s signal payload is corrupt: %v", record.Kind, err)
	}

	return sig, nil
}

var (
	alignmentScoreRe   = regexp.MustCompile(`alignment_score=([0-9.]+)`)
	trendKeywordsRe    = regexp.MustCompile(`trend_keywords=\[([^\]]+)\]`)
	impactScoreRe      = regexp.MustCompile(`impact_score=([0-9.]+)`)
	revenueImpactRe    = regexp.MustCompile(`revenue_impact='([^']+)'`)
	opportunityScoreRe = regexp.MustCompile(`opportunity_score=([0-9.]+)`)
	confidenceScoreRe  = regexp.MustCompile(`confidence_score=([0-9.]+)`)
)

// ParseTrend parses an analyzer response. Well-formed JSON wins; otherwise
// the key=value fallback patterns are tried against the raw text, matching
// analyzers that echo their internal state instead of JSON.
func ParseTrend(content string) (*TrendSignal, error) {
	var sig TrendSignal
	if tryJSON(content, &sig) {
		return &sig, nil
	}

	m := alignmentScoreRe.FindStringSubmatch(content)
	if m == nil {
		return nil, errs.Validationf("trend response has no alignment score")
	}
	sig.AlignmentScore, _ = strconv.ParseFloat(m[1], 64)

	if m := trendKeywordsRe.FindStringSubmatch(content); m != nil {
		sig.TrendKeywords = splitKeywordList(m[1])
	}
	sig.Confidence = extractConfidence(content)

	return &sig, nil
}

func ParseBusinessImpact(content string) (*BusinessImpactSignal, error) {
	var sig BusinessImpactSignal
	if tryJSON(content, &sig) {
		return &sig, nil
	}

	m := impactScoreRe.FindStringSubmatch(content)
	if m == nil {
		return nil, errs.Validationf("business impact response has no impact score")
	}
	sig.ImpactScore, _ = strconv.ParseFloat(m[1], 64)

	if m := revenueImpactRe.FindStringSubmatch(content); m != nil {
		sig.RevenueImpact = models.ImpactLevel(m[1])
	}
	sig.Confidence = extractConfidence(content)

	return &sig, nil
}

func ParseCompetitive(content string) (*CompetitiveSignal, error) {
	var sig CompetitiveSignal
	if tryJSON(content, &sig) {
		return &sig, nil
	}

	m := opportunityScoreRe.FindStringSubmatch(content)
	if m == nil {
		return nil, errs.Validationf("competitive response has no opportunity score")
	}
	sig.OpportunityScore, _ = strconv.ParseFloat(m[1], 64)
	sig.Confidence = extractConfidence(content)

	return &sig, nil
}

func ParseGeographic(content string) (*GeographicSignal, error) {
	var sig GeographicSignal
	if tryJSON(content, &sig) {
		return &sig, nil
	}

	sig.Confidence = extractConfidence(content)
	if sig.Confidence == 0 {
		return nil, errs.Validationf("geographic response is unparseable")
	}

	return &sig, nil
}

// tryJSON unmarshals the first {...} block in the content, tolerating prose
// and markdown fences around it.
func tryJSON(content string, target interface{}) bool {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return false
	}

	return json.Unmarshal([]byte(content[start:end+1]), target) == nil
}

func splitKeywordList(raw string) []string {
	var keywords []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part != "" {
			keywords = append(keywords, part)
		}
	}
	return keywords
}

func extractConfidence(content string) float64 {
	m := confidenceScoreRe.FindStringSubmatch(content)
	if m == nil {
		return 0
	}
	conf, _ := strconv.ParseFloat(m[1], 64)
	return conf
}
