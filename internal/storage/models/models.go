package models

import (
	"strings"
	"time"
)

type CustomerSegment string

const (
	SegmentSmall      CustomerSegment = "Small"
	SegmentMedium     CustomerSegment = "Medium"
	SegmentLarge      CustomerSegment = "Large"
	SegmentEnterprise CustomerSegment = "Enterprise"
)

func (s CustomerSegment) Valid() bool {
	switch s {
	case SegmentSmall, SegmentMedium, SegmentLarge, SegmentEnterprise:
		return true
	}
	return false
}

type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "Low"
	UrgencyMedium   UrgencyLevel = "Medium"
	UrgencyHigh     UrgencyLevel = "High"
	UrgencyCritical UrgencyLevel = "Critical"
)

func (u UrgencyLevel) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

type RequestSource string

const (
	SourceSalesCall     RequestSource = "Sales Call"
	SourceSupportTicket RequestSource = "Support Ticket"
	SourceUserInterview RequestSource = "User Interview"
	SourceRFP           RequestSource = "RFP"
)

type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "Low"
	ImpactMedium ImpactLevel = "Medium"
	ImpactHigh   ImpactLevel = "High"
)

// Feature is a discrete product capability that can be requested, matched
// and prioritized. NormalizedText is the matching key and must be
// regenerated whenever Title or Description changes.
type Feature struct {
	ID                  string
	Title               string
	Description         string
	NormalizedText      string
	Embedding           []float32
	RequestCount        int
	IsKeyDifferentiator bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NormalizedText builds the lower-cased title+description matching key.
func NormalizedText(title, description string) string {
	return strings.ToLower(strings.TrimSpace(title + " " + description))
}

// FeatureRequest links one customer ask to a feature. Requests are
// append-only; the feature's RequestCount is maintained separately so the
// two stores reference each other by id only.
type FeatureRequest struct {
	ID                  string
	FeatureID           string
	Segment             CustomerSegment
	Urgency             UrgencyLevel
	EstimatedDealImpact float64
	Source              RequestSource
	Justification       string
	CreatedAt           time.Time
}

// IncomingRequest is the ephemeral input to deduplication. It is consumed,
// never stored as-is.
type IncomingRequest struct {
	Text                string
	Title               string
	Segment             CustomerSegment
	Urgency             UrgencyLevel
	EstimatedDealImpact float64
	Source              RequestSource
}

// AnalysisSignalRecord is the persisted form of one analysis producer's
// output for one feature. Payload holds the kind-specific fields as JSON.
type AnalysisSignalRecord struct {
	ID         string
	FeatureID  string
	Kind       string
	Confidence float64
	Payload    string
	CreatedAt  time.Time
}

// PriorityScore is an append-only scoring snapshot. WeightsUsed records the
// exact weight vector so later weight changes never alter history.
type PriorityScore struct {
	ID                     string
	FeatureID              string
	FinalScore             float64
	CustomerImpactScore    float64
	TrendAlignmentScore    float64
	BusinessImpactScore    float64
	MarketOpportunityScore float64
	SegmentDiversityScore  float64
	WeightsUsed            map[string]float64
	AlgorithmVersion       string
	CalculatedAt           time.Time
}

// FeatureEmbedding is the corpus entry handed to the similarity matcher.
// CreatedAt breaks score ties deterministically (earliest feature wins).
type FeatureEmbedding struct {
	FeatureID string
	Embedding []float32
	CreatedAt time.Time
}

type RankedFeature struct {
	Rank         int
	FeatureID    string
	Title        string
	FinalScore   float64
	CalculatedAt time.Time
}
