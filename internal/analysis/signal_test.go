package analysis

import (
	"testing"

	"github.com/onelens/backend/internal/storage/models"
)

func TestParseTrendJSON(t *testing.T) {
	content := `Here is my assessment:
{"alignment_score": 0.85, "trend_keywords": ["ai", "automation"], "confidence_score": 0.9, "reasoning": "strong fit"}
Let me know if you need more.`

	sig, err := ParseTrend(content)
	if err != nil {
		t.Fatalf("ParseTrend: %v", err)
	}

	if sig.AlignmentScore != 0.85 {
		t.Errorf("alignment = %v, want 0.85", sig.AlignmentScore)
	}
	if len(sig.TrendKeywords) != 2 || sig.TrendKeywords[0] != "ai" {
		t.Errorf("keywords = %v", sig.TrendKeywords)
	}
	if sig.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", sig.Confidence)
	}
}

func TestParseTrendRegexFallback(t *testing.T) {
	content := `TrendAnalysis(alignment_score=0.72 trend_keywords=['mobile', 'self-service'] confidence_score=0.6)`

	sig, err := ParseTrend(content)
	if err != nil {
		t.Fatalf("ParseTrend: %v", err)
	}

	if sig.AlignmentScore != 0.72 {
		t.Errorf("alignment = %v, want 0.72", sig.AlignmentScore)
	}
	if len(sig.TrendKeywords) != 2 || sig.TrendKeywords[1] != "self-service" {
		t.Errorf("keywords = %v", sig.TrendKeywords)
	}
	if sig.Confidence != 0.6 {
		t.Errorf("confidence = %v, want 0.6", sig.Confidence)
	}
}

func TestParseTrendUnparseable(t *testing.T) {
	if _, err := ParseTrend("the weather is nice today"); err == nil {
		t.Error("expected error for content with no extractable score")
	}
}

func TestParseBusinessImpactRegexFallback(t *testing.T) {
	content := `BusinessAnalysis(impact_score=78.5 revenue_impact='High' confidence_score=0.8)`

	sig, err := ParseBusinessImpact(content)
	if err != nil {
		t.Fatalf("ParseBusinessImpact: %v", err)
	}

	if sig.ImpactScore != 78.5 {
		t.Errorf("impact = %v, want 78.5", sig.ImpactScore)
	}
	if sig.RevenueImpact != models.ImpactHigh {
		t.Errorf("revenue impact = %v, want High", sig.RevenueImpact)
	}
}

func TestParseCompetitiveJSON(t *testing.T) {
	content := `{"providing": 2, "not_providing": 3, "total_competitors": 5, "opportunity_score": 0.6, "confidence_score": 0.7}`

	sig, err := ParseCompetitive(content)
	if err != nil {
		t.Fatalf("ParseCompetitive: %v", err)
	}

	if sig.TotalCompetitors != 5 || sig.NotProviding != 3 {
		t.Errorf("competitors = %d/%d, want 3/5", sig.NotProviding, sig.TotalCompetitors)
	}
}

func TestFromRecordRoundTrip(t *testing.T) {
	record := &models.AnalysisSignalRecord{
		ID:        "sig-1",
		FeatureID: "feat-1",
		Kind:      string(KindTrend),
		Payload:   `{"alignment_score": 0.5, "confidence_score": 0.4}`,
	}

	sig, err := FromRecord(record)
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}

	if sig.Kind != KindTrend {
		t.Errorf("kind = %v", sig.Kind)
	}
	if sig.Trend == nil || sig.Trend.AlignmentScore != 0.5 {
		t.Errorf("trend payload = %+v", sig.Trend)
	}
	if sig.Confidence() != 0.4 {
		t.Errorf("confidence = %v, want 0.4", sig.Confidence())
	}
}

func TestFromRecordUnknownKind(t *testing.T) {
	record := &models.AnalysisSignalRecord{Kind: "astrological", Payload: "{}"}
	if _, err := FromRecord(record); err == nil {
		t.Error("expected error for unknown signal kind")
	}
}
