// Package ingestion processes RFP documents: each extracted Q&A pair is
// resolved against the feature corpus, and document-level business context
// is derived from the combined text.
package ingestion

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/onelens/backend/internal/dedup"
	"github.com/onelens/backend/internal/metrics"
	"github.com/onelens/backend/internal/storage/models"
	"github.com/onelens/backend/pkg/errs"
	"github.com/onelens/backend/pkg/logger"
)

type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Document is one RFP submission. Segment and Urgency apply to every
// request the document generates.
type Document struct {
	Name    string                 `json:"name"`
	Segment models.CustomerSegment `json:"segment"`
	Urgency models.UrgencyLevel    `json:"urgency"`
	QAPairs []QAPair               `json:"qa_pairs"`
}

type BusinessContext struct {
	TotalQuestions        int       `json:"total_questions"`
	UrgencyIndicators     []string  `json:"urgency_indicators"`
	TechnicalRequirements []string  `json:"technical_requirements"`
	ExtractedAt           time.Time `json:"extracted_at"`
}

type Result struct {
	QuestionsProcessed int             `json:"questions_processed"`
	FeaturesLinked     int             `json:"features_linked"`
	FeaturesCreated    int             `json:"features_created"`
	Failed             int             `json:"failed"`
	BusinessContext    BusinessContext `json:"business_context"`
}

// ProgressEvent reports the outcome of one Q&A pair to a streaming observer.
type ProgressEvent struct {
	Index     int     `json:"index"`
	Total     int     `json:"total"`
	Question  string  `json:"question"`
	FeatureID string  `json:"feature_id,omitempty"`
	Title     string  `json:"title,omitempty"`
	Created   bool    `json:"created"`
	Score     float64 `json:"score,omitempty"`
	Error     string  `json:"error,omitempty"`
}

type ProgressFunc func(event ProgressEvent)

var urgencyKeywords = []string{"urgent", "asap", "immediately", "critical", "priority"}

var techKeywords = []string{"api", "integration", "security", "performance", "scalability"}

var whitespaceRe = regexp.MustCompile(`\s+`)

type Processor struct {
	dedup          *dedup.Deduplicator
	maxTitleLength int
}

func NewProcessor(deduplicator *dedup.Deduplicator, maxTitleLength int) *Processor {
	if maxTitleLength == 0 {
		maxTitleLength = 100
	}
	return &Processor{dedup: deduplicator, maxTitleLength: maxTitleLength}
}

// Process resolves every Q&A pair in order. A failed pair is reported and
// skipped; the rest of the document still goes through. progress may be nil.
func (p *Processor) Process(ctx context.Context, doc Document, progress ProgressFunc) (*Result, error) {
	if len(doc.QAPairs) == 0 {
		return nil, errs.Validationf("document has no Q&A pairs")
	}

	logger.Info("Processing RFP document",
		zap.String("name", doc.Name),
		zap.Int("qa_pairs", len(doc.QAPairs)),
	)

	result := &Result{}

	for i, qa := range doc.QAPairs {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		event := ProgressEvent{Index: i, Total: len(doc.QAPairs), Question: qa.Question}

		question := StripHTML(qa.Question)
		answer := StripHTML(qa.Answer)
		text := strings.TrimSpace(question + " " + answer)

		resolution, err := p.dedup.Resolve(ctx, models.IncomingRequest{
			Text:    text,
			Title:   dedup.ExtractTitle(question, p.maxTitleLength),
			Segment: doc.Segment,
			Urgency: doc.Urgency,
			Source:  models.SourceRFP,
		})

		if err != nil {
			result.Failed++
			metrics.RFPQuestionsProcessed.WithLabelValues("failed").Inc()
			logger.Warn("Failed to resolve RFP question",
				zap.String("document", doc.Name),
				zap.Int("index", i),
				zap.Error(err),
			)
			event.Error = err.Error()
			emit(progress, event)
			continue
		}

		result.QuestionsProcessed++
		event.FeatureID = resolution.FeatureID
		event.Score = resolution.MatchScore

		if resolution.Created {
			result.FeaturesCreated++
			event.Created = true
			event.Title = resolution.Title
			metrics.RFPQuestionsProcessed.WithLabelValues("created").Inc()
		} else {
			result.FeaturesLinked++
			metrics.RFPQuestionsProcessed.WithLabelValues("linked").Inc()
		}

		emit(progress, event)
	}

	result.BusinessContext = extractBusinessContext(doc.QAPairs)

	logger.Info("RFP document processed",
		zap.String("name", doc.Name),
		zap.Int("processed", result.QuestionsProcessed),
		zap.Int("linked", result.FeaturesLinked),
		zap.Int("created", result.FeaturesCreated),
		zap.Int("failed", result.Failed),
	)

	return result, nil
}

func emit(progress ProgressFunc, event ProgressEvent) {
	if progress != nil {
		progress(event)
	}
}

// StripHTML flattens pasted rich text to plain text. Non-HTML input passes
// through with only whitespace normalization.
func StripHTML(input string) string {
	if !strings.Contains(input, "<") {
		return collapseWhitespace(input)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return collapseWhitespace(input)
	}

	doc.Find("script, style").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	return collapseWhitespace(doc.Text())
}

func collapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func extractBusinessContext(pairs []QAPair) BusinessContext {
	var b strings.Builder
	for _, qa := range pairs {
		b.WriteString(qa.Question)
		b.WriteString(" ")
		b.WriteString(qa.Answer)
		b.WriteString(" ")
	}
	allText := strings.ToLower(b.String())

	ctx := BusinessContext{
		TotalQuestions: len(pairs),
		ExtractedAt:    time.Now(),
	}

	for _, keyword := range urgencyKeywords {
		if strings.Contains(allText, keyword) {
			ctx.UrgencyIndicators = append(ctx.UrgencyIndicators, keyword)
		}
	}

	for _, keyword := range techKeywords {
		if strings.Contains(allText, keyword) {
			ctx.TechnicalRequirements = append(ctx.TechnicalRequirements, keyword)
		}
	}

	return ctx
}
