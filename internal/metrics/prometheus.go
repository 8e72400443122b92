package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onelens_requests_resolved_total",
			Help: "Incoming requests resolved, by outcome (attached or created)",
		},
		[]string{"outcome"},
	)

	MatchSimilarity = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "onelens_match_similarity",
			Help:    "Best-match similarity score per resolved request",
			Buckets: []float64{0.5, 0.6, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1.0},
		},
	)

	EmbeddingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onelens_embedding_duration_seconds",
			Help:    "Embedding generation duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"provider"},
	)

	SignalFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onelens_analysis_signal_fetches_total",
			Help: "Analysis signal fetch attempts, by kind and status",
		},
		[]string{"kind", "status"},
	)

	ScoringDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "onelens_scoring_duration_seconds",
			Help:    "Priority score calculation duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
		},
	)

	FinalScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "onelens_final_scores",
			Help:    "Distribution of calculated final priority scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onelens_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onelens_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	RFPQuestionsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onelens_rfp_questions_processed_total",
			Help: "RFP questions processed, by status",
		},
		[]string{"status"},
	)

	FeaturesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "onelens_features_total",
			Help: "Total canonical features in the corpus",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestsResolved)
	prometheus.MustRegister(MatchSimilarity)
	prometheus.MustRegister(EmbeddingDuration)
	prometheus.MustRegister(SignalFetches)
	prometheus.MustRegister(ScoringDuration)
	prometheus.MustRegister(FinalScores)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(RFPQuestionsProcessed)
	prometheus.MustRegister(FeaturesTotal)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
