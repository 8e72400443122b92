package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/onelens/backend/internal/storage/models"
	"github.com/onelens/backend/pkg/errs"
	"github.com/onelens/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS features (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		normalized_text TEXT,
		embedding TEXT,
		request_count INTEGER NOT NULL DEFAULT 0,
		is_key_differentiator INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_features_created ON features(created_at);
	CREATE INDEX IF NOT EXISTS idx_features_request_count ON features(request_count);

	CREATE TABLE IF NOT EXISTS feature_requests (
		id TEXT PRIMARY KEY,
		feature_id TEXT NOT NULL,
		segment TEXT NOT NULL,
		urgency TEXT NOT NULL,
		estimated_deal_impact REAL,
		source TEXT,
		justification TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (feature_id) REFERENCES features(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_requests_feature ON feature_requests(feature_id);

	CREATE TABLE IF NOT EXISTS analysis_signals (
		id TEXT PRIMARY KEY,
		feature_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		confidence REAL,
		payload TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (feature_id) REFERENCES features(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_signals_feature_kind ON analysis_signals(feature_id, kind, created_at);

	CREATE TABLE IF NOT EXISTS priority_scores (
		id TEXT PRIMARY KEY,
		feature_id TEXT NOT NULL,
		final_score REAL NOT NULL,
		customer_impact_score REAL NOT NULL,
		trend_alignment_score REAL NOT NULL,
		business_impact_score REAL NOT NULL,
		market_opportunity_score REAL NOT NULL,
		segment_diversity_score REAL NOT NULL,
		weights_used TEXT NOT NULL,
		algorithm_version TEXT NOT NULL,
		calculated_at INTEGER NOT NULL,
		FOREIGN KEY (feature_id) REFERENCES features(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_scores_feature ON priority_scores(feature_id, calculated_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertFeature(f *models.Feature) error {
	embeddingJSON, err := marshalEmbedding(f.Embedding)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO features (id, title, description, normalized_text, embedding,
			request_count, is_key_differentiator, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.Exec(
		query,
		f.ID,
		f.Title,
		f.Description,
		f.NormalizedText,
		embeddingJSON,
		f.RequestCount,
		boolToInt(f.IsKeyDifferentiator),
		f.CreatedAt.Unix(),
		f.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert feature: %w", err)
	}

	logger.Debug("Feature inserted", zap.String("feature_id", f.ID), zap.String("title", f.Title))
	return nil
}

func (c *Client) GetFeature(id string) (*models.Feature, error) {
	query := `
		SELECT id, title, description, normalized_text, embedding,
			request_count, is_key_differentiator, created_at, updated_at
		FROM features WHERE id = ?
	`

	var f models.Feature
	var embeddingJSON sql.NullString
	var isKey int
	var createdAt, updatedAt int64

	err := c.db.QueryRow(query, id).Scan(
		&f.ID,
		&f.Title,
		&f.Description,
		&f.NormalizedText,
		&embeddingJSON,
		&f.RequestCount,
		&isKey,
		&createdAt,
		&updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("feature %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feature: %w", err)
	}

	f.Embedding, err = unmarshalEmbedding(embeddingJSON)
	if err != nil {
		return nil, err
	}
	f.IsKeyDifferentiator = isKey != 0
	f.CreatedAt = time.Unix(createdAt, 0)
	f.UpdatedAt = time.Unix(updatedAt, 0)

	return &f, nil
}

// UpdateFeatureText rewrites title/description along with the regenerated
// normalized text and embedding. Callers must never update the display
// fields without refreshing the matching key.
func (c *Client) UpdateFeatureText(id, title, description, normalizedText string, embedding []float32) error {
	embeddingJSON, err := marshalEmbedding(embedding)
	if err != nil {
		return err
	}

	query := `
		UPDATE features
		SET title = ?, description = ?, normalized_text = ?, embedding = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := c.db.Exec(query, title, description, normalizedText, embeddingJSON, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update feature: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("feature %s: %w", id, errs.ErrNotFound)
	}

	return nil
}

func (c *Client) ListFeatures(minRequestCount, limit int) ([]models.Feature, error) {
	query := `
		SELECT id, title, description, normalized_text, request_count,
			is_key_differentiator, created_at, updated_at
		FROM features
		WHERE request_count >= ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := c.db.Query(query, minRequestCount, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list features: %w", err)
	}
	defer rows.Close()

	var features []models.Feature
	for rows.Next() {
		var f models.Feature
		var isKey int
		var createdAt, updatedAt int64

		err := rows.Scan(&f.ID, &f.Title, &f.Description, &f.NormalizedText,
			&f.RequestCount, &isKey, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		f.IsKeyDifferentiator = isKey != 0
		f.CreatedAt = time.Unix(createdAt, 0)
		f.UpdatedAt = time.Unix(updatedAt, 0)
		features = append(features, f)
	}

	return features, rows.Err()
}

func (c *Client) ListFeatureIDs() ([]string, error) {
	rows, err := c.db.Query(`SELECT id FROM features ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feature ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ListEmbeddings returns the matching corpus. Features without a stored
// embedding are skipped; they cannot participate in similarity matching.
func (c *Client) ListEmbeddings() ([]models.FeatureEmbedding, error) {
	query := `
		SELECT id, embedding, created_at
		FROM features
		WHERE embedding IS NOT NULL AND embedding != ''
		ORDER BY created_at ASC
	`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer rows.Close()

	var corpus []models.FeatureEmbedding
	for rows.Next() {
		var entry models.FeatureEmbedding
		var embeddingJSON sql.NullString
		var createdAt int64

		if err := rows.Scan(&entry.FeatureID, &embeddingJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		entry.Embedding, err = unmarshalEmbedding(embeddingJSON)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = time.Unix(createdAt, 0)
		corpus = append(corpus, entry)
	}

	return corpus, rows.Err()
}

// IncrementRequestCount applies the increment inside the database so that
// concurrent attaches to the same feature never lose updates.
func (c *Client) IncrementRequestCount(id string) error {
	result, err := c.db.Exec(
		`UPDATE features SET request_count = request_count + 1, updated_at = ? WHERE id = ?`,
		time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to increment request count: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("feature %s: %w", id, errs.ErrNotFound)
	}

	return nil
}

func (c *Client) LinkRequest(req *models.FeatureRequest) error {
	query := `
		INSERT INTO feature_requests (id, feature_id, segment, urgency,
			estimated_deal_impact, source, justification, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		req.ID,
		req.FeatureID,
		string(req.Segment),
		string(req.Urgency),
		req.EstimatedDealImpact,
		string(req.Source),
		req.Justification,
		req.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to link request: %w", err)
	}

	logger.Debug("Request linked",
		zap.String("feature_id", req.FeatureID),
		zap.String("segment", string(req.Segment)),
	)

	return nil
}

func (c *Client) ListRequests(featureID string) ([]models.FeatureRequest, error) {
	query := `
		SELECT id, feature_id, segment, urgency, estimated_deal_impact, source, justification, created_at
		FROM feature_requests
		WHERE feature_id = ?
		ORDER BY created_at ASC
	`

	rows, err := c.db.Query(query, featureID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []models.FeatureRequest
	for rows.Next() {
		var r models.FeatureRequest
		var segment, urgency, source string
		var impact sql.NullFloat64
		var createdAt int64

		err := rows.Scan(&r.ID, &r.FeatureID, &segment, &urgency, &impact, &source, &r.Justification, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Segment = models.CustomerSegment(segment)
		r.Urgency = models.UrgencyLevel(urgency)
		r.EstimatedDealImpact = impact.Float64
		r.Source = models.RequestSource(source)
		r.CreatedAt = time.Unix(createdAt, 0)
		requests = append(requests, r)
	}

	return requests, rows.Err()
}

// DeleteFeature hard-deletes a feature and cascades to its requests,
// signals and scores. Explicit admin action only.
func (c *Client) DeleteFeature(id string) error {
	result, err := c.db.Exec(`DELETE FROM features WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feature: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("feature %s: %w", id, errs.ErrNotFound)
	}

	logger.Info("Feature deleted", zap.String("feature_id", id))
	return nil
}

func (c *Client) InsertSignal(record *models.AnalysisSignalRecord) error {
	query := `
		INSERT INTO analysis_signals (id, feature_id, kind, confidence, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.FeatureID,
		record.Kind,
		record.Confidence,
		record.Payload,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}

	return nil
}

// LatestSignals returns at most one record per kind, the most recent.
// Older signals of the same kind stay in the table but are never consumed.
func (c *Client) LatestSignals(featureID string) ([]models.AnalysisSignalRecord, error) {
	query := `
		SELECT id, feature_id, kind, confidence, payload, created_at
		FROM analysis_signals
		WHERE feature_id = ?
		ORDER BY created_at DESC, rowid DESC
	`

	rows, err := c.db.Query(query, featureID)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var records []models.AnalysisSignalRecord
	for rows.Next() {
		var r models.AnalysisSignalRecord
		var createdAt int64

		err := rows.Scan(&r.ID, &r.FeatureID, &r.Kind, &r.Confidence, &r.Payload, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if seen[r.Kind] {
			continue
		}
		seen[r.Kind] = true

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) InsertPriorityScore(score *models.PriorityScore) error {
	weightsJSON, err := json.Marshal(score.WeightsUsed)
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}

	query := `
		INSERT INTO priority_scores (id, feature_id, final_score,
			customer_impact_score, trend_alignment_score, business_impact_score,
			market_opportunity_score, segment_diversity_score,
			weights_used, algorithm_version, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.Exec(
		query,
		score.ID,
		score.FeatureID,
		score.FinalScore,
		score.CustomerImpactScore,
		score.TrendAlignmentScore,
		score.BusinessImpactScore,
		score.MarketOpportunityScore,
		score.SegmentDiversityScore,
		string(weightsJSON),
		score.AlgorithmVersion,
		score.CalculatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert priority score: %w", err)
	}

	logger.Info("Priority score recorded",
		zap.String("feature_id", score.FeatureID),
		zap.Float64("final_score", score.FinalScore),
		zap.String("algorithm_version", score.AlgorithmVersion),
	)

	return nil
}

func (c *Client) LatestScore(featureID string) (*models.PriorityScore, error) {
	query := `
		SELECT id, feature_id, final_score, customer_impact_score, trend_alignment_score,
			business_impact_score, market_opportunity_score, segment_diversity_score,
			weights_used, algorithm_version, calculated_at
		FROM priority_scores
		WHERE feature_id = ?
		ORDER BY calculated_at DESC, rowid DESC
		LIMIT 1
	`

	row := c.db.QueryRow(query, featureID)
	score, err := scanScore(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("score for feature %s: %w", featureID, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest score: %w", err)
	}

	return score, nil
}

// FeatureRanking joins each feature against its latest snapshot and orders
// by final score descending.
func (c *Client) FeatureRanking(limit int) ([]models.RankedFeature, error) {
	query := `
		SELECT f.id, f.title, p.final_score, p.calculated_at
		FROM features f
		JOIN priority_scores p ON p.feature_id = f.id
		JOIN (
			SELECT feature_id, MAX(calculated_at) AS latest
			FROM priority_scores
			GROUP BY feature_id
		) latest ON latest.feature_id = p.feature_id AND latest.latest = p.calculated_at
		ORDER BY p.final_score DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get feature ranking: %w", err)
	}
	defer rows.Close()

	var ranking []models.RankedFeature
	for rows.Next() {
		var r models.RankedFeature
		var calculatedAt int64

		if err := rows.Scan(&r.FeatureID, &r.Title, &r.FinalScore, &calculatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Rank = len(ranking) + 1
		r.CalculatedAt = time.Unix(calculatedAt, 0)
		ranking = append(ranking, r)
	}

	return ranking, rows.Err()
}

// ListLatestScores returns the current snapshot of every scored feature,
// for the calibration report.
func (c *Client) ListLatestScores() ([]models.PriorityScore, error) {
	query := `
		SELECT p.id, p.feature_id, p.final_score, p.customer_impact_score, p.trend_alignment_score,
			p.business_impact_score, p.market_opportunity_score, p.segment_diversity_score,
			p.weights_used, p.algorithm_version, p.calculated_at
		FROM priority_scores p
		JOIN (
			SELECT feature_id, MAX(calculated_at) AS latest
			FROM priority_scores
			GROUP BY feature_id
		) latest ON latest.feature_id = p.feature_id AND latest.latest = p.calculated_at
	`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest scores: %w", err)
	}
	defer rows.Close()

	var scores []models.PriorityScore
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scores = append(scores, *score)
	}

	return scores, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScore(row rowScanner) (*models.PriorityScore, error) {
	var s models.PriorityScore
	var weightsJSON string
	var calculatedAt int64

	err := row.Scan(
		&s.ID,
		&s.FeatureID,
		&s.FinalScore,
		&s.CustomerImpactScore,
		&s.TrendAlignmentScore,
		&s.BusinessImpactScore,
		&s.MarketOpportunityScore,
		&s.SegmentDiversityScore,
		&weightsJSON,
		&s.AlgorithmVersion,
		&calculatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(weightsJSON), &s.WeightsUsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	s.CalculatedAt = time.Unix(calculatedAt, 0)

	return &s, nil
}

func marshalEmbedding(embedding []float32) (sql.NullString, error) {
	if len(embedding) == 0 {
		return sql.NullString{}, nil
	}

	data, err := json.Marshal(embedding)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal embedding: %w", err)
	}

	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalEmbedding(embeddingJSON sql.NullString) ([]float32, error) {
	if !embeddingJSON.Valid || embeddingJSON.String == "" {
		return nil, nil
	}

	var embedding []float32
	if err := json.Unmarshal([]byte(embeddingJSON.String), &embedding); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	return embedding, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
