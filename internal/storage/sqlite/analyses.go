package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"credcheck/internal/storage"
	"credcheck/internal/types"
)

func (s *Store) SaveAnalysis(ctx context.Context, rec storage.AnalysisRecord) error {
	detail, err := json.Marshal(rec.ClaimDetail)
	if err != nil {
		return fmt.Errorf("failed to encode claim detail: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO analyses (headline, is_fake, classification, source_type, claim_detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Headline, rec.IsFake, rec.Classification, rec.SourceType, string(detail), createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

func (s *Store) RecentAnalyses(ctx context.Context, limit int) ([]storage.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, headline, is_fake, classification, source_type, claim_detail, created_at
		FROM analyses
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var records []storage.AnalysisRecord
	for rows.Next() {
		var rec storage.AnalysisRecord
		var detail string
		if err := rows.Scan(&rec.ID, &rec.Headline, &rec.IsFake, &rec.Classification,
			&rec.SourceType, &detail, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis row: %w", err)
		}
		if detail != "" {
			var claims []types.ClaimScore
			if err := json.Unmarshal([]byte(detail), &claims); err == nil {
				rec.ClaimDetail = claims
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) Counts(ctx context.Context) (int, int, error) {
	var fake, real int
	err := s.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN is_fake THEN 1 END),
			COUNT(CASE WHEN NOT is_fake THEN 1 END)
		FROM analyses`).Scan(&fake, &real)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	return fake, real, nil
}
