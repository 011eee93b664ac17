package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ignite/smart-affiliate/internal/discovery"
	"github.com/ignite/smart-affiliate/internal/opportunity"
)

var _ discovery.Repository = (*ProductRepo)(nil)

const productColumns = `id, product_name, vendor, platform, estimated_cpa, image_url,
		       discovered_at, last_seen_at, discovery_source, discovery_frequency,
		       exclusivity_level, exclusivity_indicators, youtube_data, ads_data,
		       hot_score, exclusivity_score, competition_score, opportunity_score, recommendations`

// ProductRepo implements discovery.Repository against PostgreSQL.
// Writes are last-writer-wins upserts on dedupe_key.
type ProductRepo struct{ db *sql.DB }

// NewProductRepo creates a Postgres-backed product repository.
func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

func (r *ProductRepo) Get(ctx context.Context, key string) (*opportunity.DiscoveredProduct, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM discovered_products WHERE dedupe_key = $1`, key)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, opportunity.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", key, err)
	}
	return p, nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id string) (*opportunity.DiscoveredProduct, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM discovered_products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, opportunity.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return p, nil
}

func (r *ProductRepo) List(ctx context.Context, f discovery.ListFilter) ([]*opportunity.DiscoveredProduct, error) {
	q := `SELECT ` + productColumns + ` FROM discovered_products WHERE opportunity_score >= $1`
	args := []interface{}{f.MinScore}
	idx := 2

	if f.Level != "" {
		q += fmt.Sprintf(" AND exclusivity_level = $%d", idx)
		args = append(args, string(f.Level))
		idx++
	}
	q += " ORDER BY opportunity_score DESC, discovery_frequency DESC, discovered_at ASC, dedupe_key ASC, id ASC"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := []*opportunity.DiscoveredProduct{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProductRepo) Put(ctx context.Context, p *opportunity.DiscoveredProduct) error {
	indicators, err := json.Marshal(nonNil(p.ExclusivityIndicators))
	if err != nil {
		return fmt.Errorf("encode indicators: %w", err)
	}
	youtube, err := nullableJSON(p.YouTubeData)
	if err != nil {
		return fmt.Errorf("encode youtube data: %w", err)
	}
	ads, err := nullableJSON(p.AdsData)
	if err != nil {
		return fmt.Errorf("encode ads data: %w", err)
	}
	recs, err := json.Marshal(nonNil(p.Recommendations))
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO discovered_products (
			dedupe_key, id, product_name, vendor, platform, estimated_cpa, image_url,
			discovered_at, last_seen_at, discovery_source, discovery_frequency,
			exclusivity_level, exclusivity_indicators, youtube_data, ads_data,
			hot_score, exclusivity_score, competition_score, opportunity_score,
			recommendations, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,NOW())
		ON CONFLICT (dedupe_key) DO UPDATE SET
			product_name = EXCLUDED.product_name,
			vendor = EXCLUDED.vendor,
			platform = EXCLUDED.platform,
			estimated_cpa = EXCLUDED.estimated_cpa,
			image_url = EXCLUDED.image_url,
			discovered_at = EXCLUDED.discovered_at,
			last_seen_at = EXCLUDED.last_seen_at,
			discovery_source = EXCLUDED.discovery_source,
			discovery_frequency = EXCLUDED.discovery_frequency,
			exclusivity_level = EXCLUDED.exclusivity_level,
			exclusivity_indicators = EXCLUDED.exclusivity_indicators,
			youtube_data = EXCLUDED.youtube_data,
			ads_data = EXCLUDED.ads_data,
			hot_score = EXCLUDED.hot_score,
			exclusivity_score = EXCLUDED.exclusivity_score,
			competition_score = EXCLUDED.competition_score,
			opportunity_score = EXCLUDED.opportunity_score,
			recommendations = EXCLUDED.recommendations,
			updated_at = NOW()
	`,
		p.Key(), p.ID, p.ProductName, p.Vendor, p.Platform, p.EstimatedCPA, p.ImageURL,
		p.DiscoveredAt, p.LastSeenAt, string(p.DiscoverySource), p.DiscoveryFrequency,
		string(p.ExclusivityLevel), indicators, youtube, ads,
		p.HotScore, p.ExclusivityScore, p.CompetitionScore, p.OpportunityScore, recs,
	)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.Key(), err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(s scanner) (*opportunity.DiscoveredProduct, error) {
	p := &opportunity.DiscoveredProduct{}
	var source, level string
	var indicators, youtube, ads, recs []byte
	err := s.Scan(
		&p.ID, &p.ProductName, &p.Vendor, &p.Platform, &p.EstimatedCPA, &p.ImageURL,
		&p.DiscoveredAt, &p.LastSeenAt, &source, &p.DiscoveryFrequency,
		&level, &indicators, &youtube, &ads,
		&p.HotScore, &p.ExclusivityScore, &p.CompetitionScore, &p.OpportunityScore, &recs,
	)
	if err != nil {
		return nil, err
	}
	p.DiscoverySource = opportunity.DiscoverySource(source)
	p.ExclusivityLevel = opportunity.ExclusivityLevel(level)

	p.ExclusivityIndicators = []string{}
	if err := unmarshalIfSet(indicators, &p.ExclusivityIndicators); err != nil {
		return nil, fmt.Errorf("decode indicators: %w", err)
	}
	if len(youtube) > 0 {
		p.YouTubeData = &opportunity.YouTubeData{}
		if err := json.Unmarshal(youtube, p.YouTubeData); err != nil {
			return nil, fmt.Errorf("decode youtube data: %w", err)
		}
	}
	if len(ads) > 0 {
		p.AdsData = &opportunity.AdsData{}
		if err := json.Unmarshal(ads, p.AdsData); err != nil {
			return nil, fmt.Errorf("decode ads data: %w", err)
		}
	}
	p.Recommendations = []opportunity.Recommendation{}
	if err := unmarshalIfSet(recs, &p.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	return p, nil
}

func unmarshalIfSet(data []byte, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}

// nullableJSON encodes v, mapping a nil pointer to SQL NULL.
func nullableJSON[T any](v *T) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
