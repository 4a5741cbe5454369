// Package postgres provides PostgreSQL-backed context and tool-context
// sources for parley agents.
//
// Source accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	parley "github.com/parley-ai/parley"
)

// Source reads business profiles and session bindings from PostgreSQL.
type Source struct {
	pool *pgxpool.Pool
}

// New creates a Source using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool) *Source {
	return &Source{pool: pool}
}

// Init creates the tables. Idempotent.
func (s *Source) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS business_profiles (
			business_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			industry TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("contextsource: init: %w", err)
		}
	}
	return nil
}

// Profile is one business profile row.
type Profile struct {
	BusinessID  string `json:"businessId"`
	Name        string `json:"name"`
	Industry    string `json:"industry,omitempty"`
	Description string `json:"description,omitempty"`
}

// UpsertProfile inserts or replaces a business profile.
func (s *Source) UpsertProfile(ctx context.Context, p Profile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO business_profiles (business_id, name, industry, description, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (business_id) DO UPDATE SET
			name = EXCLUDED.name,
			industry = EXCLUDED.industry,
			description = EXCLUDED.description,
			updated_at = now()`,
		p.BusinessID, p.Name, p.Industry, p.Description)
	if err != nil {
		return fmt.Errorf("contextsource: upsert profile: %w", err)
	}
	return nil
}

// GetProfile returns the profile for a business, or an error when absent.
func (s *Source) GetProfile(ctx context.Context, businessID string) (Profile, error) {
	var p Profile
	err := s.pool.QueryRow(ctx,
		`SELECT business_id, name, industry, description
		 FROM business_profiles WHERE business_id = $1`, businessID).
		Scan(&p.BusinessID, &p.Name, &p.Industry, &p.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, fmt.Errorf("contextsource: profile %q not found", businessID)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("contextsource: get profile: %w", err)
	}
	return p, nil
}

// BindSession associates a session with a business and user.
func (s *Source) BindSession(ctx context.Context, sessionID, businessID, userID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (session_id, business_id, user_id, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (session_id) DO UPDATE SET
			business_id = EXCLUDED.business_id,
			user_id = EXCLUDED.user_id,
			updated_at = now()`,
		sessionID, businessID, userID)
	if err != nil {
		return fmt.Errorf("contextsource: bind session: %w", err)
	}
	return nil
}

// ProfileContext returns a ContextProducer that resolves the profile of
// the given business on each turn. Wire it into AgentConfig.ContextSource.
func (s *Source) ProfileContext(businessID string) parley.ContextProducer {
	return func(ctx context.Context) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		p, err := s.GetProfile(ctx, businessID)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// ToolContext returns a ToolContextProvider that resolves the business
// binding of the given session on each tool batch. A session with no
// bound business yields a ToolContext with an empty BusinessID, which
// the agent treats as "select a business first".
func (s *Source) ToolContext(sessionID string) parley.ToolContextProvider {
	return func(ctx context.Context) (parley.ToolContext, error) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		var tc parley.ToolContext
		tc.SessionID = sessionID
		err := s.pool.QueryRow(ctx,
			`SELECT business_id, user_id FROM sessions WHERE session_id = $1`, sessionID).
			Scan(&tc.BusinessID, &tc.UserID)
		if errors.Is(err, pgx.ErrNoRows) {
			// Unknown session: no business bound yet.
			return tc, nil
		}
		if err != nil {
			return parley.ToolContext{}, fmt.Errorf("contextsource: tool context: %w", err)
		}
		return tc, nil
	}
}
