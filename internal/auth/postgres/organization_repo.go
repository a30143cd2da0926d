// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/formdeck/formdeck/internal/auth"
)

// OrganizationRepository implements auth.OrganizationRepository using PostgreSQL.
type OrganizationRepository struct {
	db DB
}

// NewOrganizationRepository creates a new OrganizationRepository.
func NewOrganizationRepository(db DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Create inserts the organization and sets org.ID.
func (r *OrganizationRepository) Create(ctx context.Context, org *auth.Organization) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO organizations (name, created_at) VALUES ($1, $2)
		RETURNING id
	`, org.Name, org.CreatedAt).Scan(&org.ID)
	if err != nil {
		return oops.Code("ORGANIZATION_CREATE_FAILED").With("name", org.Name).Wrap(err)
	}
	return nil
}

// First returns the oldest organization.
func (r *OrganizationRepository) First(ctx context.Context) (*auth.Organization, error) {
	var org auth.Organization
	err := r.db.QueryRow(ctx, `
		SELECT id, name, created_at FROM organizations ORDER BY id LIMIT 1
	`).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ORGANIZATION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ORGANIZATION_GET_FIRST_FAILED").Wrap(err)
	}
	return &org, nil
}

var _ auth.OrganizationRepository = (*OrganizationRepository)(nil)
