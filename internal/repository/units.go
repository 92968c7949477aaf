package repository

import (
	"context"

	"tasktide/internal/model"
)

func (s *Store) CreateUnit(ctx context.Context, unit model.Unit) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO units (id, server_id, name, code, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, unit.ID, unit.ServerID, unit.Name, unit.Code, unit.CreatedBy, unit.CreatedAt)
	return err
}

func (s *Store) GetUnitByID(ctx context.Context, unitID string) (model.Unit, error) {
	var unit model.Unit
	row := s.pool.QueryRow(ctx, `
		SELECT id, server_id, name, code, created_by, created_at
		FROM units
		WHERE id = $1
	`, unitID)
	err := row.Scan(&unit.ID, &unit.ServerID, &unit.Name, &unit.Code, &unit.CreatedBy, &unit.CreatedAt)
	return unit, err
}

func (s *Store) ListUnitsByServer(ctx context.Context, serverID string) ([]model.Unit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, server_id, name, code, created_by, created_at
		FROM units
		WHERE server_id = $1
		ORDER BY created_at
	`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	units := []model.Unit{}
	for rows.Next() {
		var unit model.Unit
		if err := rows.Scan(&unit.ID, &unit.ServerID, &unit.Name, &unit.Code, &unit.CreatedBy, &unit.CreatedAt); err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

func (s *Store) DeleteUnit(ctx context.Context, unitID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM units WHERE id = $1`, unitID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CreateResource(ctx context.Context, resource model.Resource) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO resources (id, unit_id, title, file_key, resource_type, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, resource.ID, resource.UnitID, resource.Title, resource.FileKey, resource.ResourceType, resource.UploadedBy, resource.UploadedAt)
	return err
}

func (s *Store) GetResourceByID(ctx context.Context, resourceID string) (model.Resource, error) {
	var resource model.Resource
	row := s.pool.QueryRow(ctx, `
		SELECT id, unit_id, title, file_key, resource_type, uploaded_by, uploaded_at
		FROM resources
		WHERE id = $1
	`, resourceID)
	err := row.Scan(&resource.ID, &resource.UnitID, &resource.Title, &resource.FileKey, &resource.ResourceType, &resource.UploadedBy, &resource.UploadedAt)
	return resource, err
}

func (s *Store) ListResourcesByUnit(ctx context.Context, unitID string) ([]model.Resource, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, unit_id, title, file_key, resource_type, uploaded_by, uploaded_at
		FROM resources
		WHERE unit_id = $1
		ORDER BY uploaded_at
	`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resources := []model.Resource{}
	for rows.Next() {
		var resource model.Resource
		if err := rows.Scan(&resource.ID, &resource.UnitID, &resource.Title, &resource.FileKey, &resource.ResourceType, &resource.UploadedBy, &resource.UploadedAt); err != nil {
			return nil, err
		}
		resources = append(resources, resource)
	}
	return resources, rows.Err()
}
