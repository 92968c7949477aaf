package repository

import (
	"context"

	"tasktide/internal/model"
)

func (s *Store) CreateGroup(ctx context.Context, group model.AssignmentGroup) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO assignment_groups (id, unit_id, name, max_members, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, group.ID, group.UnitID, group.Name, group.MaxMembers, group.CreatedBy, group.CreatedAt)
	return err
}

func (s *Store) GetGroupByID(ctx context.Context, groupID string) (model.AssignmentGroup, error) {
	var group model.AssignmentGroup
	row := s.pool.QueryRow(ctx, `
		SELECT id, unit_id, name, max_members, created_by, created_at
		FROM assignment_groups
		WHERE id = $1
	`, groupID)
	err := row.Scan(&group.ID, &group.UnitID, &group.Name, &group.MaxMembers, &group.CreatedBy, &group.CreatedAt)
	return group, err
}

func (s *Store) ListGroupsByUnit(ctx context.Context, unitID string) ([]model.AssignmentGroup, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, unit_id, name, max_members, created_by, created_at
		FROM assignment_groups
		WHERE unit_id = $1
		ORDER BY created_at
	`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []model.AssignmentGroup{}
	for rows.Next() {
		var group model.AssignmentGroup
		if err := rows.Scan(&group.ID, &group.UnitID, &group.Name, &group.MaxMembers, &group.CreatedBy, &group.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

func (s *Store) DeleteGroup(ctx context.Context, groupID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM assignment_groups WHERE id = $1`, groupID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) GroupMemberExists(ctx context.Context, groupID, userID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)
	`, groupID, userID).Scan(&exists)
	return exists, err
}

func (s *Store) CountGroupMembers(ctx context.Context, groupID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM group_members WHERE group_id = $1
	`, groupID).Scan(&count)
	return count, err
}

// InsertGroupMemberBelowCapacity commits a group admission as one
// transaction: the group row is locked, the member count re-read under the
// lock, and the row inserted only while the count is below max_members.
// Concurrent admissions to the same group serialize on the row lock, so the
// count can never overshoot. Returns false when the group was full at commit
// time. Duplicate inserts still trip the (group_id, user_id) unique
// constraint and surface as an error.
func (s *Store) InsertGroupMemberBelowCapacity(ctx context.Context, member model.GroupMember) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var maxMembers int
	err = tx.QueryRow(ctx, `
		SELECT max_members FROM assignment_groups WHERE id = $1 FOR UPDATE
	`, member.GroupID).Scan(&maxMembers)
	if err != nil {
		return false, err
	}

	var count int
	err = tx.QueryRow(ctx, `
		SELECT count(*) FROM group_members WHERE group_id = $1
	`, member.GroupID).Scan(&count)
	if err != nil {
		return false, err
	}
	if count >= maxMembers {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO group_members (id, group_id, user_id, joined_at)
		VALUES ($1, $2, $3, $4)
	`, member.ID, member.GroupID, member.UserID, member.JoinedAt)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *Store) ListGroupMembers(ctx context.Context, groupID string) ([]MemberInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT gm.id, gm.user_id, u.username, gm.joined_at
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY gm.joined_at
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []MemberInfo{}
	for rows.Next() {
		var member MemberInfo
		if err := rows.Scan(&member.ID, &member.UserID, &member.Username, &member.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}
