package repository

import (
	"context"
	"time"

	"tasktide/internal/model"
)

func (s *Store) CreateServer(ctx context.Context, server model.Server) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO servers (id, name, join_code, description, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, server.ID, server.Name, server.JoinCode, server.Description, server.CreatedBy, server.CreatedAt)
	return err
}

func (s *Store) GetServerByID(ctx context.Context, serverID string) (model.Server, error) {
	return s.scanServer(ctx, `WHERE id = $1`, serverID)
}

func (s *Store) GetServerByJoinCode(ctx context.Context, joinCode string) (model.Server, error) {
	return s.scanServer(ctx, `WHERE join_code = $1`, joinCode)
}

func (s *Store) scanServer(ctx context.Context, where string, arg string) (model.Server, error) {
	var server model.Server
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, join_code, description, created_by, created_at
		FROM servers
	`+where, arg)
	err := row.Scan(&server.ID, &server.Name, &server.JoinCode, &server.Description, &server.CreatedBy, &server.CreatedAt)
	return server, err
}

// ListServersForUser returns the union of servers the user created and
// servers the user has joined, without duplicates.
func (s *Store) ListServersForUser(ctx context.Context, userID string) ([]model.Server, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT sv.id, sv.name, sv.join_code, sv.description, sv.created_by, sv.created_at
		FROM servers sv
		LEFT JOIN server_members sm ON sm.server_id = sv.id
		WHERE sv.created_by = $1 OR sm.user_id = $1
		ORDER BY sv.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	servers := []model.Server{}
	for rows.Next() {
		var server model.Server
		if err := rows.Scan(&server.ID, &server.Name, &server.JoinCode, &server.Description, &server.CreatedBy, &server.CreatedAt); err != nil {
			return nil, err
		}
		servers = append(servers, server)
	}
	return servers, rows.Err()
}

func (s *Store) DeleteServer(ctx context.Context, serverID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM servers WHERE id = $1`, serverID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CreateServerMember(ctx context.Context, member model.ServerMember) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO server_members (id, server_id, user_id, joined_at)
		VALUES ($1, $2, $3, $4)
	`, member.ID, member.ServerID, member.UserID, member.JoinedAt)
	return err
}

func (s *Store) ServerMemberExists(ctx context.Context, serverID, userID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM server_members WHERE server_id = $1 AND user_id = $2)
	`, serverID, userID).Scan(&exists)
	return exists, err
}

// MemberInfo is a membership row joined with the member's username.
type MemberInfo struct {
	ID       string
	UserID   string
	Username string
	JoinedAt time.Time
}

func (s *Store) ListServerMembers(ctx context.Context, serverID string) ([]MemberInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sm.id, sm.user_id, u.username, sm.joined_at
		FROM server_members sm
		JOIN users u ON u.id = sm.user_id
		WHERE sm.server_id = $1
		ORDER BY sm.joined_at
	`, serverID)
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
