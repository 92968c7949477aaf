// Package admission decides who may join or create what. Every operation
// takes the authenticated identity explicitly; nothing here reads ambient
// session state.
package admission

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tasktide/internal/model"
)

// Identity is the resolved caller attached to a request.
type Identity struct {
	UserID string
	Role   model.Role
}

type Decision string

const (
	Joined        Decision = "joined"
	AlreadyMember Decision = "already_member"
	Full          Decision = "full"
	NotFound      Decision = "not_found"
)

type JoinResult struct {
	Decision Decision
	// Name of the server or group joined, for the response message.
	Name string
}

var (
	ErrValidation       = errors.New("validation failed")
	ErrForbidden        = errors.New("forbidden")
	ErrJoinCodeConflict = errors.New("join code conflict")
)

// Store is the slice of the repository the engine commits through.
type Store interface {
	GetServerByJoinCode(ctx context.Context, joinCode string) (model.Server, error)
	ServerMemberExists(ctx context.Context, serverID, userID string) (bool, error)
	CreateServerMember(ctx context.Context, member model.ServerMember) error
	CreateServer(ctx context.Context, server model.Server) error
	GetGroupByID(ctx context.Context, groupID string) (model.AssignmentGroup, error)
	GroupMemberExists(ctx context.Context, groupID, userID string) (bool, error)
	InsertGroupMemberBelowCapacity(ctx context.Context, member model.GroupMember) (bool, error)
}

type Engine struct {
	store            Store
	joinCodeAttempts int
}

func NewEngine(store Store, joinCodeAttempts int) *Engine {
	if joinCodeAttempts <= 0 {
		joinCodeAttempts = 5
	}
	return &Engine{store: store, joinCodeAttempts: joinCodeAttempts}
}

// JoinServer redeems a join code for the caller. Joining a server the caller
// already belongs to is an idempotent success, never an error.
func (e *Engine) JoinServer(ctx context.Context, identity Identity, joinCode string) (JoinResult, error) {
	joinCode = strings.ToUpper(strings.TrimSpace(joinCode))
	if joinCode == "" {
		return JoinResult{}, ErrValidation
	}

	server, err := e.store.GetServerByJoinCode(ctx, joinCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JoinResult{Decision: NotFound}, nil
		}
		return JoinResult{}, err
	}

	exists, err := e.store.ServerMemberExists(ctx, server.ID, identity.UserID)
	if err != nil {
		return JoinResult{}, err
	}
	if exists {
		return JoinResult{Decision: AlreadyMember, Name: server.Name}, nil
	}

	member := model.ServerMember{
		ID:       uuid.NewString(),
		ServerID: server.ID,
		UserID:   identity.UserID,
		JoinedAt: time.Now().UTC(),
	}
	if err := e.store.CreateServerMember(ctx, member); err != nil {
		// Two requests raced past the duplicate check; the unique
		// constraint on (server_id, user_id) is the final authority.
		if isUniqueViolation(err) {
			return JoinResult{Decision: AlreadyMember, Name: server.Name}, nil
		}
		return JoinResult{}, err
	}
	return JoinResult{Decision: Joined, Name: server.Name}, nil
}

// JoinGroup admits the caller into a bounded assignment group. The duplicate
// check runs before the capacity check so a member of a full group sees
// AlreadyMember, never Full.
func (e *Engine) JoinGroup(ctx context.Context, identity Identity, groupID string) (JoinResult, error) {
	group, err := e.store.GetGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JoinResult{Decision: NotFound}, nil
		}
		return JoinResult{}, err
	}

	exists, err := e.store.GroupMemberExists(ctx, group.ID, identity.UserID)
	if err != nil {
		return JoinResult{}, err
	}
	if exists {
		return JoinResult{Decision: AlreadyMember, Name: group.Name}, nil
	}

	member := model.GroupMember{
		ID:       uuid.NewString(),
		GroupID:  group.ID,
		UserID:   identity.UserID,
		JoinedAt: time.Now().UTC(),
	}
	inserted, err := e.store.InsertGroupMemberBelowCapacity(ctx, member)
	if err != nil {
		if isUniqueViolation(err) {
			return JoinResult{Decision: AlreadyMember, Name: group.Name}, nil
		}
		// The group can disappear between the lookup and the locked insert.
		if errors.Is(err, pgx.ErrNoRows) {
			return JoinResult{Decision: NotFound}, nil
		}
		return JoinResult{}, err
	}
	if !inserted {
		return JoinResult{Decision: Full, Name: group.Name}, nil
	}
	return JoinResult{Decision: Joined, Name: group.Name}, nil
}

// NewServer creates a classroom server with a fresh join code, retrying
// generation on a code collision. created_by always comes from the identity.
func (e *Engine) NewServer(ctx context.Context, identity Identity, name, description string) (model.Server, error) {
	if !CanCreateContent(identity.Role) {
		return model.Server{}, ErrForbidden
	}
	if strings.TrimSpace(name) == "" {
		return model.Server{}, ErrValidation
	}

	for attempt := 0; attempt < e.joinCodeAttempts; attempt++ {
		code, err := GenerateJoinCode()
		if err != nil {
			return model.Server{}, err
		}
		server := model.Server{
			ID:          uuid.NewString(),
			Name:        name,
			JoinCode:    code,
			Description: description,
			CreatedBy:   identity.UserID,
			CreatedAt:   time.Now().UTC(),
		}
		err = e.store.CreateServer(ctx, server)
		if err == nil {
			return server, nil
		}
		if !isUniqueViolation(err) {
			return model.Server{}, err
		}
	}
	return model.Server{}, ErrJoinCodeConflict
}

// CanCreateContent reports whether the role may create servers, units and
// resources: every role except Student.
func CanCreateContent(role model.Role) bool {
	switch role {
	case model.RoleAdmin, model.RoleClassRep, model.RoleLecturer:
		return true
	case model.RoleStudent:
		return false
	}
	return false
}

// CanCreateGroup reports whether the role may create assignment groups:
// class reps and admins only.
func CanCreateGroup(role model.Role) bool {
	switch role {
	case model.RoleAdmin, model.RoleClassRep:
		return true
	case model.RoleLecturer, model.RoleStudent:
		return false
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
