package model

import "time"

// Role is the closed set of user roles. Stored lowercase in the database.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleClassRep Role = "class_rep"
	RoleLecturer Role = "lecturer"
	RoleStudent  Role = "student"
)

func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleAdmin, RoleClassRep, RoleLecturer, RoleStudent:
		return Role(value), true
	}
	return "", false
}

// ResourceType classifies an uploaded file within a unit.
type ResourceType string

const (
	ResourceDocument   ResourceType = "document"
	ResourceAssignment ResourceType = "assignment"
	ResourcePastPaper  ResourceType = "past_paper"
)

func ParseResourceType(value string) (ResourceType, bool) {
	switch ResourceType(value) {
	case ResourceDocument, ResourceAssignment, ResourcePastPaper:
		return ResourceType(value), true
	}
	return "", false
}

type User struct {
	ID                 string
	Username           string
	Email              string
	PasswordHash       string
	Role               Role
	RegistrationNumber *string
	CreatedAt          time.Time
}

type Server struct {
	ID          string
	Name        string
	JoinCode    string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
}

type ServerMember struct {
	ID       string
	ServerID string
	UserID   string
	JoinedAt time.Time
}

type Unit struct {
	ID        string
	ServerID  string
	Name      string
	Code      string
	CreatedBy string
	CreatedAt time.Time
}

type Resource struct {
	ID           string
	UnitID       string
	Title        string
	FileKey      string
	ResourceType ResourceType
	UploadedBy   string
	UploadedAt   time.Time
}

type AssignmentGroup struct {
	ID         string
	UnitID     string
	Name       string
	MaxMembers int
	CreatedBy  string
	CreatedAt  time.Time
}

type GroupMember struct {
	ID       string
	GroupID  string
	UserID   string
	JoinedAt time.Time
}

type RefreshSession struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	UserAgent *string
	IPAddress *string
}
