package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tasktide/internal/auth"
	"tasktide/internal/crypto"
	"tasktide/internal/model"
)

type registerRequest struct {
	Username           string `json:"username"`
	Email              string `json:"email"`
	Password           string `json:"password"`
	Role               string `json:"role"`
	RegistrationNumber string `json:"registration_number"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type authResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         userSummary `json:"user"`
}

type userSummary struct {
	ID                 string  `json:"id"`
	Username           string  `json:"username"`
	Email              string  `json:"email"`
	Role               string  `json:"role"`
	RegistrationNumber *string `json:"registration_number,omitempty"`
	CreatedAt          int64   `json:"created_at"`
}

func summarizeUser(user model.User) userSummary {
	return userSummary{
		ID:                 user.ID,
		Username:           user.Username,
		Email:              user.Email,
		Role:               string(user.Role),
		RegistrationNumber: user.RegistrationNumber,
		CreatedAt:          user.CreatedAt.Unix(),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	role := model.RoleStudent
	if req.Role != "" {
		parsed, ok := model.ParseRole(req.Role)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_role")
			return
		}
		// Admin is never self-assignable at registration.
		if parsed == model.RoleAdmin {
			writeError(w, http.StatusForbidden, "role_not_allowed")
			return
		}
		role = parsed
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	user := model.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if reg := strings.TrimSpace(req.RegistrationNumber); reg != "" {
		user.RegistrationNumber = &reg
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "users_email_key":
				writeError(w, http.StatusConflict, "email_taken")
			case "users_registration_number_key":
				writeError(w, http.StatusConflict, "registration_number_taken")
			default:
				writeError(w, http.StatusConflict, "username_taken")
			}
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusCreated, summarizeUser(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Password == "" || (req.Username == "" && req.Email == "") {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	var user model.User
	var err error
	if req.Username != "" {
		user, err = s.store.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	} else {
		user, err = s.store.GetUserByEmail(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	accessToken, refreshToken, err := s.issueTokens(r.Context(), user, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         summarizeUser(user),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	session, err := s.store.GetRefreshSession(r.Context(), crypto.HashToken(req.RefreshToken))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
		return
	}
	now := time.Now().UTC()
	if session.RevokedAt != nil || now.After(session.ExpiresAt) {
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), session.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
		return
	}

	// Rotation: the presented token is spent either way.
	if err := s.store.RevokeRefreshSession(r.Context(), session.ID, now); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	accessToken, refreshToken, err := s.issueTokens(r.Context(), user, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         summarizeUser(user),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if req.RefreshToken != "" {
		session, err := s.store.GetRefreshSession(r.Context(), crypto.HashToken(req.RefreshToken))
		if err == nil && session.RevokedAt == nil {
			if err := s.store.RevokeRefreshSession(r.Context(), session.ID, time.Now().UTC()); err != nil {
				writeError(w, http.StatusInternalServerError, "server_error")
				return
			}
		}
	}

	// With redis configured the presented access token is denylisted for its
	// remaining life; without it the token simply ages out.
	if s.redis != nil {
		token := bearerToken(r.Header.Get("Authorization"))
		if claims := claimsFromContext(r.Context()); claims != nil && claims.ExpiresAt != nil {
			ttl := time.Until(claims.ExpiresAt.Time)
			if ttl > 0 {
				_ = s.redis.Set(r.Context(), revocationKey(token), "1", ttl).Err()
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, summarizeUser(user))
}

func (s *Server) issueTokens(ctx context.Context, user model.User, userAgent, ip string) (string, string, error) {
	accessToken, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID: user.ID,
		Role:   user.Role,
	})
	if err != nil {
		return "", "", err
	}

	refreshToken, err := crypto.NewRefreshToken()
	if err != nil {
		return "", "", err
	}

	now := time.Now().UTC()
	session := model.RefreshSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: crypto.HashToken(refreshToken),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}
	if userAgent != "" {
		session.UserAgent = &userAgent
	}
	if ip != "" {
		session.IPAddress = &ip
	}

	if err := s.store.CreateRefreshSession(ctx, session); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}
