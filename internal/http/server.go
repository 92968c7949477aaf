package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"tasktide/internal/admission"
	"tasktide/internal/auth"
	"tasktide/internal/config"
	"tasktide/internal/crypto"
	"tasktide/internal/repository"
	"tasktide/internal/storage"
)

type Server struct {
	cfg    config.Config
	store  *repository.Store
	engine *admission.Engine
	blobs  storage.BlobStore
	redis  *redis.Client
}

func NewServer(cfg config.Config, store *repository.Store, engine *admission.Engine, blobs storage.BlobStore, redisClient *redis.Client) *Server {
	return &Server{
		cfg:    cfg,
		store:  store,
		engine: engine,
		blobs:  blobs,
		redis:  redisClient,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)
	r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)
	r.With(s.authMiddleware).Get("/auth/me", s.handleGetMe)

	r.Route("/servers", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListServers)
		r.Post("/", s.handleCreateServer)
		r.Post("/join", s.handleJoinServer)
		r.Get("/{serverId}/members", s.handleListServerMembers)
		r.Delete("/{serverId}", s.handleDeleteServer)
	})

	r.Route("/units", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListUnits)
		r.Post("/", s.handleCreateUnit)
		r.Delete("/{unitId}", s.handleDeleteUnit)
	})

	r.Route("/resources", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListResources)
		r.Post("/", s.handleCreateResource)
		r.Get("/{resourceId}/download", s.handleDownloadResource)
	})

	r.Route("/groups", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListGroups)
		r.Post("/", s.handleCreateGroup)
		r.Post("/{groupId}/join", s.handleJoinGroup)
		r.Get("/{groupId}/members", s.handleListGroupMembers)
		r.Delete("/{groupId}", s.handleDeleteGroup)
	})

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		if s.isTokenRevoked(r.Context(), token) {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func identityFromContext(ctx context.Context) (admission.Identity, bool) {
	claims := claimsFromContext(ctx)
	if claims == nil {
		return admission.Identity{}, false
	}
	return admission.Identity{UserID: claims.UserID, Role: claims.Role}, true
}

func revocationKey(token string) string {
	return "revoked:" + crypto.HashToken(token)
}

func (s *Server) isTokenRevoked(ctx context.Context, token string) bool {
	if s.redis == nil {
		return false
	}
	count, err := s.redis.Exists(ctx, revocationKey(token)).Result()
	if err != nil {
		// Redis being down must not lock everyone out.
		return false
	}
	return count > 0
}

// Helpers

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return ""
}
