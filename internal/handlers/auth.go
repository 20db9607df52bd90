package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"dashboard-backend/internal/ctxkeys"
	"dashboard-backend/internal/database"
	"dashboard-backend/internal/models"
)

// tokenTTL is how long an issued JWT stays valid.
const tokenTTL = 7 * 24 * time.Hour

// AdminStore looks up dashboard operators.
type AdminStore interface {
	FindByUsername(ctx context.Context, username string) (models.Admin, error)
	FindByID(ctx context.Context, id string) (models.Admin, error)
}

// AuthHandler manages admin login and profile retrieval.
type AuthHandler struct {
	admins    AdminStore
	jwtSecret []byte
	log       *zap.Logger
	now       func() time.Time
}

// NewAuthHandler creates an AuthHandler with the given admin store and JWT signing key.
func NewAuthHandler(admins AdminStore, jwtSecret string, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		admins:    admins,
		jwtSecret: []byte(jwtSecret),
		log:       log,
		now:       time.Now,
	}
}

// Login authenticates an admin with username + password and returns a JWT token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		JSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"success": false,
			"error":   "Validation failed",
			"details": errs,
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	admin, err := h.admins.FindByUsername(ctx, req.Username)
	if err != nil {
		if !errors.Is(err, database.ErrNoAdmin) {
			h.log.Error("admin lookup failed", zap.Error(err))
		}
		// Same message either way, to prevent username enumeration.
		JSONError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		JSONError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := h.generateToken(admin.ID, admin.Role)
	if err != nil {
		h.log.Error("failed to sign token", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	h.log.Info("admin logged in", zap.String("admin_id", admin.ID))
	JSON(w, http.StatusOK, models.AuthResponse{
		Token: token,
		Admin: admin,
	})
}

// GetMe returns the profile of the currently authenticated admin.
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	admin, err := h.admins.FindByID(ctx, ctxkeys.GetUserID(r.Context()))
	if err != nil {
		if !errors.Is(err, database.ErrNoAdmin) {
			h.log.Error("admin lookup failed", zap.Error(err))
		}
		JSONError(w, http.StatusNotFound, "Admin not found")
		return
	}

	JSON(w, http.StatusOK, admin)
}

// generateToken creates a signed JWT with admin ID and role as claims.
func (h *AuthHandler) generateToken(adminID, role string) (string, error) {
	now := h.now()
	claims := jwt.MapClaims{
		"userId": adminID,
		"role":   role,
		"exp":    now.Add(tokenTTL).Unix(),
		"iat":    now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}
