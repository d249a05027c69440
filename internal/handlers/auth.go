package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fieldfolio/fieldfoliogo/internal/models"
	"github.com/fieldfolio/fieldfoliogo/internal/utils"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// login handles user login
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var loginReq LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&loginReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	// 1. Find User
	var user models.UserAuth
	if err := r.db.Where("email = ?", loginReq.Email).First(&user).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// 2. Check Password
	if !utils.CheckPasswordHash(loginReq.Password, user.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// 3. Update Last Login
	now := time.Now()
	user.LastLogin = &now
	r.db.Save(&user)

	// 4. Bind the session and re-derive the app state
	if err := r.provider.SetAccount(req.Context(), user.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to bind account session")
		return
	}
	state := r.coordinator.Refresh(req.Context())

	// 5. Generate Tokens
	accessToken, refreshToken, err := utils.GenerateTokens(&user, r.cfg)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": map[string]string{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
		"user":     user,
		"appState": state,
	})
}

// register handles user registration
func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var regReq RegisterRequest
	if err := json.NewDecoder(req.Body).Decode(&regReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	// 1. Hash Password
	hashedPassword, err := utils.HashPassword(regReq.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	// 2. Create User
	user := models.UserAuth{
		Email:    regReq.Email,
		Password: hashedPassword,
		Name:     regReq.Name,
		Role:     "owner",
		IsActive: true,
	}

	if err := r.db.Create(&user).Error; err != nil {
		respondError(w, http.StatusBadRequest, "Failed to create user (email might exist)")
		return
	}

	// 3. Bind session and derive the initial app state
	if err := r.provider.SetAccount(req.Context(), user.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "User created but failed to bind session")
		return
	}
	state := r.coordinator.Refresh(req.Context())

	// 4. Generate Tokens for immediate login
	accessToken, refreshToken, err := utils.GenerateTokens(&user, r.cfg)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "User created but failed to generate tokens")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"tokens": map[string]string{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
		"user":     user,
		"appState": state,
	})
}

// logout handles user logout
func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	r.provider.ClearAccount()
	state := r.coordinator.Refresh(req.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Logged out successfully",
		"appState": state,
	})
}
