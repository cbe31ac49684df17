package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"sheetboard/config"
	"sheetboard/db"
	"sheetboard/errs"
	"sheetboard/obs"
	"sheetboard/utils"
)

// LoginRequest is the login form body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the bearer token and the session facts the UI needs.
type LoginResponse struct {
	Token       string   `json:"token"`
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	ExpiresIn   int64    `json:"expires_in_seconds"`
}

// LoginHandler authenticates a user and activates a session.
// @Summary      Log In
// @Description  Validates the username and password against the credential store and activates a session in the registry, subject to the single-session rule and the global concurrency cap. Returns a bearer token valid for the configured session duration.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        credentials body LoginRequest true "Username and password"
// @Success      200  {object}  LoginResponse "Session activated; use the token as 'Bearer {token}'."
// @Failure      400  {object}  utils.APIError "Malformed request body."
// @Failure      401  {object}  utils.APIError "Unknown username or wrong password."
// @Failure      409  {object}  utils.APIError "This user already has an active session elsewhere."
// @Failure      429  {object}  utils.APIError "The concurrent-session cap has been reached. Wait for a session to expire or log out."
// @Failure      500  {object}  utils.APIError "The session registry could not be persisted."
// @Router       /auth/login [post]
func LoginHandler(c *gin.Context, registry db.SessionRegistry, cfg *config.Config) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinBadRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	user, err := registry.Login(req.Username, req.Password, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrBadCredential):
			obs.ObserveLogin("bad_credential")
			utils.GinUnauthorized(c, "Invalid username or password.")
		case errors.Is(err, errs.ErrAlreadyActive):
			obs.ObserveLogin("already_active")
			utils.GinConflict(c, "This user already has an active session.")
		case errors.Is(err, errs.ErrCapacityExceeded):
			obs.ObserveLogin("capacity")
			utils.GinTooManyRequests(c, "Maximum number of concurrent users reached. Try again later.")
		default:
			obs.ObserveLogin("error")
			utils.GinInternalServerError(c, fmt.Sprintf("Login failed: %v", err))
		}
		return
	}

	token, err := utils.GenerateJWT(user, cfg)
	if err != nil {
		obs.ObserveLogin("error")
		utils.GinInternalServerError(c, "Failed to issue session token.")
		return
	}

	obs.ObserveLogin("ok")
	obs.SetActiveSessions(registry.ActiveCount())

	c.JSON(200, LoginResponse{
		Token:       token,
		Username:    user.Username,
		Role:        string(user.Role),
		Permissions: user.Permissions,
		ExpiresIn:   int64(cfg.SessionDuration.Seconds()),
	})
}

// LogoutHandler ends the caller's session.
// @Summary      Log Out
// @Description  Deactivates the caller's session in the registry. The client must discard the bearer token and all session-scoped state.
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  utils.APIError
// @Failure      500  {object}  utils.APIError
// @Router       /auth/logout [post]
func LogoutHandler(c *gin.Context, registry db.SessionRegistry, cfg *config.Config) {
	username := c.GetString("username")

	if err := registry.Logout(username); err != nil {
		utils.GinInternalServerError(c, fmt.Sprintf("Failed to log out: %v", err))
		return
	}
	obs.SetActiveSessions(registry.ActiveCount())

	c.JSON(200, gin.H{"message": "Logged out. Discard your token."})
}

// SessionStatusResponse describes the caller's current session.
type SessionStatusResponse struct {
	Username         string   `json:"username"`
	Role             string   `json:"role"`
	Permissions      []string `json:"permissions"`
	RemainingSeconds int64    `json:"remaining_seconds"`
}

// SessionStatusHandler reports the remaining session time and the caller's role.
// @Summary      Session Status
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  SessionStatusResponse
// @Failure      401  {object}  utils.APIError
// @Router       /session [get]
func SessionStatusHandler(c *gin.Context, registry db.SessionRegistry, creds db.CredentialStore, cfg *config.Config) {
	username := c.GetString("username")

	remaining, active := registry.Remaining(username, time.Now())
	if !active {
		// The middleware already verified the session; losing it between
		// there and here means it expired on the boundary.
		utils.GinUnauthorized(c, "Session expired. Please log in again.")
		return
	}

	user, found := creds.Get(username)
	if !found {
		utils.GinUnauthorized(c, "Account no longer exists.")
		return
	}

	c.JSON(200, SessionStatusResponse{
		Username:         username,
		Role:             string(user.Role),
		Permissions:      user.Permissions,
		RemainingSeconds: int64(remaining.Seconds()),
	})
}
