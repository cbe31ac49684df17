package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"sheetboard/config"
	"sheetboard/editor"
	"sheetboard/errs"
	"sheetboard/obs"
	"sheetboard/utils"
)

// RemoteStatusResponse describes the remote sync state of this process.
type RemoteStatusResponse struct {
	Configured   bool   `json:"configured"`
	TokenHeld    bool   `json:"token_held"`
	VersionToken string `json:"version_token,omitempty"`
	Branch       string `json:"branch,omitempty"`
	Path         string `json:"path,omitempty"`
}

// RemoteStatusHandler reports whether sync is configured and which version
// token this process currently holds.
// @Summary      Remote Sync Status
// @Tags         Remote
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  RemoteStatusResponse
// @Failure      401  {object}  utils.APIError
// @Router       /remote/status [get]
func RemoteStatusHandler(c *gin.Context, ed *editor.Editor, cfg *config.Config) {
	resp := RemoteStatusResponse{
		Configured:   ed.RemoteConfigured(),
		TokenHeld:    ed.VersionToken() != "",
		VersionToken: ed.VersionToken(),
	}
	if resp.Configured {
		resp.Branch = cfg.RemoteBranch
		resp.Path = cfg.RemotePath
	}
	c.JSON(http.StatusOK, resp)
}

// FetchRemoteHandler pulls the remote workbook over the local one.
// @Summary      Fetch Remote Workbook
// @Description  Downloads the remote workbook, overwrites the local file with it, invalidates the dataset cache, and stores the new version token for subsequent saves. This is also the recovery step after a save conflict.
// @Tags         Remote
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  RemoteStatusResponse
// @Failure      401  {object}  utils.APIError
// @Failure      403  {object}  utils.APIError
// @Failure      404  {object}  utils.APIError "The remote file does not exist."
// @Failure      500  {object}  utils.APIError "The fetched bytes could not be written locally."
// @Failure      502  {object}  utils.APIError "The remote store rejected the credential or could not be reached."
// @Router       /remote/fetch [post]
func FetchRemoteHandler(c *gin.Context, ed *editor.Editor, cfg *config.Config) {
	if !ed.RemoteConfigured() {
		utils.GinBadRequest(c, "Remote sync is not configured.")
		return
	}

	if err := ed.FetchRemote(c.Request.Context()); err != nil {
		switch {
		case errors.Is(err, errs.ErrNotFound):
			obs.ObserveRemote("fetch", "not_found")
			utils.GinNotFound(c, "Remote file not found.")
		case errors.Is(err, errs.ErrAuthError):
			obs.ObserveRemote("fetch", "auth_error")
			utils.GinBadGateway(c, "The remote store rejected the configured credential.")
		case errors.Is(err, errs.ErrNetworkError):
			obs.ObserveRemote("fetch", "network_error")
			utils.GinBadGateway(c, "The remote store could not be reached.")
		default:
			obs.ObserveRemote("fetch", "error")
			utils.GinInternalServerError(c, fmt.Sprintf("Fetch failed: %v", err))
		}
		return
	}

	obs.ObserveRemote("fetch", "ok")
	c.JSON(http.StatusOK, RemoteStatusResponse{
		Configured:   true,
		TokenHeld:    true,
		VersionToken: ed.VersionToken(),
		Branch:       cfg.RemoteBranch,
		Path:         cfg.RemotePath,
	})
}
