package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/minhvu-dev/cardiopredict/internal/models"
	"github.com/minhvu-dev/cardiopredict/pkg/utils"
)

// parseSpace resolves the :space path parameter. An unknown space name is a
// client error and has already been responded to when ok is false.
func parseSpace(c *gin.Context) (*models.FeatureSpace, bool) {
	name := c.Param("space")
	space, ok := models.SpaceByName(name)
	if !ok {
		utils.ErrorResponse(c, http.StatusBadRequest, "Unknown feature space: "+name, nil)
		return nil, false
	}
	return space, true
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid id parameter", err)
		return 0, false
	}
	return uint(id), true
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, message string, err error) {
	var notFound *models.NotFoundError
	var mismatch *models.FeatureMismatchError
	var unavailable *models.ModelUnavailableError
	var insufficient *models.InsufficientDataError

	switch {
	case errors.As(err, &notFound):
		utils.ErrorResponse(c, http.StatusNotFound, message, err)
	case errors.As(err, &mismatch):
		utils.ErrorResponse(c, http.StatusBadRequest, message, err)
	case errors.As(err, &unavailable):
		utils.ErrorResponse(c, http.StatusInternalServerError, message, err)
	case errors.As(err, &insufficient):
		utils.ErrorResponse(c, http.StatusConflict, message, err)
	default:
		utils.ErrorResponse(c, http.StatusInternalServerError, message, err)
	}
}
