package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"askmydocs-backend/internal/shared/server/middleware"
	"askmydocs-backend/internal/shared/server/respond"
)

// registerMeRoutes attaches the /me endpoint.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

func meHandler(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	response := gin.H{
		"userId": sess.UserID,
	}
	if sess.Email != "" {
		response["email"] = sess.Email
	}
	respond.JSON(c, http.StatusOK, response)
}
