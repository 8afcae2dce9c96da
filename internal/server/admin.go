package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	registrationdomain "github.com/camphq/camppay/internal/registration/domain"
)

func (s *Server) ListRegistrations(c *gin.Context) {
	var req registrationdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.registrationSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
