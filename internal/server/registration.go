package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	registrationdomain "github.com/camphq/camppay/internal/registration/domain"
)

func (s *Server) SubmitRegistration(c *gin.Context) {
	var req registrationdomain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CreatedBy = c.ClientIP()

	resp, err := s.registrationSvc.Submit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"registration": resp.Registration,
		"payment_url":  resp.PaymentURL,
	})
}
