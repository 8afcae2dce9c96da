package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	registrationdomain "github.com/camphq/camppay/internal/registration/domain"
)

// PaymentReturn handles the applicant's browser coming back from the hosted
// payment page. The same signed envelope as the IPN rides on the query
// string.
func (s *Server) PaymentReturn(c *gin.Context) {
	r := c.Query("r")
	sig := c.Query("s")
	if r == "" || sig == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.gateway.VerifyCallback(c.Request.Context(), r, sig)
	if err != nil {
		s.log.Warn("payment return rejected", zap.Error(err))
		AbortWithError(c, err)
		return
	}

	reg, err := s.registrationSvc.ApplyGatewayResult(c.Request.Context(), result)
	if errors.Is(err, registrationdomain.ErrStaleCallback) {
		// The IPN usually wins the race; the browser just needs an answer.
		c.JSON(http.StatusOK, gin.H{
			"order_ref": result.OrderRef,
			"status":    "already_processed",
		})
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_ref":   reg.OrderRef,
		"status":      reg.Status,
		"fail_reason": reg.FailReason,
	})
}

// PaymentIPN handles the gateway's server-to-server notification. The
// gateway retries until it receives a 2xx, so duplicates are routine.
func (s *Server) PaymentIPN(c *gin.Context) {
	r := c.PostForm("r")
	sig := c.PostForm("s")
	if r == "" {
		r = c.Query("r")
		sig = c.Query("s")
	}
	if r == "" || sig == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.gateway.VerifyCallback(c.Request.Context(), r, sig)
	if err != nil {
		s.log.Warn("payment notification rejected", zap.Error(err))
		AbortWithError(c, err)
		return
	}

	reg, err := s.registrationSvc.ApplyGatewayResult(c.Request.Context(), result)
	if errors.Is(err, registrationdomain.ErrStaleCallback) {
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received":  true,
		"order_ref": reg.OrderRef,
		"status":    reg.Status,
	})
}
