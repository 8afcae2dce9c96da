package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	catalogdomain "github.com/camphq/camppay/internal/catalog/domain"
)

type trackInfo struct {
	catalogdomain.Track
	ApplyStartsAt string `json:"apply_starts_at,omitempty"`
	ApplyEndsAt   string `json:"apply_ends_at,omitempty"`
}

func (s *Server) ListTracks(c *gin.Context) {
	tracks := s.catalogSvc.ListTracks()
	out := make([]trackInfo, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, newTrackInfo(t))
	}
	c.JSON(http.StatusOK, gin.H{"tracks": out})
}

func (s *Server) GetTrack(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	track, err := s.catalogSvc.GetTrack(id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTrackInfo(track))
}

func (s *Server) GetEligibility(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	decision, err := s.registrationSvc.CanRegister(c.Request.Context(), id, s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

func newTrackInfo(t catalogdomain.Track) trackInfo {
	info := trackInfo{Track: t}
	if t.HasApplyWindow() {
		start, end := t.ApplyWindow()
		info.ApplyStartsAt = start.Format("2006-01-02")
		info.ApplyEndsAt = end.Format("2006-01-02")
	}
	return info
}
