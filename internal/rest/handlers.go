package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"meshdiag/internal/api"
	"meshdiag/internal/diag"
)

// handleDiagnostics runs one collection and answers once its deadline
// has passed.
func (s *Server) handleDiagnostics(c *gin.Context) {
	snap, err := s.engine.Collect(c.Request.Context(), s.opts.PollInterval)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	s.record(snap)
	c.JSON(http.StatusOK, snap.Records())
}

func (s *Server) handleStartCollection(c *gin.Context) {
	p, err := s.engine.StartCollection()
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusAccepted, api.StartResponse{ID: p.ID, Started: true})
}

// handlePollCollection answers 202 while the cycle is pending and 200
// with its snapshot once. Cycles not polled within collect timeout plus
// retention may be dropped and then answer 404.
func (s *Server) handlePollCollection(c *gin.Context) {
	id := c.Param("id")
	snap, done, err := s.engine.PollCollection(id)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	if !done {
		c.JSON(http.StatusAccepted, api.PendingResponse{ID: id, Started: true, Complete: false})
		return
	}
	s.record(snap)
	c.JSON(http.StatusOK, snap.Records())
}

func (s *Server) handleNodes(c *gin.Context) {
	c.JSON(http.StatusOK, s.nodes())
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Status:  "ok",
		Pending: s.engine.PendingCount(),
		Entries: len(s.engine.Entries()),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, diag.ErrUnknownCollection):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, err error) {
	c.JSON(status, api.ErrorResponse{Error: err.Error()})
}
