package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	session "github.com/sessionkeys/starknet-session/go"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleTypedData(c *gin.Context) {
	flow, ok := s.flow(c)
	if !ok {
		return
	}
	raw, ok := s.rawBody(c)
	if !ok {
		return
	}
	resp, err := s.buildTypedData(flow, raw)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRedemption(c *gin.Context) {
	flow, ok := s.flow(c)
	if !ok {
		return
	}
	raw, ok := s.rawBody(c)
	if !ok {
		return
	}
	resp, err := s.buildRedemption(flow, raw)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHints(c *gin.Context) {
	raw, ok := s.rawBody(c)
	if !ok {
		return
	}
	resp, err := s.resolveHints(raw)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) flow(c *gin.Context) (session.Flow, bool) {
	flow, err := session.ParseFlow(c.Param("flow"))
	if err != nil {
		s.fail(c, http.StatusNotFound, err)
		return "", false
	}
	return flow, true
}

func (s *Server) rawBody(c *gin.Context) ([]byte, bool) {
	raw, err := c.GetRawData()
	if err != nil {
		s.fail(c, http.StatusBadRequest, session.NewSessionError(session.ErrCodeInvalidRequest, "failed to read request body", nil))
		return nil, false
	}
	return raw, true
}

// fail writes err as {"error": SessionError}. Unclassified errors become 500s.
func (s *Server) fail(c *gin.Context, status int, err error) {
	sessionErr := session.AsSessionError(err)
	if sessionErr.Code == session.ErrCodeInternal {
		status = http.StatusInternalServerError
	}
	loggerFrom(c, s.logger).Warn("request failed",
		zap.String("code", sessionErr.Code),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(status, gin.H{"error": sessionErr})
}
