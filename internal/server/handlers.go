package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apierrors "github.com/orialabs/voicedeck/internal/errors"
	"github.com/orialabs/voicedeck/internal/usage"
)

func parseUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("invalid user id"))
		return uuid.Nil, false
	}
	return id, true
}

// handleGetUsage returns the user's rolling usage for the current cycle
func (s *APIServer) handleGetUsage(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	summary, err := s.aggregator.Summarize(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, usage.ErrUserNotFound) {
			respondError(c, apierrors.ErrUserNotFoundError)
			return
		}
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// handleListCalls returns the user's recent call records
func (s *APIServer) handleListCalls(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.callStore.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": records, "count": len(records)})
}

// handleQueueState exposes the enforcement queue to the dashboard
func (s *APIServer) handleQueueState(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, err := s.queue.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	pending, err := s.queue.CountPending(c.Request.Context())
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending, "items": items})
}

// handleRollover is the externally scheduled cycle-rollover trigger
func (s *APIServer) handleRollover(c *gin.Context) {
	result, err := s.rollover.Run(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleProcessQueue triggers one queue-processing pass
func (s *APIServer) handleProcessQueue(c *gin.Context) {
	result, err := s.processor.Run(c.Request.Context())
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, result)
}
