package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/moneymap/internal/graph"
	"github.com/roach88/moneymap/internal/store"
	"github.com/roach88/moneymap/internal/workspace"
)

// GraphResponse is returned by GET /graph.
type GraphResponse struct {
	Workspace store.Workspace `json:"workspace"`
	Graph     graph.Snapshot  `json:"graph"`
}

// PublishResponse is returned by PUT /graph and POST /change-requests.
type PublishResponse struct {
	RequestID string         `json:"requestId,omitempty"`
	IDMaps    graph.IDMaps   `json:"idMaps"`
	Skipped   int            `json:"skipped"`
	Graph     graph.Snapshot `json:"graph"`
}

// AuditResponse is returned by GET /audit.
type AuditResponse struct {
	Events []store.AuditEvent `json:"events"`
}

// DiffsResponse is returned by GET /diffs.
type DiffsResponse struct {
	Diffs []store.Diff `json:"diffs"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// variant reads ?variant=, defaulting to live.
func variant(c *gin.Context) (store.Variant, error) {
	v := store.Variant(c.DefaultQuery("variant", string(store.VariantLive)))
	if !v.Valid() {
		return "", fmt.Errorf("variant %q: %w", v, workspace.ErrInvalidVariant)
	}
	return v, nil
}

// bindGraph decodes and validates a whole-graph body.
func (s *Server) bindGraph(c *gin.Context) (store.Payload, bool) {
	var snap graph.Snapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		s.badRequest(c, err)
		return store.Payload{}, false
	}
	if err := graph.ValidateStructure(snap); err != nil {
		s.fail(c, err)
		return store.Payload{}, false
	}
	return store.PayloadFromSnapshot(snap), true
}

func (s *Server) handleGetGraph(c *gin.Context) {
	v, err := variant(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	snap, ws, err := s.manager.Load(c.Request.Context(), c.Param("household"), v)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GraphResponse{Workspace: ws, Graph: snap})
}

func (s *Server) handlePublishGraph(c *gin.Context) {
	v, err := variant(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	payload, ok := s.bindGraph(c)
	if !ok {
		return
	}
	res, err := s.manager.Publish(c.Request.Context(), c.Param("household"), v, actor(c), payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PublishResponse{IDMaps: res.IDMaps, Skipped: res.Skipped, Graph: res.Snapshot})
}

func (s *Server) handleChangeRequest(c *gin.Context) {
	payload, ok := s.bindGraph(c)
	if !ok {
		return
	}
	res, err := s.manager.SubmitChangeRequest(c.Request.Context(), c.Param("household"), actor(c), payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, PublishResponse{
		RequestID: res.RequestID,
		IDMaps:    res.IDMaps,
		Skipped:   res.Skipped,
		Graph:     res.Snapshot,
	})
}

func (s *Server) handleResetSandbox(c *gin.Context) {
	res, err := s.manager.ResetSandbox(c.Request.Context(), c.Param("household"), actor(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleApplySandbox(c *gin.Context) {
	res, err := s.manager.ApplySandbox(c.Request.Context(), c.Param("household"), actor(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleDiffs(c *gin.Context) {
	diffs, err := s.manager.Diffs(c.Request.Context(), c.Param("household"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, DiffsResponse{Diffs: diffs})
}

func (s *Server) handleAudit(c *gin.Context) {
	evs, err := s.manager.AuditEvents(c.Request.Context(), c.Param("household"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, AuditResponse{Events: evs})
}

func (s *Server) handleDeleteWorkspace(c *gin.Context) {
	v := store.Variant(c.Param("variant"))
	if err := s.manager.DeleteWorkspace(c.Request.Context(), c.Param("household"), v, actor(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteHousehold(c *gin.Context) {
	n, err := s.manager.DeleteHousehold(c.Request.Context(), c.Param("household"), actor(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
