package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roach88/moneymap/internal/graph"
	"github.com/roach88/moneymap/internal/store"
	"github.com/roach88/moneymap/internal/workspace"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	NodeID  string `json:"nodeId,omitempty"`
}

// Error codes not derived from a graph.ValidationCode.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidVariant   = "INVALID_VARIANT"
	CodeNotFound         = "NOT_FOUND"
	CodeNoPair           = "NO_PAIR"
	CodeLiveDelete       = "LIVE_DELETE"
	CodePendingRequest   = "PENDING_REQUEST"
	CodeApprovalRequired = "APPROVAL_REQUIRED"
	CodeInternal         = "INTERNAL"
)

var conflicts = []struct {
	err  error
	code string
}{
	{workspace.ErrNoPair, CodeNoPair},
	{workspace.ErrLiveDelete, CodeLiveDelete},
	{workspace.ErrPendingRequest, CodePendingRequest},
	{workspace.ErrApprovalRequired, CodeApprovalRequired},
}

// statusFor maps an error to an HTTP status and body.
func statusFor(err error) (int, ErrorDetail) {
	var ve *graph.ValidationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity, ErrorDetail{Code: string(ve.Code), Message: err.Error(), NodeID: ve.NodeID}
	}
	if errors.Is(err, workspace.ErrInvalidVariant) {
		return http.StatusBadRequest, ErrorDetail{Code: CodeInvalidVariant, Message: err.Error()}
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, graph.ErrNotFound) {
		return http.StatusNotFound, ErrorDetail{Code: CodeNotFound, Message: err.Error()}
	}
	for _, c := range conflicts {
		if errors.Is(err, c.err) {
			return http.StatusConflict, ErrorDetail{Code: c.code, Message: err.Error()}
		}
	}
	return http.StatusInternalServerError, ErrorDetail{Code: CodeInternal, Message: "internal error"}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, ErrorResponse{Error: detail})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	s.logger.Debug("invalid request", zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{Code: CodeInvalidRequest, Message: err.Error()},
	})
}
