package handlers

import (
	"errors"
	"time"

	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/apperrors"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/identity"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/logger"
)

// RequestIDHeader carries the correlation id in and out.
const RequestIDHeader = "X-Request-ID"

// RequestID picks the correlation id for the request: the API Gateway
// request id when invoked through Lambda, else the inbound header, else a
// fresh UUID. It is echoed back and attached to the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := ""
		if rc, ok := core.GetAPIGatewayV2ContextFromContext(c.Request.Context()); ok {
			rid = rc.RequestID
		}
		if rid == "" {
			rid = c.GetHeader(RequestIDHeader)
		}
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(RequestIDHeader, rid)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}

// AccessLog writes one line per request.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if id, ok := identity.FromContext(c); ok {
			fields = append(fields,
				zap.String("subjectId", id.SubjectID),
				zap.Strings("roles", id.Roles.Slice()),
			)
		}
		logger.FromContext(c.Request.Context()).Info("request", fields...)
	}
}

// NotFound renders unknown routes in the error envelope.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = c.Error(apperrors.New(apperrors.KindNotFound, "Route not found"))
	}
}

// ErrorHandler renders the last error recorded with c.Error as
// {"error", "message", "requestId"}. Unclassified errors become a 500 with a
// generic message; their detail only reaches the log.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		ctx := c.Request.Context()
		err := c.Errors.Last().Err
		kind := apperrors.KindOf(err)
		log := logger.FromContext(ctx)

		var appErr *apperrors.Error
		if errors.As(err, &appErr) && kind.IsClientError() {
			log.Warn("request rejected",
				zap.String("errorKind", string(kind)),
				zap.String("message", appErr.Message),
			)
		} else {
			log.Error("request failed", zap.String("errorKind", string(kind)), zap.Error(err))
		}

		var requestID any
		if rid := logger.RequestID(ctx); rid != "" {
			requestID = rid
		}
		c.JSON(kind.HTTPStatus(), gin.H{
			"error":     kind,
			"message":   apperrors.PublicMessage(err),
			"requestId": requestID,
		})
	}
}
