package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

func mwRequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Set(requestIDHeader, id)
		ctx.Writer.Header().Set(requestIDHeader, id)
		ctx.Next()
	}
}

func mwLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		startTime := time.Now()
		ctx.Next()
		duration := time.Since(startTime)

		slog.Info("api request",
			"kind", "api",
			"request_id", ctx.GetString(requestIDHeader),
			"method", ctx.Request.Method,
			"uri", ctx.Request.RequestURI,
			"code", ctx.Writer.Status(),
			"client", ctx.ClientIP(),
			"duration", duration,
		)
	}
}
