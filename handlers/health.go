package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "checkout-service",
	})
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// ReadyCheck reports whether the database is reachable.
func ReadyCheck(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "checkout-service"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "service": "checkout-service"})
	}
}
