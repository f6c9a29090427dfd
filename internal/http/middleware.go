package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/guriuo/hiigsitech/internal/logger"
)

const (
	learnerHeader = "X-Learner-ID"
	learnerKey    = "learner"
)

func CORS(origins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", learnerHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	return cors.New(config)
}

func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if learner := learnerFrom(c); learner != "" {
			kv = append(kv, "learner_id", learner)
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", kv...)
		case status >= http.StatusBadRequest:
			log.Warn("request", kv...)
		default:
			log.Info("request", kv...)
		}
	}
}

func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// RequireLearner rejects requests that do not identify the learner whose
// progress they read or change.
func RequireLearner() gin.HandlerFunc {
	return func(c *gin.Context) {
		learner := strings.TrimSpace(c.GetHeader(learnerHeader))
		if learner == "" {
			respondMessage(c, http.StatusBadRequest, "missing "+learnerHeader+" header")
			c.Abort()
			return
		}
		c.Set(learnerKey, learner)
		c.Next()
	}
}

func learnerFrom(c *gin.Context) string {
	return c.GetString(learnerKey)
}
