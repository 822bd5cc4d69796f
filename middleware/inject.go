package middleware

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/crisha-app/crisha-backend/config"
	"github.com/crisha-app/crisha-backend/services"
)

// DBMiddleware puts the database handle into the request context so
// handlers stay free of package-level state.
func DBMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("db", db)
		c.Next()
	}
}

func ConfigMiddleware(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("cfg", cfg)
		c.Next()
	}
}

func PipelineMiddleware(p *services.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("pipeline", p)
		c.Next()
	}
}

func RobokassaMiddleware(r *services.RobokassaClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("robokassa", r)
		c.Next()
	}
}
