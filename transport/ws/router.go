package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stevehere/ethdrop-relay/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(svc *service.RelayService, staticDir string) *gin.Engine {
	router := gin.Default()

	handler := NewHandler(svc)

	router.GET("/websocket", handler.Serve)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if staticDir != "" {
		router.Static("/assets", staticDir)
	}

	return router
}
