package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(signalController *SignalController, allowedOrigins []string) *gin.Engine {
	router := gin.Default()

	config := cors.DefaultConfig()
	config.AllowOrigins = allowedOrigins
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	if signalController != nil {
		api.GET("/signal/ws", signalController.Connect)
		api.GET("/webrtc/ice-servers", signalController.ICEServers)

		rooms := api.Group("/rooms")
		rooms.GET("/:roomID/participants", signalController.ListParticipants)
		rooms.GET("/:roomID/messages", signalController.ChatHistory)
	}

	return router
}
