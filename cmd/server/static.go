package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"property-agent/internal/logger"

	"github.com/gin-gonic/gin"
)

// setupStaticFiles serves the chat frontend from dir when it exists. Unknown
// API paths always get a JSON 404.
func setupStaticFiles(router *gin.Engine, dir string, log logger.Logger) {
	index := filepath.Join(dir, "index.html")
	_, err := os.Stat(index)
	hasFrontend := err == nil

	if hasFrontend {
		log.Info("🌐 Serving frontend", map[string]interface{}{"dir": dir})
		router.StaticFile("/", index)
		router.Static("/static", dir)
	} else {
		log.Warn("frontend not found, serving API only", map[string]interface{}{"dir": dir})
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") || !hasFrontend {
			c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
			return
		}
		c.File(index)
	})
}
