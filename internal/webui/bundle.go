// Package webui embeds the static front end and serves it next to the API.
package webui

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// dist embeds the built web UI assets.
//
//go:embed dist/*
var dist embed.FS

// Bundle exposes embedded web UI assets for serving.
type Bundle struct {
	DistFS    fs.FS           // Root dist filesystem.
	AssetsFS  http.FileSystem // Assets subdirectory filesystem.
	IndexHTML []byte          // Raw index HTML content.
}

// Load loads the embedded web UI bundle from the dist filesystem.
func Load() (Bundle, error) {
	distFS, errSub := fs.Sub(dist, "dist")
	if errSub != nil {
		return Bundle{}, errSub
	}
	assetsFS, errSubAssets := fs.Sub(dist, "dist/assets")
	if errSubAssets != nil {
		return Bundle{}, errSubAssets
	}
	indexHTML, errReadFile := dist.ReadFile("dist/index.html")
	if errReadFile != nil {
		return Bundle{}, errReadFile
	}
	return Bundle{
		DistFS:    distFS,
		AssetsFS:  http.FS(assetsFS),
		IndexHTML: indexHTML,
	}, nil
}

// Mount serves the bundle on engine: index.html at "/", files under /assets,
// and index.html for any other GET that is not an API path and does not look
// like a file.
func (b Bundle) Mount(engine *gin.Engine, isAPIRoute func(string) bool) {
	engine.Use(b.rootMiddleware())
	engine.StaticFS("/assets", b.AssetsFS)
	engine.NoRoute(b.fallback(isAPIRoute))
}

// rootMiddleware serves the index HTML at the root path.
func (b Bundle) rootMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			return
		}
		if c.Request.URL.Path != "/" {
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", b.IndexHTML)
		c.Abort()
	}
}

func (b Bundle) fallback(isAPIRoute func(string) bool) gin.HandlerFunc {
	fileServer := http.FileServer(http.FS(b.DistFS))
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusNotFound)
			return
		}
		requestPath := c.Request.URL.Path
		if isAPIRoute != nil && isAPIRoute(requestPath) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		cleanedPath := path.Clean("/" + requestPath)
		filePath := strings.TrimPrefix(cleanedPath, "/")
		if filePath != "" {
			fileInfo, errStat := fs.Stat(b.DistFS, filePath)
			if errStat == nil && !fileInfo.IsDir() {
				fileServer.ServeHTTP(c.Writer, c.Request)
				return
			}
			if requestPath == "/assets" || strings.HasPrefix(requestPath, "/assets/") || strings.Contains(path.Base(filePath), ".") {
				c.Status(http.StatusNotFound)
				return
			}
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", b.IndexHTML)
	}
}
