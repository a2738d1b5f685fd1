package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/iconverter/internal/api/handlers/item"
	"github.com/aliskhannn/iconverter/internal/api/middleware"
)

func Setup(h *item.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.POST("/items", h.Upload)                  // ingesting files
	api.GET("/items", h.List)                     // listing items
	api.GET("/items/:id", h.Get)                  // item metadata
	api.PATCH("/items/:id", h.Select)             // toggling selection
	api.GET("/items/:id/preview", h.Preview)      // preview bytes
	api.GET("/items/:id/output", h.Output)        // processed bytes
	api.POST("/batches/images", h.CompressImages) // image batch
	api.POST("/batches/pdfs", h.OptimizePDFs)     // pdf batch
	api.GET("/batches/:id", h.Batch)              // batch status
	api.GET("/archive", h.Archive)                // zip of processed selected items

	return r
}
