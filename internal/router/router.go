package router

import (
	"net/http"
	"slices"
	"strings"

	"github.com/closet/internal/handler"
	"github.com/closet/internal/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// Options holds the HTTP-only settings; everything else reaches the router through the API.
type Options struct {
	SessionSecret string
	UploadDir     string
	UploadURLPath string
	CORSOrigins   []string
	Logger        *logger.Logger
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "Accept-Language", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// SetupRouter wires middleware and routes onto a fresh engine.
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(handler.RequestLogger(opts.Logger))
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))

	secret := opts.SessionSecret
	if secret == "" {
		secret = "closet-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 86400, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("closet_session", store))

	if dir := strings.TrimSpace(opts.UploadDir); dir != "" {
		urlPath := "/" + strings.Trim(strings.TrimSpace(opts.UploadURLPath), "/")
		if urlPath == "/" {
			urlPath = "/uploads"
		}
		r.Static(urlPath, dir)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	public := r.Group("/api")
	{
		public.POST("/register", api.Register)
		public.POST("/check-email", api.CheckEmail)
		public.POST("/login", api.Login)
		public.GET("/weather", api.Weather)
		public.GET("/categories", api.Categories)
	}

	auth := r.Group("/api")
	auth.Use(api.AuthRequired())
	{
		auth.GET("/me", api.Me)

		auth.POST("/upload", api.UploadGarment)
		auth.GET("/images", api.ListGarments)
		auth.GET("/images/:id", api.GetGarment)
		auth.PUT("/images/:id", api.UpdateGarment)
		auth.DELETE("/images/:id", api.DeleteGarment)
		auth.PUT("/update/:id", api.UpdateGarment)
		auth.DELETE("/delete/:id", api.DeleteGarment)

		auth.GET("/candidates", api.Candidates)

		auth.POST("/register-outfit", api.RegisterOutfit)
		auth.GET("/outfits", api.ListOutfits)
		auth.GET("/outfits/:date", api.GetOutfit)

		auth.POST("/submit-feedback", api.SubmitFeedback)
		auth.GET("/feedback/:date", api.FeedbackHistory)
	}

	return r
}
