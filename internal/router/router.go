package router

import (
	"context"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/config"
	"github.com/duregger/cafe-rio-nutrition/internal/handler"
	"github.com/duregger/cafe-rio-nutrition/internal/infra"
	"github.com/duregger/cafe-rio-nutrition/internal/middleware"
	"github.com/duregger/cafe-rio-nutrition/internal/service"
	"github.com/duregger/cafe-rio-nutrition/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Deps are the collaborators the HTTP surface needs. Redis, Metrics and
// Limiter are optional.
type Deps struct {
	Config     *config.Config
	Catalog    *service.Catalog
	Ping       func(context.Context) error
	Redis      *redis.Client
	Cache      infra.ResponseCache
	Dispatcher worker.Dispatcher
	Metrics    *infra.Collector
	Limiter    *middleware.RateLimiter
}

// New wires handlers onto a Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(d Deps) *gin.Engine {
	if d.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Cache == nil {
		d.Cache = infra.NoopCache{}
	}
	if d.Dispatcher == nil {
		d.Dispatcher = worker.NewInlineDispatcher(d.Catalog.Reconciler)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(d.Config.CORSAllowedOrigins))
	r.Use(middleware.ErrorHandler())
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	if d.Limiter == nil {
		d.Limiter = middleware.NewRateLimiter(d.Config.RateLimitPerMinute, time.Minute)
	}
	r.Use(d.Limiter.Handler())

	cat := d.Catalog

	// ── Handlers ─────────────────────────────────────────────────────────────
	categoriesH := handler.NewCategoriesHandler(cat.Categories, d.Cache, "Category")
	allergenCategoriesH := handler.NewCategoriesHandler(cat.AllergenCategories, d.Cache, "Allergen category")
	itemsH := handler.NewItemsHandler(cat.Reader, cat.Items, d.Cache)
	allergenItemsH := handler.NewAllergenItemsHandler(cat.AllergenItems, d.Cache)
	adminH := handler.NewAdminHandler(cat.Importer, cat.Migrator, d.Dispatcher)
	mealsH := handler.NewMealsHandler(cat.Meals)

	// ── Access gate ──────────────────────────────────────────────────────────
	authn := middleware.Authenticate(cat.Auth)
	writer := []gin.HandlerFunc{authn, middleware.RequireAction(cat.Policy, service.ActionWrite)}
	admin := []gin.HandlerFunc{authn, middleware.RequireAction(cat.Policy, service.ActionAdmin), middleware.InvalidateOnWrite(d.Cache)}

	// ── Routes ───────────────────────────────────────────────────────────────
	api := r.Group("/api")
	api.GET("/health", handler.Health(d.Ping, d.Redis))
	api.POST("/meals/calculate", mealsH.Calculate)
	api.GET("/me", append(writer, handler.Me)...)

	categories := api.Group("/categories")
	{
		categories.GET("", categoriesH.List)
		categories.GET("/:id", categoriesH.Get)
		guarded := categories.Group("", admin...)
		guarded.POST("", categoriesH.Create)
		guarded.PUT("/:id", categoriesH.Update)
		guarded.DELETE("/:id", categoriesH.Delete)
	}

	allergenCategories := api.Group("/allergen-categories")
	{
		allergenCategories.GET("", allergenCategoriesH.List)
		allergenCategories.GET("/:id", allergenCategoriesH.Get)
		guarded := allergenCategories.Group("", admin...)
		guarded.POST("", allergenCategoriesH.Create)
		guarded.PUT("/:id", allergenCategoriesH.Update)
		guarded.DELETE("/:id", allergenCategoriesH.Delete)
	}

	items := api.Group("/items")
	{
		items.GET("", itemsH.List)
		items.GET("/:id", itemsH.Get)
		guarded := items.Group("", admin...)
		guarded.POST("", itemsH.Create)
		guarded.POST("/bulk", itemsH.BulkCreate)
		guarded.PUT("/:id", itemsH.Update)
		guarded.DELETE("/:id", itemsH.Delete)
	}

	allergenItems := api.Group("/allergen-items")
	{
		allergenItems.GET("", allergenItemsH.List)
		allergenItems.GET("/:id", allergenItemsH.Get)
		guarded := allergenItems.Group("", admin...)
		guarded.POST("", allergenItemsH.Create)
		guarded.POST("/bulk", allergenItemsH.BulkCreate)
		guarded.PUT("/:id", allergenItemsH.Update)
		guarded.DELETE("/:id", allergenItemsH.Delete)
	}

	imports := api.Group("/import", admin...)
	{
		imports.POST("/nutrition", adminH.ImportNutrition)
		imports.POST("/allergens", adminH.ImportAllergens)
	}

	adm := api.Group("/admin", admin...)
	{
		adm.POST("/migrate", adminH.Migrate)
		adm.POST("/reconcile", adminH.Reconcile)
	}

	return r
}
