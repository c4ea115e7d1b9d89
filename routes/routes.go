package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loan-sync/controllers"
)

// SetupRoutes registers every endpoint of the gateway. staticDir, when not
// empty, is served as the single-page client.
func SetupRoutes(r *gin.Engine, sync *controllers.SyncController, staticDir string) {
	r.GET("/health", controllers.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/supabase-status", sync.Status)
		api.GET("/data", sync.GetData)

		api.POST("/users", sync.SaveUsers)
		api.POST("/loans", sync.SaveLoans)
		api.POST("/notifications", sync.SaveNotifications)

		api.POST("/budget", sync.SetBudget)
		api.POST("/rankProfit", sync.SetRankProfit)

		api.DELETE("/users/:id", sync.DeleteUser)
	}

	r.NoRoute(spaFallback(staticDir))
}
