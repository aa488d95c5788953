package internal

import (
	"net/http"
	"vocarank/internal/controllers"
	"vocarank/internal/providers"
)

func InitRoutes(apiController *controllers.ApiController, refreshController *controllers.RefreshController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/rankings/songs", http.HandlerFunc(apiController.GetSongRankings))
	routers.Get("/rankings/artists", http.HandlerFunc(apiController.GetArtistRankings))
	routers.Get("/views/history", http.HandlerFunc(apiController.GetHistoricalViews))
	routers.Get("/songs", http.HandlerFunc(apiController.GetSong))
	routers.Get("/artists", http.HandlerFunc(apiController.GetArtist))
	routers.Post("/refresh", http.HandlerFunc(refreshController.TriggerRefresh))
	return routers
}
