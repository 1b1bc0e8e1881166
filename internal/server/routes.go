package server

import "net/http"

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Service descriptor
	mux.HandleFunc("/", s.app.StatsHandler.IndexHandler)

	// Crawl submission (POST): named cities or whole registry, the daily
	// sweep, and the strict explicit-window variant
	mux.HandleFunc("/crawl", s.app.CrawlHandler.CrawlHandler)
	mux.HandleFunc("/crawl/today-yesterday", s.app.CrawlHandler.TodayYesterdayHandler)
	mux.HandleFunc("/crawl/cities", s.app.CrawlHandler.CitiesHandler)

	// Registry and pipeline introspection (GET)
	mux.HandleFunc("/spiders", s.app.SpidersHandler.ListHandler)
	mux.HandleFunc("/stats", s.app.StatsHandler.StatsHandler)
	mux.HandleFunc("/health/queue", s.app.StatsHandler.QueueHealthHandler)

	// OCR provider callback (POST)
	mux.HandleFunc("/analysis/results", s.app.AnalysisHandler.ResultsHandler)

	return mux
}
