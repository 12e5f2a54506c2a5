package api

import (
	"net/http"
	"net/http/pprof"
	"runtime"
	"strconv"

	"trackr/handlers"

	"github.com/gorilla/mux"
)

func itoa(i int) string      { return strconv.Itoa(i) }
func itoa64(i uint64) string { return strconv.FormatUint(i, 10) }

// localhostOnlyMiddleware restricts access to localhost requests only
func localhostOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		// Strip port if present
		for i := len(host) - 1; i >= 0; i-- {
			if host[i] == ':' {
				host = host[:i]
				break
			}
		}
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			http.Error(w, "Debug endpoints only accessible from localhost", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	usersHandler *handlers.UsersHandler,
	seriesHandler *handlers.SeriesHandler,
	watchStateHandler *handlers.WatchStateHandler,
	completedHandler *handlers.CompletedHandler,
	scheduledTasksHandler *handlers.ScheduledTasksHandler,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	// User profile routes
	api.HandleFunc("/users", usersHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/users", usersHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/users", usersHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}", usersHandler.Rename).Methods(http.MethodPatch)
	api.HandleFunc("/users/{userID}", usersHandler.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userID}", usersHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/color", usersHandler.SetColor).Methods(http.MethodPut)
	api.HandleFunc("/users/{userID}/color", usersHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/pin", usersHandler.SetPin).Methods(http.MethodPut)
	api.HandleFunc("/users/{userID}/pin", usersHandler.ClearPin).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userID}/pin", usersHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/pin/generate", usersHandler.GeneratePin).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}/pin/generate", usersHandler.Options).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/pin/verify", usersHandler.VerifyPin).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}/pin/verify", usersHandler.Options).Methods(http.MethodOptions)

	// Series catalogue routes
	api.HandleFunc("/users/{userID}/series", seriesHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/series", seriesHandler.Add).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}/series", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/series/{nmr}", seriesHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/series/{nmr}", seriesHandler.Remove).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userID}/series/{nmr}", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/series/{nmr}/watchlist", seriesHandler.SetWatchlist).Methods(http.MethodPut)
	api.HandleFunc("/users/{userID}/series/{nmr}/watchlist", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/watchlist-order", seriesHandler.WatchlistOrder).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/watchlist-order", seriesHandler.SetWatchlistOrder).Methods(http.MethodPut)
	api.HandleFunc("/users/{userID}/watchlist-order", handleOptions).Methods(http.MethodOptions)

	// Watch-state routes
	api.HandleFunc("/users/{userID}/series/{nmr}/seasons", watchStateHandler.Seasons).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/series/{nmr}/seasons", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/series/{nmr}/toggle", watchStateHandler.ToggleEpisode).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}/series/{nmr}/toggle", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/series/{nmr}/toggle-season", watchStateHandler.ToggleSeason).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}/series/{nmr}/toggle-season", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/series/{nmr}/toggle-selection", watchStateHandler.ToggleSelection).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}/series/{nmr}/toggle-selection", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/series/{nmr}/mark-through", watchStateHandler.MarkThroughSeason).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}/series/{nmr}/mark-through", handleOptions).Methods(http.MethodOptions)

	// Rewatch routes
	api.HandleFunc("/users/{userID}/series/{nmr}/rewatch", seriesHandler.StartRewatch).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}/series/{nmr}/rewatch", seriesHandler.StopRewatch).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userID}/series/{nmr}/rewatch", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/series/{nmr}/rewatch/progress", seriesHandler.RewatchProgress).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/series/{nmr}/rewatch/progress", handleOptions).Methods(http.MethodOptions)

	// Completed-series notification routes
	api.HandleFunc("/users/{userID}/completed", completedHandler.Detect).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/completed", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/completed/{seriesID}/notified", completedHandler.MarkNotified).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}/completed/{seriesID}/notified", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/users/{userID}/completed/{seriesID}/dismiss", completedHandler.Dismiss).Methods(http.MethodPost)
	api.HandleFunc("/users/{userID}/completed/{seriesID}/dismiss", handleOptions).Methods(http.MethodOptions)

	// Scheduled task routes
	api.HandleFunc("/scheduled-tasks", scheduledTasksHandler.ListTasks).Methods(http.MethodGet)
	api.HandleFunc("/scheduled-tasks", scheduledTasksHandler.CreateTask).Methods(http.MethodPost)
	api.HandleFunc("/scheduled-tasks", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/scheduled-tasks/{taskID}", scheduledTasksHandler.UpdateTask).Methods(http.MethodPut)
	api.HandleFunc("/scheduled-tasks/{taskID}", scheduledTasksHandler.DeleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/scheduled-tasks/{taskID}", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/scheduled-tasks/{taskID}/run", scheduledTasksHandler.RunTaskNow).Methods(http.MethodPost)
	api.HandleFunc("/scheduled-tasks/{taskID}/run", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/scheduled-tasks/{taskID}/toggle", scheduledTasksHandler.ToggleTask).Methods(http.MethodPost)
	api.HandleFunc("/scheduled-tasks/{taskID}/toggle", handleOptions).Methods(http.MethodOptions)

	// Pprof debug endpoints for profiling (localhost only)
	pprofRouter := api.PathPrefix("/debug/pprof").Subrouter()
	pprofRouter.Use(localhostOnlyMiddleware)
	pprofRouter.HandleFunc("/", pprof.Index)
	pprofRouter.HandleFunc("/cmdline", pprof.Cmdline)
	pprofRouter.HandleFunc("/profile", pprof.Profile)
	pprofRouter.HandleFunc("/symbol", pprof.Symbol)
	pprofRouter.HandleFunc("/trace", pprof.Trace)
	pprofRouter.HandleFunc("/allocs", pprof.Handler("allocs").ServeHTTP)
	pprofRouter.HandleFunc("/goroutine", pprof.Handler("goroutine").ServeHTTP)
	pprofRouter.HandleFunc("/heap", pprof.Handler("heap").ServeHTTP)

	// Runtime stats endpoint (localhost only)
	runtimeRouter := api.PathPrefix("/debug/runtime").Subrouter()
	runtimeRouter.Use(localhostOnlyMiddleware)
	runtimeRouter.HandleFunc("", func(w http.ResponseWriter, r *http.Request) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{` +
			`"goroutines":` + itoa(runtime.NumGoroutine()) + `,` +
			`"heapAlloc":` + itoa64(m.HeapAlloc) + `,` +
			`"heapSys":` + itoa64(m.HeapSys) + `,` +
			`"heapObjects":` + itoa64(m.HeapObjects) + `,` +
			`"stackInuse":` + itoa64(m.StackInuse) + `,` +
			`"numGC":` + itoa(int(m.NumGC)) + `,` +
			`"lastGC":` + itoa64(m.LastGC) + `,` +
			`"numCPU":` + itoa(runtime.NumCPU()) +
			`}`))
	}).Methods(http.MethodGet)
}
