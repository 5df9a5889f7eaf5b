package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"jira-capacity-sync/auth"
	"jira-capacity-sync/cache"
	configpkg "jira-capacity-sync/config"
	"jira-capacity-sync/database"
	"jira-capacity-sync/syncer"
	"jira-capacity-sync/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment")
	}

	store, err := openStore()
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer store.Close()

	memCache := cache.NewMemoryCache()

	jwtSecret := getEnvDefault("JWT_SECRET", "change-me-in-production")
	authService := auth.NewService(store, jwtSecret)
	configService := configpkg.NewService(store)

	wsManager := syncer.NewWebSocketManager()
	go wsManager.Run()

	syncService := syncer.NewService(store, memCache, wsManager)

	authHandler := auth.NewHandler(authService)
	configHandler := configpkg.NewHandler(configService)
	syncHandler := syncer.NewHandler(syncService, wsManager)
	planHandler := newPlanHandler(store, configService)

	router := mux.NewRouter()
	router.Use(utils.CORSMiddleware)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.SendSuccess(w, map[string]string{"status": "healthy"}, "Service is running")
	}).Methods("GET")

	authHandler.RegisterRoutes(router)
	configHandler.RegisterRoutes(router, authService)
	syncHandler.RegisterRoutes(router, authService)
	planHandler.RegisterRoutes(router, authService)

	port := getEnvDefault("PORT", "8080")
	log.Printf("Server starting on port %s", port)
	log.Printf("WebSocket endpoint: ws://localhost:%s/api/ws", port)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Fatal(server.ListenAndServe())
}

// openStore picks Postgres when DATABASE_URL is set, the JSON file store
// otherwise.
func openStore() (database.Store, error) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		log.Printf("Using Postgres store")
		return database.InitPostgres(dbURL)
	}
	dbPath := getEnvDefault("DB_PATH", "./capacity_sync.db")
	log.Printf("Using file store at %s", dbPath)
	return database.InitDB(dbPath)
}

func getEnvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
