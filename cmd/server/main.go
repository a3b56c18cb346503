package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/almahub/backend/internal/config"
	"github.com/almahub/backend/internal/handlers"
	"github.com/almahub/backend/internal/identity"
	"github.com/almahub/backend/internal/jobs"
	"github.com/almahub/backend/internal/media"
	appmiddleware "github.com/almahub/backend/internal/middleware"
	"github.com/almahub/backend/internal/models"
	"github.com/almahub/backend/internal/profile"
	"github.com/almahub/backend/internal/queries"
	"github.com/almahub/backend/internal/storage"
)

func main() {
	cfg := config.Load()

	var logger *zap.Logger
	var err error
	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Identity provider: Firebase when configured, otherwise the local one.
	var provider identity.Provider
	var issuer identity.TokenIssuer
	var verifier identity.TokenVerifier

	if cfg.FirebaseProjectID != "" {
		fb, err := identity.NewFirebaseProvider(ctx, identity.FirebaseConfig{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsJSON: cfg.FirebaseCredentials,
			APIKey:          cfg.FirebaseAPIKey,
		})
		if err != nil {
			logger.Fatal("failed to initialize Firebase identity provider", zap.Error(err))
		}
		provider = fb
		verifier = fb
	} else {
		local := identity.NewLocalProvider(cfg.JWTSecret, cfg.JWTExpiration)
		provider = local
		issuer = local
		verifier = local
		logger.Info("Firebase not configured, using local identity provider")
	}

	// Local durable cache: the fallback tier when Mongo is unreachable.
	broadcaster := storage.NewBroadcaster()
	cache, err := storage.NewCache(cfg.DataDir, models.CacheSchemaVersion, broadcaster)
	if err != nil {
		logger.Fatal("failed to initialize local cache", zap.Error(err))
	}

	var primary profile.PrimaryStore
	var mongoStore *profile.MongoStore
	if cfg.MongoURI != "" {
		mongoStore, err = profile.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			logger.Warn("Mongo unavailable, running on local cache only", zap.Error(err))
		} else {
			primary = mongoStore
			defer mongoStore.Close(context.Background())
		}
	} else {
		logger.Warn("MONGO_URI not set, running on local cache only")
	}

	profiles := profile.NewRepository(primary, profile.CacheTier{Cache: cache}, logger, func(online bool) {
		if !online {
			logger.Warn("document store offline, serving cached profiles")
		}
	})

	mediaService := media.NewService(cfg.UploadDir)

	authHandler := handlers.NewAuthHandler(provider, issuer, profiles, logger)
	profileHandler := handlers.NewProfileHandler(profiles, logger)
	mediaHandler := handlers.NewMediaHandler(mediaService, cfg.MaxUploadSizeMB)

	var jobsHandler *handlers.JobsHandler
	var queriesHandler *handlers.QueriesHandler
	if mongoStore != nil {
		jobsHandler = handlers.NewJobsHandler(jobs.NewService(ctx, mongoStore.Database()), logger)
		queriesHandler = handlers.NewQueriesHandler(queries.NewService(ctx, mongoStore.Database()), profiles, logger)
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(verifier))

			r.Post("/auth/logout", authHandler.Logout)

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", profileHandler.GetProfile)
				r.Put("/", profileHandler.UpdateProfile)
				r.Put("/role", profileHandler.UpdateRole)
				r.Get("/{userId}", profileHandler.GetPublicProfile)
			})

			if jobsHandler != nil {
				r.Route("/jobs", func(r chi.Router) {
					r.Get("/", jobsHandler.ListJobs)
					r.Post("/", jobsHandler.CreateJob)

					r.Route("/{jobId}", func(r chi.Router) {
						r.Get("/", jobsHandler.GetJob)
						r.Delete("/", jobsHandler.DeleteJob)
						r.Post("/apply", jobsHandler.Apply)
						r.Get("/applications", jobsHandler.ListApplications)
					})
				})
			}

			if queriesHandler != nil {
				r.Route("/queries", func(r chi.Router) {
					r.Get("/", queriesHandler.ListQueries)
					r.Post("/", queriesHandler.CreateQuery)
					r.Post("/{queryId}/like", queriesHandler.Like)
					r.Post("/{queryId}/comments", queriesHandler.Comment)
				})
			}

			r.Post("/upload", mediaHandler.Upload)
			r.Delete("/upload/{fileId}", mediaHandler.Delete)
		})
	})

	// Serve uploaded files
	workDir, _ := os.Getwd()
	filesDir := http.Dir(workDir + "/" + cfg.UploadDir)
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(filesDir)))

	logger.Info("AlmaHub API server starting", zap.String("addr", cfg.ServerAddress))
	if err := http.ListenAndServe(cfg.ServerAddress, r); err != nil {
		logger.Fatal("server failed to start", zap.Error(err))
	}
}
