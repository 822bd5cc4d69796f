package main

import (
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/crisha-app/crisha-backend/config"
	"github.com/crisha-app/crisha-backend/routes"
	"github.com/crisha-app/crisha-backend/services"
	"github.com/crisha-app/crisha-backend/utils"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := cfg.InitDB()
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}
	log.Info().Msg("postgres connected and migrated")

	analyzer := services.NewAnalyzer(cfg, log)
	pipeline := services.NewPipeline(db, analyzer, cfg.UploadDir, cfg.MaxConcurrentAnalyses, log)
	robokassa := services.NewRobokassaClient(cfg.RobokassaLogin, cfg.RobokassaPassword1, cfg.RobokassaPassword2, cfg.RobokassaBaseURL)

	utils.StartCleanupJob(db, log)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "https://app.crisha.ru"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
	}))

	r = routes.SetupRouter(r, db, cfg, pipeline, robokassa)

	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
