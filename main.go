package main

import (
	"os"

	"Gin_postgres_redis_equipment_tool/app"
	"Gin_postgres_redis_equipment_tool/config"
	"Gin_postgres_redis_equipment_tool/db"
	"Gin_postgres_redis_equipment_tool/logging"
	"Gin_postgres_redis_equipment_tool/routes"

	flag "github.com/spf13/pflag"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	port := flag.String("port", "", "listen port (overrides PORT)")
	migrateOnly := flag.Bool("migrate-only", false, "apply schema migrations and exit")
	flag.Parse()

	config.LoadEnv(*envFile)
	cfg := app.LoadConfig()
	if *port != "" {
		cfg.Port = *port
	}
	log := logging.New(logging.Config{Level: cfg.LogLevel, Service: "equipment", Format: cfg.LogFormat})

	if *migrateOnly {
		conn, err := db.ConnectDB(cfg.DB, log)
		if err != nil {
			log.Fatal().Err(err).Msg("database")
		}
		err = db.Migrate(conn.DB)
		_ = conn.Close()
		if err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
		log.Info().Msg("schema up to date")
		return
	}

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	application := app.MustNew(cfg)
	defer application.Close()

	r := application.Router
	routes.RegisterRoutes(r, application)

	log.Info().Str("port", cfg.Port).Msg("listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Error().Err(err).Msg("server stopped")
		application.Close()
		os.Exit(1)
	}
}
