package app

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"Gin_postgres_redis_equipment_tool/db"
	"Gin_postgres_redis_equipment_tool/events"
	"Gin_postgres_redis_equipment_tool/logging"
	"Gin_postgres_redis_equipment_tool/session"
	"Gin_postgres_redis_equipment_tool/workflow"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router   *gin.Engine
	DB       *db.Conn
	RDB      *redis.Client
	Log      zerolog.Logger
	Config   Config
	Hub      *events.Hub
	Services Services

	revoked *session.RevocationStore
	cancel  context.CancelFunc
}

// Config 从环境变量读取
type Config struct {
	Port          string
	DB            db.Config
	RedisAddr     string
	RedisPwd      string
	WebOrigin     string
	JWTSecret     string
	TokenMaxTTL   time.Duration
	SeenThrottle  time.Duration
	LogLevel      string
	LogFormat     string
	EventsChannel string
	LabelPrefix   string
}

// Services are the workflow entry points the controllers call.
type Services struct {
	Registry    *workflow.Registry
	Allocations *workflow.Allocations
	Maintenance *workflow.Maintenance
	Intake      *workflow.Intake
	Audit       *workflow.Audit
	Users       *workflow.Users
}

func NewServices(d workflow.Deps) Services {
	return Services{
		Registry:    workflow.NewRegistry(d),
		Allocations: workflow.NewAllocations(d),
		Maintenance: workflow.NewMaintenance(d),
		Intake:      workflow.NewIntake(d),
		Audit:       workflow.NewAudit(d),
		Users:       workflow.NewUsers(d),
	}
}

func (a *App) Revocations() *session.RevocationStore { return a.revoked }

func MustNew(cfg Config) *App {
	log := logging.New(logging.Config{Level: cfg.LogLevel, Service: "equipment", Format: cfg.LogFormat})

	// --- DB: Postgres ---
	conn, err := db.ConnectDB(cfg.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	if err := db.Migrate(conn.DB); err != nil {
		_ = conn.Close()
		log.Fatal().Err(err).Msg("migrate")
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = conn.Close()
		log.Fatal().Err(err).Msg("redis")
	}

	// --- 事件：本地 hub + Redis 中继 ---
	ctx, cancel := context.WithCancel(context.Background())
	hub := events.NewHub(log)
	go hub.Run(ctx)
	relay := events.NewRelay(rdb, cfg.EventsChannel, hub)
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error().Err(err).Msg("event relay stopped")
		}
	}()

	a := &App{
		DB: conn, RDB: rdb, Log: log, Config: cfg, Hub: hub,
		revoked: session.NewRevocationStore(rdb, cfg.TokenMaxTTL),
		cancel:  cancel,
	}
	a.Services = NewServices(workflow.Deps{Store: db.NewRepo(conn.DB), Log: log, Events: relay})
	a.Router = NewRouter(cfg, log)
	return a
}

// NewRouter builds the bare engine with recovery, request logging and CORS.
func NewRouter(cfg Config, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Requests(log, CtxUserID))
	useCORS(r, cfg.WebOrigin)
	return r
}

func (a *App) Close() {
	a.cancel()
	_ = a.RDB.Close()
	if err := a.DB.Close(); err != nil {
		a.Log.Warn().Err(err).Msg("close database")
	}
}

func LoadConfig() Config {
	get := func(k, def string) string {
		v := os.Getenv(k)
		if v == "" {
			return def
		}
		return v
	}
	seconds := func(k string, def int) time.Duration {
		n, err := strconv.Atoi(get(k, ""))
		if err != nil || n <= 0 {
			n = def
		}
		return time.Duration(n) * time.Second
	}
	embedded, _ := strconv.ParseBool(get("DB_EMBEDDED", "false"))
	debug, _ := strconv.ParseBool(get("DB_DEBUG", "false"))
	return Config{
		Port: get("PORT", "3001"),
		DB: db.Config{
			Host:     get("DB_HOST", "127.0.0.1"),
			Port:     get("DB_PORT", "5432"),
			User:     get("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     get("DB_NAME", "equipment"),
			Embedded: embedded,
			DataPath: get("DB_DATA_PATH", "./db_data"),
			Debug:    debug,
		},
		RedisAddr:     get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:      os.Getenv("REDIS_PASSWORD"),
		WebOrigin:     strings.TrimRight(get("WEB_ORIGIN", "http://localhost:5173"), "/"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		TokenMaxTTL:   seconds("TOKEN_MAX_TTL_SECONDS", 24*60*60),
		SeenThrottle:  seconds("SEEN_THROTTLE_SECONDS", 300),
		LogLevel:      get("LOG_LEVEL", "info"),
		LogFormat:     get("LOG_FORMAT", "json"),
		EventsChannel: get("EVENTS_CHANNEL", "equipment:events"),
		LabelPrefix:   os.Getenv("LABEL_URL_PREFIX"),
	}
}
