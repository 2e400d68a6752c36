package db

import (
	"fmt"
	"strconv"
	"time"

	"Gin_postgres_redis_equipment_tool/models"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	// Embedded starts a throwaway Postgres under DataPath for local dev.
	Embedded     bool
	EmbeddedPort uint32
	DataPath     string
	Debug        bool
}

// Conn is the open database plus the embedded process, if one was started.
type Conn struct {
	DB       *gorm.DB
	embedded *embeddedpostgres.EmbeddedPostgres
}

func (c *Conn) Close() error {
	if sqlDB, err := c.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if c.embedded != nil {
		return c.embedded.Stop()
	}
	return nil
}

func ConnectDB(cfg Config, log zerolog.Logger) (*Conn, error) {
	var embedded *embeddedpostgres.EmbeddedPostgres
	if cfg.Embedded {
		if cfg.EmbeddedPort == 0 {
			cfg.EmbeddedPort = 5433
		}
		if cfg.DataPath == "" {
			cfg.DataPath = "./db_data"
		}
		if cfg.Password == "" {
			cfg.Password = "postgres"
		}
		embedded = embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
			DataPath(cfg.DataPath).
			Port(cfg.EmbeddedPort).
			Database(cfg.Name).
			Username(cfg.User).
			Password(cfg.Password))
		if err := embedded.Start(); err != nil {
			return nil, fmt.Errorf("start embedded postgres: %w", err)
		}
		cfg.Host = "localhost"
		cfg.Port = strconv.Itoa(int(cfg.EmbeddedPort))
		log.Info().Uint32("port", cfg.EmbeddedPort).Msg("embedded postgres started")
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port,
	)

	level := logger.Warn
	if cfg.Debug {
		level = logger.Info
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		// 引用只在读取时解析，不建外键
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		if embedded != nil {
			_ = embedded.Stop()
		}
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	log.Info().Str("host", cfg.Host).Str("db", cfg.Name).Msg("database connected")
	return &Conn{DB: gdb, embedded: embedded}, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Materiel{},
		&models.Allocation{},
		&models.Maintenance{},
		&models.FaultReport{},
		&models.EquipmentRequest{},
		&models.TransitionLog{},
	); err != nil {
		return err
	}

	// 同一设备最多一条已批准且未归还的分配
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_holding_per_materiel
	  ON %s (materiel_id)
	  WHERE status = 'active' AND approval_status = 'approved';
	`, models.AllocationTable, models.AllocationTable)).Error; err != nil {
		return err
	}

	// 同一设备最多一条进行中的维护
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_open_per_materiel
	  ON %s (materiel_id)
	  WHERE status IN ('pending', 'in_progress');
	`, models.MaintenanceTable, models.MaintenanceTable)).Error; err != nil {
		return err
	}

	// 逾期查询
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_active_expected_return
	  ON %s (expected_return_date)
	  WHERE status = 'active';
	`, models.AllocationTable, models.AllocationTable)).Error; err != nil {
		return err
	}

	return nil
}
