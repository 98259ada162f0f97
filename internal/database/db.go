package database

import (
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/justsurfingit/job-application-tracker/internal/models"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Config struct {
	URL             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Connect opens DATABASE_URL and runs migrations. Postgres DSNs (URL or
// key=value form) go through pgx; anything prefixed sqlite:// or ending in
// .db is opened with the pure-Go sqlite driver.
func Connect(cfg Config, log zerolog.Logger) (*gorm.DB, error) {
	dialector, isSQLite, err := dialectorFor(cfg.URL)
	if err != nil {
		return nil, err
	}

	gl := log.With().Str("component", "gorm").Logger()
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(&gl, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, eris.Wrap(err, "database handle")
	}
	if isSQLite {
		// single writer; in-memory databases also live and die with the one connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}
	log.Info().Bool("sqlite", isSQLite).Msg("database connection established")

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates every table and index if absent. Safe to run repeatedly.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.JobApplication{},
		&models.ApplicationEvent{},
		&models.ProcessedEmail{},
		&models.Credential{},
	)
	if err != nil {
		return eris.Wrap(err, "migrate schema")
	}
	return nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialectorFor(url string) (gorm.Dialector, bool, error) {
	url = strings.TrimSpace(url)
	switch {
	case url == "":
		return nil, false, eris.New("DATABASE_URL is empty")
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"), strings.Contains(url, "host="):
		return postgres.Open(url), false, nil
	case strings.HasPrefix(url, "sqlite://"):
		// sqlite:///rel.db is relative, sqlite:////abs.db is absolute
		path := strings.TrimPrefix(strings.TrimPrefix(url, "sqlite://"), "/")
		return sqlite.Open(sqliteDSN(path)), true, nil
	case strings.HasPrefix(url, "sqlite:"):
		return sqlite.Open(sqliteDSN(strings.TrimPrefix(url, "sqlite:"))), true, nil
	case strings.HasSuffix(url, ".db"), strings.HasSuffix(url, ".sqlite"), url == ":memory:":
		return sqlite.Open(sqliteDSN(url)), true, nil
	}
	return nil, false, eris.Errorf("unsupported DATABASE_URL scheme: %q", url)
}

func sqliteDSN(path string) string {
	if path == "" || path == ":memory:" {
		return ":memory:"
	}
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)"
}
