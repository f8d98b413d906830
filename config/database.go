package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	erpDB *gorm.DB
)

// GetErpDB returns the connection to the ERP reporting replica. The ERP is the
// read-only source of truth for quantities and select item metadata; nothing in
// this service writes through this handle.
func GetErpDB() *gorm.DB {
	return erpDB
}

func init() {
	// Load env from .env
	godotenv.Load()
	// Do NOT block startup in init() waiting for the ERP database.
	// The container must start listening on $PORT quickly.
}

// ConnectErpDatabaseWithRetry connects and sets the ERP DB handle.
// Call this from main() AFTER the HTTP server is listening.
func ConnectErpDatabaseWithRetry() {
	dbUser := os.Getenv("ERP_DB_USER")
	dbPassword := os.Getenv("ERP_DB_PASSWORD")
	dbHost := os.Getenv("ERP_DB_HOST")
	dbPort := os.Getenv("ERP_DB_PORT")
	dbName := os.Getenv("ERP_DB_NAME")

	network := "tcp"
	address := fmt.Sprintf("%s:%s", dbHost, dbPort)

	// When ERP_DB_HOST is "/cloudsql/<CONNECTION_NAME>", connect over the Unix
	// socket provided by the Cloud SQL Auth Proxy.
	if strings.HasPrefix(dbHost, "/cloudsql/") {
		network = "unix"
		address = dbHost
	}

	databaseConfig := fmt.Sprintf("%s:%s@%s(%s)/%s?parseTime=true&readTimeout=%ds",
		dbUser,
		dbPassword,
		network,
		address,
		dbName,
		intFromEnv("ERP_DB_READ_TIMEOUT_SECONDS", 30),
	)

	var attempt int
	for {
		attempt++
		var err error
		erpDB, err = gorm.Open(mysql.Open(databaseConfig), initErpConfig())
		if err == nil {
			// Pool tuning. The ERP replica is shared with reporting jobs, so the
			// defaults stay modest. Env overrides:
			// - ERP_DB_MAX_OPEN_CONNS (default 20)
			// - ERP_DB_MAX_IDLE_CONNS (default 10)
			// - ERP_DB_CONN_MAX_LIFETIME_SECONDS (default 300)
			if sqlDB, derr := erpDB.DB(); derr == nil && sqlDB != nil {
				maxOpen := intFromEnv("ERP_DB_MAX_OPEN_CONNS", 20)
				maxIdle := intFromEnv("ERP_DB_MAX_IDLE_CONNS", 10)
				connMaxLife := time.Duration(intFromEnv("ERP_DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second

				if maxOpen > 0 {
					sqlDB.SetMaxOpenConns(maxOpen)
				}
				if maxIdle >= 0 {
					sqlDB.SetMaxIdleConns(maxIdle)
				}
				if connMaxLife > 0 {
					sqlDB.SetConnMaxLifetime(connMaxLife)
				}
			}

			if pluginErr := erpDB.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("erp db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			log.Printf("connected to erp database (attempt=%d)", attempt)
			return
		}

		sleep := time.Second * time.Duration(1<<minInt(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect erp database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func initErpConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initErpLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

func initErpLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: time.Second,
		},
	)
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
