package prefdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	glogger "gorm.io/gorm/logger"

	"hpcdash/config"
	"hpcdash/internal/pkg/model"
)

// Client wraps a GORM DB connection for the theme preference table.
type Client struct {
	DB     *gorm.DB
	logger *slog.Logger
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// New opens the MySQL database configured in config.PrefDB and migrates the
// preference table.
func New(cfg config.PrefDB, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("prefdb host is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	dsn := buildDSN(cfg)

	gcfg := &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Warn),
	}
	db, err := gorm.Open(mysql.Open(dsn), gcfg)
	if err != nil {
		return nil, fmt.Errorf("open prefdb: %w", err)
	}

	// Tune the underlying connection pool
	if sqlDB, err := db.DB(); err == nil {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if d := config.ParseDuration(cfg.ConnMaxLifetime, 0); d > 0 {
			sqlDB.SetConnMaxLifetime(d)
		}
		// Fail fast on an unreachable database instead of on the first request.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping prefdb: %w", err)
		}
	}

	if err := db.AutoMigrate(&model.ThemePreference{}); err != nil {
		return nil, fmt.Errorf("migrate prefdb: %w", err)
	}
	logger.Info("prefdb connected", "host", cfg.Host, "database", cfg.Database)
	return &Client{DB: db, logger: logger}, nil
}

// buildDSN constructs a DSN string.
// Format: user:pass@tcp(host:port)/dbname?param=value
func buildDSN(cfg config.PrefDB) string {
	creds := cfg.User
	if cfg.Password != "" {
		creds = fmt.Sprintf("%s:%s", cfg.User, cfg.Password)
	}
	addr := fmt.Sprintf("tcp(%s:%d)", cfg.Host, cfg.Port)

	params := make([]string, 0, 4)
	if cfg.Charset != "" {
		params = append(params, fmt.Sprintf("charset=%s", cfg.Charset))
	}
	if cfg.ParseTime {
		params = append(params, "parseTime=true")
	} else {
		params = append(params, "parseTime=false")
	}
	if cfg.Loc != "" {
		params = append(params, fmt.Sprintf("loc=%s", url.QueryEscape(cfg.Loc)))
	}
	if cfg.TLS != "" {
		params = append(params, fmt.Sprintf("tls=%s", cfg.TLS))
	}

	dsn := fmt.Sprintf("%s@%s/%s", creds, addr, cfg.Database)
	if len(params) > 0 {
		dsn = dsn + "?" + strings.Join(params, "&")
	}
	return dsn
}

// GetTheme returns the saved theme of clientID, or model.ErrNotFound.
func (c *Client) GetTheme(ctx context.Context, clientID string) (string, error) {
	if c == nil || c.DB == nil {
		return "", fmt.Errorf("nil prefdb client")
	}
	var pref model.ThemePreference
	err := c.DB.WithContext(ctx).Where("client_id = ?", clientID).Take(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", model.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return pref.Theme, nil
}

// SetTheme inserts or updates the theme of clientID.
func (c *Client) SetTheme(ctx context.Context, clientID, theme string) error {
	if c == nil || c.DB == nil {
		return fmt.Errorf("nil prefdb client")
	}
	pref := model.ThemePreference{ClientID: clientID, Theme: theme, UpdatedAt: time.Now()}
	return c.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"theme", "updated_at"}),
	}).Create(&pref).Error
}

// Package-level default client for convenience wiring.
var defaultClient *Client

// SetDefault sets the package-level default prefdb client.
func SetDefault(c *Client) { defaultClient = c }

// Default returns the package-level default prefdb client.
func Default() *Client { return defaultClient }
