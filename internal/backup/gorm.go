package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"

	"prayernote/internal/logger"
)

type documentRow struct {
	Path       string         `gorm:"primaryKey;size:1024"`
	Collection string         `gorm:"size:1024;not null;index"`
	Body       datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt  time.Time
}

func (documentRow) TableName() string {
	return "backup_documents"
}

// GormStore keeps backup documents in a PostgreSQL table.
type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and prepares the documents table.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: NewGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to backup database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	return NewGormStore(db)
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate backup table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Set(ctx context.Context, p string, data []byte) error {
	row := documentRow{Path: p, Collection: parent(p), Body: datatypes.JSON(data)}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"collection", "body", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStore) Get(ctx context.Context, p string) ([]byte, error) {
	var row documentRow
	err := s.db.WithContext(ctx).Where("path = ?", p).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(row.Body), nil
}

func (s *GormStore) List(ctx context.Context, collection string) ([]Document, error) {
	var rows []documentRow
	if err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("path").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]Document, len(rows))
	for i, r := range rows {
		res[i] = Document{Path: r.Path, Data: []byte(r.Body)}
	}
	return res, nil
}

func (s *GormStore) Delete(ctx context.Context, p string) error {
	return s.db.WithContext(ctx).Where("path = ?", p).Delete(&documentRow{}).Error
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// =======================
// GORM LOGGER
// =======================

// GormLogger routes gorm's output to the application logger.
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormLogger.LogLevel
}

func NewGormLogger() gormLogger.Interface {
	return &GormLogger{
		SlowThreshold: 500 * time.Millisecond,
		LogLevel:      gormLogger.Warn,
	}
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	c := *l
	c.LogLevel = level
	return &c
}

func (l *GormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Info {
		logger.Info(fmt.Sprintf(msg, data...), "component", "gorm")
	}
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Warn {
		logger.Warn(fmt.Sprintf(msg, data...), "component", "gorm")
	}
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Error {
		logger.Error(fmt.Sprintf(msg, data...), "component", "gorm")
	}
}

func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.LogLevel >= gormLogger.Error:
		sql, rows := fc()
		logger.Error("SQL failed", "file", utils.FileWithLineNum(), "error", err, "elapsed", elapsed, "rows", rows, "sql", sql)
	case elapsed > l.SlowThreshold && l.LogLevel >= gormLogger.Warn:
		sql, rows := fc()
		logger.Warn("Slow SQL", "file", utils.FileWithLineNum(), "elapsed", elapsed, "rows", rows, "sql", sql)
	case l.LogLevel >= gormLogger.Info:
		sql, rows := fc()
		logger.Debug("SQL", "elapsed", elapsed, "rows", rows, "sql", sql)
	}
}
