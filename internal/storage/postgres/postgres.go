// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/solana-txflow/internal/history"
	"github.com/rovshanmuradov/solana-txflow/internal/storage/models"
)

// gormLogger реализует интерфейс logger.Interface для GORM
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger: zapLogger,
		logLevel:  logger.Warn,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

// Trace пишет SQL запрос; ошибки всегда, остальное только на уровне Info
func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", time.Since(begin)),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	if err != nil && err != gorm.ErrRecordNotFound {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
		return
	}
	if l.logLevel >= logger.Info {
		l.zapLogger.Debug("trace", fields...)
	}
}

// Store keeps the history copy in the tx_history table, one row per wallet and txid.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore opens dsn and prepares the table.
func NewStore(dsn string, zapLogger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm")),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, logger: zapLogger.Named("postgres-history")}
	if err := s.RunMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// RunMigrations creates the table under an advisory lock.
func (s *Store) RunMigrations() error {
	var lockObtained bool
	if err := s.db.Raw("SELECT pg_try_advisory_lock(101)").Scan(&lockObtained).Error; err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return fmt.Errorf("another migration is in progress")
	}
	defer s.db.Exec("SELECT pg_advisory_unlock(101)")

	if err := s.db.AutoMigrate(&models.Transaction{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (history.Snapshot, error) {
	var rows []models.Transaction
	if err := s.db.WithContext(ctx).Order("sent_at desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	snap := history.Snapshot{}
	for _, row := range rows {
		byID, ok := snap[row.WalletAddress]
		if !ok {
			byID = make(map[string]history.Entry)
			snap[row.WalletAddress] = byID
		}
		byID[row.Signature] = toEntry(row)
	}
	return snap, nil
}

// Save upserts every entry of snap and deletes the rows of its wallets that snap no longer holds.
func (s *Store) Save(ctx context.Context, snap history.Snapshot) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for owner, byID := range snap {
			keep := make([]string, 0, len(byID))
			rows := make([]models.Transaction, 0, len(byID))
			for id, e := range byID {
				keep = append(keep, id)
				rows = append(rows, toRow(owner, id, e))
			}

			del := tx.Where("wallet_address = ?", owner)
			if len(keep) > 0 {
				del = del.Where("signature NOT IN ?", keep)
			}
			if err := del.Delete(&models.Transaction{}).Error; err != nil {
				return fmt.Errorf("trim history of %s: %w", owner, err)
			}
			if len(rows) == 0 {
				continue
			}

			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "wallet_address"}, {Name: "signature"}},
				DoUpdates: clause.AssignmentColumns([]string{"title", "description", "status", "block_slot", "sent_at", "updated_at"}),
			}).Create(&rows).Error
			if err != nil {
				return fmt.Errorf("save history of %s: %w", owner, err)
			}
		}
		return nil
	})
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(owner, id string, e history.Entry) models.Transaction {
	if e.TxID != "" {
		id = e.TxID
	}
	return models.Transaction{
		WalletAddress: owner,
		Signature:     id,
		Title:         e.Title,
		Description:   e.Description,
		Status:        string(e.Status),
		BlockSlot:     e.BlockSlot,
		SentAt:        e.Time.UTC(),
	}
}

func toEntry(row models.Transaction) history.Entry {
	return history.Entry{
		TxID:        row.Signature,
		Title:       row.Title,
		Description: row.Description,
		Status:      history.Status(row.Status),
		BlockSlot:   row.BlockSlot,
		Time:        row.SentAt.UTC(),
	}
}
