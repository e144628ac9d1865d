package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"go-endoqa/pkg/models"
)

// reportRow is the persisted form of a report. The full document is kept as
// JSON; the other columns exist for filtering and ordering.
type reportRow struct {
	ID         string         `gorm:"type:varchar(36);primaryKey"`
	CreatedAt  time.Time      `gorm:"index"`
	Overall    string         `gorm:"type:varchar(4);index"`
	FrameCount int            `gorm:"not null"`
	DeadPixels int            `gorm:"not null"`
	Document   datatypes.JSON `gorm:"not null"`
}

func (reportRow) TableName() string {
	return "reports"
}

// SQLiteReportRepository stores reports in a SQLite database through gorm
type SQLiteReportRepository struct {
	db *gorm.DB
}

// OpenSQLiteReportRepository opens (creating if needed) the database at dsn
// and migrates the reports table
func OpenSQLiteReportRepository(dsn string) (*SQLiteReportRepository, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewSQLiteReportRepository(db)
}

// NewSQLiteReportRepository wraps an open gorm handle
func NewSQLiteReportRepository(db *gorm.DB) (*SQLiteReportRepository, error) {
	if err := db.AutoMigrate(&reportRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &SQLiteReportRepository{db: db}, nil
}

func (s *SQLiteReportRepository) Save(ctx context.Context, report *models.Report) error {
	if report == nil || report.ID == "" {
		return ErrMissingReportID
	}

	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	row := reportRow{
		ID:         report.ID,
		CreatedAt:  report.CreatedAt,
		Overall:    report.Overall(),
		FrameCount: report.FrameCount,
		DeadPixels: report.DeadPixels,
		Document:   datatypes.JSON(doc),
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("failed to save report %s: %w", report.ID, err)
	}
	return nil
}

func (s *SQLiteReportRepository) Get(ctx context.Context, id string) (*models.Report, error) {
	var row reportRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}
	return row.report()
}

func (s *SQLiteReportRepository) List(ctx context.Context, filter ListFilter) ([]*models.Report, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(filter.limit())
	if filter.Overall != "" {
		query = query.Where("overall = ?", filter.Overall)
	}

	var rows []reportRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	reports := make([]*models.Report, 0, len(rows))
	for i := range rows {
		r, err := rows[i].report()
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (s *SQLiteReportRepository) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (row reportRow) report() (*models.Report, error) {
	var r models.Report
	if err := json.Unmarshal(row.Document, &r); err != nil {
		return nil, fmt.Errorf("stored report %s is corrupt: %w", row.ID, err)
	}
	return &r, nil
}
