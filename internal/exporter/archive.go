package exporter

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"eventscout/internal/logger"
	"eventscout/internal/models"
)

// ArchivedEvent is one exported row as stored in the SQLite archive. Rows are
// unique per (dataset, dedup key); re-exporting updates them in place.
type ArchivedEvent struct {
	ID          uint `gorm:"primaryKey"`
	UpdatedAt   time.Time
	Dataset     string `gorm:"uniqueIndex:idx_dataset_key;not null"`
	DedupKey    string `gorm:"uniqueIndex:idx_dataset_key;not null"`
	RunID       string `gorm:"index"`
	Name        string
	Date        string
	Venue       string
	Address     string
	PostalCode  string
	Genre       string
	Organizer   string
	Description string
	Keywords    string
	TicketURL   string
	ImageURL    string
}

// TableName pins the archive table name.
func (ArchivedEvent) TableName() string {
	return "events"
}

// SQLiteArchive upserts exported rows into a SQLite database.
type SQLiteArchive struct {
	db     *gorm.DB
	logger *logger.Logger
	runID  string
}

// OpenSQLiteArchive opens (creating if needed) the archive at path and
// migrates its schema.
func OpenSQLiteArchive(path, runID string, log *logger.Logger) (*SQLiteArchive, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open archive: %w", ErrExport, err)
	}

	if err := db.AutoMigrate(&ArchivedEvent{}); err != nil {
		return nil, fmt.Errorf("%w: failed to migrate archive: %w", ErrExport, err)
	}

	return &SQLiteArchive{db: db, runID: runID, logger: log.Component("archive")}, nil
}

// Export implements Exporter.
func (a *SQLiteArchive) Export(datasets []models.Dataset) error {
	var rows []ArchivedEvent

	for _, ds := range datasets {
		for _, ev := range ds.Events {
			rows = append(rows, ArchivedEvent{
				Dataset:     ds.Key,
				DedupKey:    ev.Key().String(),
				RunID:       a.runID,
				Name:        ev.Name,
				Date:        ev.Date,
				Venue:       ev.VenueName,
				Address:     ev.Address,
				PostalCode:  ev.PostalCode,
				Genre:       ev.Genre,
				Organizer:   ev.Organizer,
				Description: ev.Description,
				Keywords:    strings.Join(ev.Keywords, ", "),
				TicketURL:   ev.TicketURL,
				ImageURL:    ev.ImageURL,
			})
		}
	}

	if len(rows) == 0 {
		return nil
	}

	err := a.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "dataset"}, {Name: "dedup_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"updated_at", "run_id", "name", "date", "venue", "address", "postal_code",
			"genre", "organizer", "description", "keywords", "ticket_url", "image_url",
		}),
	}).CreateInBatches(rows, 200).Error
	if err != nil {
		return fmt.Errorf("%w: archive upsert: %w", ErrExport, err)
	}

	a.logger.Info("🗄️  Archived events", "rows", len(rows))

	return nil
}

// Count returns the number of archived rows for dataset, or all rows when
// dataset is empty.
func (a *SQLiteArchive) Count(dataset string) (int64, error) {
	var n int64

	q := a.db.Model(&ArchivedEvent{})
	if dataset != "" {
		q = q.Where("dataset = ?", dataset)
	}

	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}

	return n, nil
}

// Close releases the database handle.
func (a *SQLiteArchive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
