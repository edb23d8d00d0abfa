package checkpoint

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Entry is one persisted mapping entry.
type Entry struct {
	SourceTypeID string `gorm:"primaryKey;size:64"`
	InstanceID   string `gorm:"primaryKey;size:64"`
	RecordID     string `gorm:"size:64;not null"`
	CreatedAt    time.Time
}

func (Entry) TableName() string {
	return "block_to_links_checkpoints"
}

// SQLStore keeps entries in a relational table through gorm. Any gorm
// dialector works; the CLI uses Postgres.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLStore opens the database and creates the entry table if needed.
func OpenSQLStore(dialector gorm.Dialector) (*SQLStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := &SQLStore{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Entry{})
}

func (s *SQLStore) Load(ctx context.Context, sourceTypeID string) (map[string]string, error) {
	var rows []Entry
	err := s.db.WithContext(ctx).Where("source_type_id = ?", sourceTypeID).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.InstanceID] = row.RecordID
	}
	return out, nil
}

func (s *SQLStore) Save(ctx context.Context, sourceTypeID string, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]Entry, 0, len(entries))
	for instanceID, recordID := range entries {
		rows = append(rows, Entry{SourceTypeID: sourceTypeID, InstanceID: instanceID, RecordID: recordID})
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, 100).Error
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context, sourceTypeID string) error {
	err := s.db.WithContext(ctx).Where("source_type_id = ?", sourceTypeID).Delete(&Entry{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
