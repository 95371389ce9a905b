package dao

import (
	"fmt"

	"gorm.io/gorm"
)

func InitTables(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&User{},
		&Event{},
		&Company{},
		&Position{},
		&Student{},
		&Preference{},
		&ManualAssignment{},
		&PrefillQuota{},
		&LotteryJob{},
		&LotteryJobSnapshot{},
		&LotteryResult{},
	); err != nil {
		return fmt.Errorf("db.AutoMigrate -> %w", err)
	}

	// gorm tags cannot express a partial index.
	err := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS " + runningJobIndex +
		" ON lottery_jobs (event_id) WHERE status = '" + JobStatusRunning + "'").Error
	if err != nil {
		return fmt.Errorf("create %s -> %w", runningJobIndex, err)
	}

	return nil
}

func dropAllTables(db *gorm.DB) error {
	var tableNames []string
	if err := db.Table("information_schema.tables").
		Where("table_schema = ?", "public").
		Pluck("table_name", &tableNames).Error; err != nil {
		return err
	}

	for _, tableName := range tableNames {
		if err := db.Exec("DROP TABLE IF EXISTS " + tableName + " CASCADE").Error; err != nil {
			return err
		}
	}

	return nil
}
