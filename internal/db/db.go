package db

import (
	"fmt"
	"time"

	"chatnow/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Connect 负责建立数据库连接，并带有简单的重试来等待容器就绪。
func Connect(driver, dsn string) (*gorm.DB, error) {
	d, err := dialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	attempts := 10
	if driver == "sqlite" {
		attempts = 1
	}
	var gdb *gorm.DB
	for i := 0; i < attempts; i++ {
		gdb, err = gorm.Open(d, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err == nil {
			sqlDB, err2 := gdb.DB()
			if err2 == nil {
				if driver == "sqlite" {
					// SQLite 只允许单写者，避免 :memory: 在多连接间分裂。
					sqlDB.SetMaxOpenConns(1)
				} else {
					sqlDB.SetMaxIdleConns(5)
					sqlDB.SetMaxOpenConns(20)
					sqlDB.SetConnMaxLifetime(time.Hour)
				}
				return gdb, nil
			}
			err = err2
		}
		if i < attempts-1 {
			time.Sleep(time.Duration(500+i*200) * time.Millisecond)
		}
	}
	return nil, err
}

// Migrate 自动迁移聊天室涉及的全部表结构。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&models.User{}, &models.Message{}, &models.Report{})
}
