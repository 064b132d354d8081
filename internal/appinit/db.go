package appinit

import (
	"gitee.com/czyczk/claimlink/internal/db"
	errors "github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB connects to the MySQL database and migrates the tables used by the app.
func OpenDB(dsn string) (*gorm.DB, error) {
	gormDB, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "无法连接数据库")
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, err
	}

	return gormDB, nil
}
