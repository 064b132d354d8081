package db

import (
	"gitee.com/czyczk/claimlink/internal/models/sqlmodel"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the tables the journal and the reference signer use.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&sqlmodel.Transfer{}, &sqlmodel.Registration{}); err != nil {
		return errors.Wrap(err, "无法迁移数据库表")
	}

	return nil
}
