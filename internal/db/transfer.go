package db

import (
	"gitee.com/czyczk/claimlink/internal/models/sqlmodel"
	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaveTransferToLocalDB 将 `sqlmodel.Transfer` 写入数据库。同一转账（及同一 link key）的记录已存在时覆盖其状态，保留原记录 ID。
func SaveTransferToLocalDB(transfer *sqlmodel.Transfer, db *gorm.DB) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		dbResult := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "transfer_id"}, {Name: "link_key_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"updated_at", "status", "deposit_tx_hash", "last_error", "status_changed_at",
			}),
		}).Create(transfer)
		if dbResult.Error != nil {
			return errors.Wrap(dbResult.Error, "无法将转账记录存入数据库")
		}

		return nil
	})

	return err
}

// GetTransferFromLocalDB 从数据库中读取指定转账的押金流程记录。
func GetTransferFromLocalDB(transferID string, db *gorm.DB) (*sqlmodel.Transfer, error) {
	var transferDB sqlmodel.Transfer
	dbResult := db.Where("transfer_id = ? AND link_key_id = ?", transferID, "").Take(&transferDB)
	if dbResult.Error != nil {
		if errors.Cause(dbResult.Error) == gorm.ErrRecordNotFound {
			return nil, errorcode.ErrorNotFound
		} else {
			return nil, errors.Wrap(dbResult.Error, "无法从数据库中获取转账记录")
		}
	}

	return &transferDB, nil
}

// ListTransfersByStatusFromLocalDB 从数据库中读取处于指定状态的所有转账记录，按 ID 排序。
func ListTransfersByStatusFromLocalDB(status string, db *gorm.DB) ([]sqlmodel.Transfer, error) {
	var transfersDB []sqlmodel.Transfer
	dbResult := db.Where("status = ?", status).Order("id").Find(&transfersDB)
	if dbResult.Error != nil {
		return nil, errors.Wrap(dbResult.Error, "无法从数据库中获取转账记录")
	}

	return transfersDB, nil
}
