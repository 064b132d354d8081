package db

import (
	"gitee.com/czyczk/claimlink/internal/models/sqlmodel"
	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// SaveRegistrationToLocalDB 登记一笔押金。已登记过的转账不会被覆盖，返回已有记录与 `true`。
func SaveRegistrationToLocalDB(registration *sqlmodel.Registration, db *gorm.DB) (existing *sqlmodel.Registration, duplicate bool, err error) {
	err = db.Transaction(func(tx *gorm.DB) error {
		var registrationDB sqlmodel.Registration
		dbResult := tx.Where("transfer_id = ?", registration.TransferID).Take(&registrationDB)
		if dbResult.Error == nil {
			existing = &registrationDB
			duplicate = true
			return nil
		}
		if errors.Cause(dbResult.Error) != gorm.ErrRecordNotFound {
			return errors.Wrap(dbResult.Error, "无法从数据库中获取押金登记")
		}

		if dbResult = tx.Create(registration); dbResult.Error != nil {
			return errors.Wrap(dbResult.Error, "无法将押金登记存入数据库")
		}
		existing = registration
		return nil
	})

	return
}

// GetRegistrationFromLocalDB 从数据库中读取指定转账的押金登记。
func GetRegistrationFromLocalDB(transferID string, db *gorm.DB) (*sqlmodel.Registration, error) {
	var registrationDB sqlmodel.Registration
	dbResult := db.Where("transfer_id = ?", transferID).Take(&registrationDB)
	if dbResult.Error != nil {
		if errors.Cause(dbResult.Error) == gorm.ErrRecordNotFound {
			return nil, errorcode.ErrorNotFound
		}
		return nil, errors.Wrap(dbResult.Error, "无法从数据库中获取押金登记")
	}

	return &registrationDB, nil
}
