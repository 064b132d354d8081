package service

import (
	"gitee.com/czyczk/claimlink/internal/db"
	"gitee.com/czyczk/claimlink/internal/models/sqlmodel"
	"gitee.com/czyczk/claimlink/internal/utils/idutils"
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// JournalService 实现了 `JournalInterface` 接口，将转账记录存于关系数据库
type JournalService struct {
	DB          *gorm.DB
	IDGenerator *idutils.IDGenerator
}

func NewJournalService(gormDB *gorm.DB, idGenerator *idutils.IDGenerator) *JournalService {
	return &JournalService{
		DB:          gormDB,
		IDGenerator: idGenerator,
	}
}

func (s *JournalService) Save(transfer *claimlink.Transfer) error {
	transferDB := sqlmodel.NewTransferFromModel(transfer, s.IDGenerator.GenerateSnowflakeId())
	return db.SaveTransferToLocalDB(transferDB, s.DB)
}

func (s *JournalService) Get(transferID common.Address) (*claimlink.Transfer, error) {
	transferDB, err := db.GetTransferFromLocalDB(transferID.Hex(), s.DB)
	if err != nil {
		return nil, err
	}

	transfer, err := transferDB.ToModel()
	if err != nil {
		return nil, NewErrorCorruptedDatabaseResult(transferID.Hex(), err)
	}

	return transfer, nil
}

func (s *JournalService) ListByStatus(status claimlink.TransferStatus) ([]*claimlink.Transfer, error) {
	transfersDB, err := db.ListTransfersByStatusFromLocalDB(status.String(), s.DB)
	if err != nil {
		return nil, err
	}

	ret := make([]*claimlink.Transfer, 0, len(transfersDB))
	for _, transferDB := range transfersDB {
		transfer, err := transferDB.ToModel()
		if err != nil {
			return nil, NewErrorCorruptedDatabaseResult(transferDB.TransferID, err)
		}
		ret = append(ret, transfer)
	}

	return ret, nil
}
