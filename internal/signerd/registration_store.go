package signerd

import (
	"sync"
	"time"

	"gitee.com/czyczk/claimlink/internal/db"
	"gitee.com/czyczk/claimlink/internal/models/sqlmodel"
	"gitee.com/czyczk/claimlink/internal/utils/idutils"
	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// DepositRegistration records that a transfer's deposit was reported to the signer.
type DepositRegistration struct {
	TransferID   common.Address
	ChainID      uint64
	Sender       common.Address
	TxHash       common.Hash
	RegisteredAt time.Time
}

// RegistrationStoreInterface keeps at most one registration per transfer.
type RegistrationStoreInterface interface {
	// SaveRegistration stores the registration unless the transfer already has one.
	//
	// Returns:
	//   the registration now on record for the transfer
	//   whether it was already on record before this call
	SaveRegistration(registration *DepositRegistration) (stored *DepositRegistration, duplicate bool, err error)

	// GetRegistration returns `errorcode.ErrorNotFound` if the transfer was never registered.
	GetRegistration(transferID common.Address) (*DepositRegistration, error)
}

// MemoryRegistrationStore keeps registrations for the lifetime of the process.
type MemoryRegistrationStore struct {
	mu            sync.Mutex
	registrations map[common.Address]DepositRegistration
}

func NewMemoryRegistrationStore() *MemoryRegistrationStore {
	return &MemoryRegistrationStore{registrations: make(map[common.Address]DepositRegistration)}
}

func (s *MemoryRegistrationStore) SaveRegistration(registration *DepositRegistration) (*DepositRegistration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.registrations[registration.TransferID]; ok {
		return &existing, true, nil
	}

	s.registrations[registration.TransferID] = *registration
	stored := *registration
	return &stored, false, nil
}

func (s *MemoryRegistrationStore) GetRegistration(transferID common.Address) (*DepositRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.registrations[transferID]
	if !ok {
		return nil, errorcode.ErrorNotFound
	}

	return &existing, nil
}

// GormRegistrationStore 实现了 `RegistrationStoreInterface` 接口，将押金登记存于关系数据库
type GormRegistrationStore struct {
	DB          *gorm.DB
	IDGenerator *idutils.IDGenerator
}

func NewGormRegistrationStore(gormDB *gorm.DB, idGenerator *idutils.IDGenerator) *GormRegistrationStore {
	return &GormRegistrationStore{
		DB:          gormDB,
		IDGenerator: idGenerator,
	}
}

func (s *GormRegistrationStore) SaveRegistration(registration *DepositRegistration) (*DepositRegistration, bool, error) {
	registrationDB := &sqlmodel.Registration{
		ID:           s.IDGenerator.GenerateSnowflakeId(),
		TransferID:   registration.TransferID.Hex(),
		ChainID:      registration.ChainID,
		Sender:       registration.Sender.Hex(),
		TxHash:       registration.TxHash.Hex(),
		RegisteredAt: registration.RegisteredAt,
	}

	existing, duplicate, err := db.SaveRegistrationToLocalDB(registrationDB, s.DB)
	if err != nil {
		return nil, false, err
	}

	return newDepositRegistrationFromDB(existing), duplicate, nil
}

func (s *GormRegistrationStore) GetRegistration(transferID common.Address) (*DepositRegistration, error) {
	registrationDB, err := db.GetRegistrationFromLocalDB(transferID.Hex(), s.DB)
	if err != nil {
		return nil, err
	}

	return newDepositRegistrationFromDB(registrationDB), nil
}

func newDepositRegistrationFromDB(registrationDB *sqlmodel.Registration) *DepositRegistration {
	return &DepositRegistration{
		TransferID:   common.HexToAddress(registrationDB.TransferID),
		ChainID:      registrationDB.ChainID,
		Sender:       common.HexToAddress(registrationDB.Sender),
		TxHash:       common.HexToHash(registrationDB.TxHash),
		RegisteredAt: registrationDB.RegisteredAt,
	}
}
