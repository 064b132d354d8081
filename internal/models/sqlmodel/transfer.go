package sqlmodel

import (
	"database/sql"
	"time"

	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Transfer 定义了数据库表 transfers，用于记录每一次押金或恢复流程的状态。不保存任何私钥。
type Transfer struct {
	gorm.Model
	ID              int64
	TransferID      string `gorm:"type:CHAR(42) NOT NULL;uniqueIndex:idx_transfer_link_key"`
	LinkKeyID       string `gorm:"type:CHAR(42) NOT NULL;default:'';uniqueIndex:idx_transfer_link_key"` // Empty for the deposit flow
	TokenType       string `gorm:"type:ENUM('NATIVE', 'ERC20', 'ERC721', 'ERC1155') NOT NULL"`
	ChainID         uint64 `gorm:"not null"`
	TokenAddress    string `gorm:"type:CHAR(42) NOT NULL"`
	TokenID         sql.NullString
	Sender          string `gorm:"type:CHAR(42) NOT NULL"`
	Amount          string `gorm:"type:VARCHAR(78) NOT NULL"`
	Expiration      int64  `gorm:"not null"`
	SenderMessage   []byte `gorm:"type:VARBINARY(183)"` // Sealed, as passed to the escrow
	Status          string `gorm:"type:VARCHAR(32) NOT NULL;index"`
	DepositTxHash   sql.NullString
	LastError       string `gorm:"type:TEXT"`
	StatusChangedAt time.Time `gorm:"not null"`
}

// ToModel 将一个 `sqlmodel.Transfer` 对象转为 `claimlink.Transfer` 对象。
func (t *Transfer) ToModel() (*claimlink.Transfer, error) {
	errMsg := "无法转换数据库对象为转账对象"

	tokenParams := claimlink.TokenParams{
		Type:    t.TokenType,
		ChainID: t.ChainID,
		Address: t.TokenAddress,
	}
	if t.TokenID.Valid {
		tokenParams.ID = t.TokenID.String
	}
	token, err := tokenParams.ToToken()
	if err != nil {
		return nil, errors.Wrap(err, errMsg)
	}

	amount, err := claimlink.ParseAmount(t.Amount)
	if err != nil {
		return nil, errors.Wrapf(err, errMsg+": amount: %v", t.Amount)
	}

	status, err := claimlink.NewTransferStatusFromString(t.Status)
	if err != nil {
		return nil, errors.Wrap(err, errMsg)
	}

	ret := &claimlink.Transfer{
		TransferID: common.HexToAddress(t.TransferID),
		Descriptor: claimlink.ClaimLinkDescriptor{
			Token:      *token,
			Sender:     common.HexToAddress(t.Sender),
			Amount:     amount,
			Expiration: t.Expiration,
		},
		Status:    status,
		LastError: t.LastError,
		UpdatedAt: t.StatusChangedAt,
	}

	if len(t.SenderMessage) > 0 {
		ret.Descriptor.EncryptedMessage = append([]byte{}, t.SenderMessage...)
	}
	if t.DepositTxHash.Valid {
		txHash := common.HexToHash(t.DepositTxHash.String)
		ret.DepositTxHash = &txHash
	}
	if t.LinkKeyID != "" {
		linkKeyID := common.HexToAddress(t.LinkKeyID)
		ret.LinkKeyID = &linkKeyID
	}

	return ret, nil
}

// NewTransferFromModel 通过 `claimlink.Transfer` 对象创建一个 `sqlmodel.Transfer` 对象。`id` 为数据库记录的 Snowflake ID。
func NewTransferFromModel(model *claimlink.Transfer, id int64) *Transfer {
	tokenParams := claimlink.NewClaimLinkParams(&model.Descriptor).Token

	ret := &Transfer{
		ID:              id,
		TransferID:      model.TransferID.Hex(),
		TokenType:       tokenParams.Type,
		ChainID:         tokenParams.ChainID,
		TokenAddress:    tokenParams.Address,
		Sender:          model.Descriptor.Sender.Hex(),
		Amount:          amountString(model),
		Expiration:      model.Descriptor.Expiration,
		Status:          model.Status.String(),
		LastError:       model.LastError,
		StatusChangedAt: model.UpdatedAt,
	}

	if tokenParams.ID != "" {
		_ = ret.TokenID.Scan(tokenParams.ID)
	}
	if len(model.Descriptor.EncryptedMessage) > 0 {
		ret.SenderMessage = append([]byte{}, model.Descriptor.EncryptedMessage...)
	}
	if model.DepositTxHash != nil {
		_ = ret.DepositTxHash.Scan(model.DepositTxHash.Hex())
	}
	if model.LinkKeyID != nil {
		ret.LinkKeyID = model.LinkKeyID.Hex()
	}

	return ret
}

func amountString(model *claimlink.Transfer) string {
	if model.Descriptor.Amount == nil {
		return "0"
	}

	return model.Descriptor.Amount.String()
}
