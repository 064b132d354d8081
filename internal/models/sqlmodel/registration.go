package sqlmodel

import (
	"time"

	"gorm.io/gorm"
)

// Registration 定义了数据库表 registrations，参考签名服务用其记录已登记的押金。
type Registration struct {
	gorm.Model
	ID           int64
	TransferID   string    `gorm:"type:CHAR(42) NOT NULL;uniqueIndex"`
	ChainID      uint64    `gorm:"not null"`
	Sender       string    `gorm:"type:CHAR(42) NOT NULL"`
	TxHash       string    `gorm:"type:CHAR(66) NOT NULL"`
	RegisteredAt time.Time `gorm:"not null"`
}
