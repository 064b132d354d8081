package service

import (
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/common"
)

// JournalInterface 记录每个转账的状态变化，使广播后失败的押金可被人工或后台对账。不记录私钥。
type JournalInterface interface {
	// 保存转账的当前状态。同一转账（同一 link key）的记录被覆盖。
	//
	// 参数：
	//   转账
	Save(transfer *claimlink.Transfer) error

	// 获取转账押金流程的记录。
	//
	// 参数：
	//   转账 ID
	//
	// 返回：
	//   转账（不存在时返回 `errorcode.ErrorNotFound`）
	Get(transferID common.Address) (*claimlink.Transfer, error)

	// 列出处于某一状态的所有转账。
	//
	// 参数：
	//   状态
	//
	// 返回：
	//   转账列表
	ListByStatus(status claimlink.TransferStatus) ([]*claimlink.Transfer, error)
}
