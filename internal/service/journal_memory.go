package service

import (
	"sort"
	"sync"

	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/common"
)

type journalKey struct {
	transferID common.Address
	linkKeyID  common.Address // Zero for the deposit flow
}

// MemoryJournal 实现了 `JournalInterface` 接口，仅保存在内存中。用于 CLI 的单次操作与测试。
type MemoryJournal struct {
	mu      sync.RWMutex
	records map[journalKey]*claimlink.Transfer
	order   []journalKey
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{records: make(map[journalKey]*claimlink.Transfer)}
}

func newJournalKey(transfer *claimlink.Transfer) journalKey {
	key := journalKey{transferID: transfer.TransferID}
	if transfer.LinkKeyID != nil {
		key.linkKeyID = *transfer.LinkKeyID
	}

	return key
}

func (j *MemoryJournal) Save(transfer *claimlink.Transfer) error {
	key := newJournalKey(transfer)
	snapshot := copyTransfer(transfer)

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.records[key]; !ok {
		j.order = append(j.order, key)
	}
	j.records[key] = snapshot
	return nil
}

func (j *MemoryJournal) Get(transferID common.Address) (*claimlink.Transfer, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	transfer, ok := j.records[journalKey{transferID: transferID}]
	if !ok {
		return nil, errorcode.ErrorNotFound
	}

	return copyTransfer(transfer), nil
}

func (j *MemoryJournal) ListByStatus(status claimlink.TransferStatus) ([]*claimlink.Transfer, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	ret := []*claimlink.Transfer{}
	for _, key := range j.order {
		if transfer := j.records[key]; transfer.Status == status {
			ret = append(ret, copyTransfer(transfer))
		}
	}

	sort.SliceStable(ret, func(a, b int) bool {
		return ret[a].UpdatedAt.Before(ret[b].UpdatedAt)
	})
	return ret, nil
}

// copyTransfer keeps callers from mutating stored records through shared pointers.
func copyTransfer(transfer *claimlink.Transfer) *claimlink.Transfer {
	ret := *transfer
	if transfer.DepositTxHash != nil {
		txHash := *transfer.DepositTxHash
		ret.DepositTxHash = &txHash
	}
	if transfer.LinkKeyID != nil {
		linkKeyID := *transfer.LinkKeyID
		ret.LinkKeyID = &linkKeyID
	}

	return &ret
}
