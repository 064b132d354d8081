package claimlink

import (
	"fmt"
	"time"

	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// TransferStatus 用于标志一次转账在生命周期中的位置
type TransferStatus int

const (
	Created TransferStatus = iota
	DepositRequested
	DepositSubmitted
	Deposited
	Registered
	RecoveryRequested
	RecoverySigned
	Recovered
	Expired
	// Orphaned means the deposit was broadcast but its confirmation could not be observed. Needs reconciliation.
	Orphaned
	// Aborted means a step failed before anything left the process, or the deposit reverted on chain.
	Aborted
)

var transferStatusNames = map[TransferStatus]string{
	Created:           "Created",
	DepositRequested:  "DepositRequested",
	DepositSubmitted:  "DepositSubmitted",
	Deposited:         "Deposited",
	Registered:        "Registered",
	RecoveryRequested: "RecoveryRequested",
	RecoverySigned:    "RecoverySigned",
	Recovered:         "Recovered",
	Expired:           "Expired",
	Orphaned:          "Orphaned",
	Aborted:           "Aborted",
}

func (s TransferStatus) String() string {
	if name, ok := transferStatusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("%d", int(s))
}

// NewTransferStatusFromString 从 enum 名称获得 TransferStatus enum。
func NewTransferStatusFromString(enumString string) (TransferStatus, error) {
	for status, name := range transferStatusNames {
		if name == enumString {
			return status, nil
		}
	}

	return 0, fmt.Errorf("unknown transfer status '%v'", enumString)
}

func (s TransferStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TransferStatus) UnmarshalText(text []byte) error {
	parsed, err := NewTransferStatusFromString(string(text))
	if err != nil {
		return err
	}

	*s = parsed
	return nil
}

// IsTerminal reports whether no further transition is possible.
func (s TransferStatus) IsTerminal() bool {
	switch s {
	case Registered, Recovered, Expired, Aborted:
		return true
	}
	return false
}

// allowedTransitions lists the forward edges of both paths. `Expired` is reachable from every non-terminal state and is not listed.
var allowedTransitions = map[TransferStatus][]TransferStatus{
	Created:           {DepositRequested, RecoveryRequested, Aborted},
	DepositRequested:  {DepositSubmitted, Aborted},
	DepositSubmitted:  {Deposited, Orphaned, Aborted},
	Deposited:         {Registered},
	Orphaned:          {Deposited, Aborted},
	RecoveryRequested: {RecoverySigned, Aborted},
	RecoverySigned:    {Recovered, Aborted},
}

// CanTransition reports whether the state machine allows moving from `from` to `to`.
func CanTransition(from, to TransferStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == Expired {
		return true
	}

	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}

// Transfer is one run of the deposit or recovery flow. A transfer is driven by a single goroutine at a time.
type Transfer struct {
	TransferID    common.Address
	Descriptor    ClaimLinkDescriptor
	Status        TransferStatus
	DepositTxHash *common.Hash    // Set once the deposit has been broadcast
	LinkKeyID     *common.Address // Set on the recovery path
	LastError     string
	UpdatedAt     time.Time
}

// NewTransfer creates a transfer in the `Created` state.
func NewTransfer(transferID common.Address, descriptor ClaimLinkDescriptor, now time.Time) *Transfer {
	return &Transfer{
		TransferID: transferID,
		Descriptor: descriptor,
		Status:     Created,
		UpdatedAt:  now,
	}
}

// Transition moves the transfer to `to`. An edge the state machine does not allow leaves the transfer untouched and returns an error with `errorcode.ErrorInvalidTransition` as its cause.
func (t *Transfer) Transition(to TransferStatus, now time.Time) error {
	if !CanTransition(t.Status, to) {
		return errors.Wrapf(errorcode.ErrorInvalidTransition, "transfer %v cannot move from %v to %v", t.TransferID.Hex(), t.Status, to)
	}

	t.Status = to
	t.UpdatedAt = now
	return nil
}

// ExpireIfDue moves a non-terminal transfer to `Expired` once its expiration has passed. Returns whether it did.
func (t *Transfer) ExpireIfDue(now time.Time) bool {
	if t.Status.IsTerminal() || !t.Descriptor.IsExpired(now) {
		return false
	}

	t.Status = Expired
	t.UpdatedAt = now
	return true
}
