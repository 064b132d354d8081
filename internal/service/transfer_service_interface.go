package service

import (
	"context"

	"gitee.com/czyczk/claimlink/internal/linkmessage"
	"gitee.com/czyczk/claimlink/internal/typeddata"
	"gitee.com/czyczk/claimlink/pkg/keyutils"
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/common"
)

// DepositOutcome is what a deposit flow leaves behind. On failure it still carries the transfer and, once generated, the link key, so the caller can reconcile or resume.
type DepositOutcome struct {
	Transfer   *claimlink.Transfer
	LinkKey    *keyutils.KeyPair
	MessageKey []byte                    // Initial key of the sender message, if any
	Token      *claimlink.ClaimLinkToken // Set once the deposit is registered
	ClaimURL   string
}

// RecoveryOutcome is what a recovery flow leaves behind.
type RecoveryOutcome struct {
	Transfer *claimlink.Transfer
	Token    *claimlink.ClaimLinkToken // Set once the sender has signed
	ClaimURL string
}

// TransferServiceInterface drives the deposit and recovery flows of a claim link. Each call drives one transfer from start to a terminal (or orphaned) state; different transfers may be driven concurrently.
type TransferServiceInterface interface {
	// CreateDeposit 生成新的 link key，向签名服务请求押金参数，广播押金交易，等待确认后登记押金并生成领取链接。
	//
	// 参数：
	//   claim link descriptor
	//
	// 返回：
	//   押金流程结果（失败时可能不为空，见 `DepositOutcome`）
	CreateDeposit(ctx context.Context, descriptor *claimlink.ClaimLinkDescriptor) (*DepositOutcome, error)

	// CreateDepositWithMessage 与 CreateDeposit 相同，但会用发送者的签名派生的密钥加密留言，随押金交给托管合约，并把初始密钥写入领取链接的 `m` 参数。
	//
	// 参数：
	//   claim link descriptor
	//   发送者留言（签名者地址须与 descriptor 的 sender 一致）
	//
	// 返回：
	//   押金流程结果
	CreateDepositWithMessage(ctx context.Context, descriptor *claimlink.ClaimLinkDescriptor, message *linkmessage.SenderMessage) (*DepositOutcome, error)

	// Recover 为已有转账生成新的 link key，由发送者对签名服务给出的 typed data 签名，生成恢复链接。
	//
	// 参数：
	//   转账 ID
	//   claim link descriptor
	//   发送者的签名者（地址须与 descriptor 的 sender 一致）
	//
	// 返回：
	//   恢复流程结果
	Recover(ctx context.Context, transferID common.Address, descriptor *claimlink.ClaimLinkDescriptor, sender typeddata.TypedDataSigner) (*RecoveryOutcome, error)

	// ResumeRegistration 为已确认但未登记的押金完成登记。
	//
	// 参数：
	//   转账 ID
	//   该转账的 link key（调用方保存）
	//
	// 返回：
	//   押金流程结果
	ResumeRegistration(ctx context.Context, transferID common.Address, linkKey *keyutils.KeyPair) (*DepositOutcome, error)
}
