package controller

import (
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
)

// TransferInfo 包含转账状态查询及流程结束时应返回给客户端的信息。不包含任何私钥。
type TransferInfo struct {
	TransferID    string                    `json:"transferId"`
	LinkKeyID     string                    `json:"linkKeyId,omitempty"`
	Status        string                    `json:"status"`
	ClaimLink     claimlink.ClaimLinkParams `json:"claimLink"`
	DepositTxHash string                    `json:"depositTxHash,omitempty"`
	LastError     string                    `json:"lastError,omitempty"`
	UpdatedAt     int64                     `json:"updatedAt"`
}

// FlowResult 包含押金或恢复流程结束时应返回给客户端的信息。ClaimURL 与 LinkKey 均为持有者凭证。
type FlowResult struct {
	Transfer *TransferInfo `json:"transfer,omitempty"`
	ClaimURL string        `json:"claimUrl,omitempty"`
	LinkKey  string        `json:"linkKey,omitempty"` // Base58 private key. Only set when the flow stopped before a claim URL existed, so that the caller can resume.
	Error    string        `json:"error,omitempty"`
}

// DecodedLinkInfo 包含解码后的领取链接的公开信息
type DecodedLinkInfo struct {
	TransferID      string `json:"transferId"`
	ChainID         uint64 `json:"chainId"`
	LinkKeyID       string `json:"linkKeyId"`
	IsRecovery      bool   `json:"isRecovery"`
	SignatureLength int    `json:"signatureLength,omitempty"`
	Version         string `json:"version"`
	Source          string `json:"source"`
	HasMessage      bool   `json:"hasMessage"`
	Message         string `json:"message,omitempty"` // Only set when the sealed message was given
}

func NewTransferInfo(transfer *claimlink.Transfer) *TransferInfo {
	if transfer == nil {
		return nil
	}

	ret := &TransferInfo{
		TransferID: transfer.TransferID.Hex(),
		Status:     transfer.Status.String(),
		ClaimLink:  claimlink.NewClaimLinkParams(&transfer.Descriptor),
		LastError:  transfer.LastError,
		UpdatedAt:  transfer.UpdatedAt.Unix(),
	}
	if transfer.LinkKeyID != nil {
		ret.LinkKeyID = transfer.LinkKeyID.Hex()
	}
	if transfer.DepositTxHash != nil {
		ret.DepositTxHash = transfer.DepositTxHash.Hex()
	}

	return ret
}
