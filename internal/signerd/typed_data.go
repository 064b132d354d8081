package signerd

import (
	"gitee.com/czyczk/claimlink/pkg/models/typeddata"
	"github.com/ethereum/go-ethereum/common"
)

const escrowDomainName = "LinkdropEscrow"

// recoveredLinkTypedData builds the message a sender signs to authorize `linkKeyID` for a transfer held by `escrow`.
func recoveredLinkTypedData(linkKeyID, transferID common.Address, chainID uint64, escrowVersion string, escrow common.Address) *typeddata.TypedDataTemplate {
	return &typeddata.TypedDataTemplate{
		Domain: map[string]interface{}{
			"name":              escrowDomainName,
			"version":           escrowVersion,
			"chainId":           chainID,
			"verifyingContract": escrow.Hex(),
		},
		PrimaryType: "Transfer",
		Types: map[string][]typeddata.TypedField{
			typeddata.DomainTypeName: {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Transfer": {
				{Name: "linkKeyId", Type: "address"},
				{Name: "transferId", Type: "address"},
			},
		},
		Message: map[string]interface{}{
			"linkKeyId":  linkKeyID.Hex(),
			"transferId": transferID.Hex(),
		},
	}
}
