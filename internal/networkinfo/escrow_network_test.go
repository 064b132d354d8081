package networkinfo

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscrowAddressForToken(t *testing.T) {
	config := DefaultEscrowNetworkConfig()

	escrow, err := config.EscrowAddressForToken(&claimlink.Token{Type: claimlink.ERC20, ChainID: ChainIDBase})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(escrowBase), escrow)

	escrow, err = config.EscrowAddressForToken(&claimlink.Token{Type: claimlink.ERC721, ChainID: ChainIDPolygon, ID: big.NewInt(1)})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(escrowNFTOthers), escrow)

	_, err = config.EscrowAddressForToken(&claimlink.Token{Type: claimlink.Native, ChainID: 1})
	assert.Error(t, err)
}

func TestEscrowVersion(t *testing.T) {
	config := DefaultEscrowNetworkConfig()

	version, err := config.EscrowVersion(common.HexToAddress("0x5BADB0143F69015C5C86CBD9373474A9C8AB713B"))
	require.NoError(t, err)
	assert.Equal(t, "3.2", version)

	version, err = config.EscrowVersion(common.HexToAddress("0x0b79cc1e78c47ff08ca6f355e8acd32aea5bfe58"))
	require.NoError(t, err)
	assert.Equal(t, "2", version)

	_, err = config.EscrowVersion(common.HexToAddress("0x01"))
	assert.Error(t, err)
}

func TestParseEscrowNetworkConfigKeepsMissingSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrows.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chains:
  31337:
    name: anvil
    escrow: "0x00000000000000000000000000000000000000e1"
    escrowNFT: "0x00000000000000000000000000000000000000e2"
`), 0o600))

	config, err := ParseEscrowNetworkConfig(path)
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	assert.Len(t, config.Chains, 1)
	assert.Equal(t, "anvil", config.Chains[31337].Name)
	assert.Contains(t, config.Versions, "3.2")

	_, err = ParseEscrowNetworkConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
