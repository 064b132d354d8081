package networkinfo

import (
	"fmt"
	"io/ioutil"
	"strings"

	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// EscrowNetworkConfig contains the escrow contracts of every supported chain and the contract version of every known escrow address.
type EscrowNetworkConfig struct {
	Chains   map[uint64]ChainEscrow `yaml:"chains"`
	Versions map[string][]string    `yaml:"versions"` // Escrow version -> escrow addresses
}

// ChainEscrow contains the escrow contracts deployed on one chain.
type ChainEscrow struct {
	Name      string `yaml:"name"`
	Escrow    string `yaml:"escrow"`    // Native and ERC20 deposits
	EscrowNFT string `yaml:"escrowNFT"` // ERC721 and ERC1155 deposits
}

const (
	ChainIDOptimism  uint64 = 10
	ChainIDPolygon   uint64 = 137
	ChainIDBase      uint64 = 8453
	ChainIDArbitrum  uint64 = 42161
	ChainIDAvalanche uint64 = 43114
)

const (
	escrowBase      = "0x5badb0143f69015c5c86cbd9373474a9c8ab713b"
	escrowNFTBase   = "0x3c74782de03c0402d207fe41307fe50fe9b6b5c7"
	escrowOthers    = "0xbe7b40eb3a9d85d3a76142cb637ab824f0d35ead"
	escrowNFTOthers = "0x5fc1316119a1b7cec52a2984c62764343dca70c9"
)

// DefaultEscrowNetworkConfig returns the production escrow deployments.
func DefaultEscrowNetworkConfig() *EscrowNetworkConfig {
	return &EscrowNetworkConfig{
		Chains: map[uint64]ChainEscrow{
			ChainIDBase:      {Name: "base", Escrow: escrowBase, EscrowNFT: escrowNFTBase},
			ChainIDPolygon:   {Name: "polygon", Escrow: escrowOthers, EscrowNFT: escrowNFTOthers},
			ChainIDAvalanche: {Name: "avalanche", Escrow: escrowOthers, EscrowNFT: escrowNFTOthers},
			ChainIDOptimism:  {Name: "optimism", Escrow: escrowOthers, EscrowNFT: escrowNFTOthers},
			ChainIDArbitrum:  {Name: "arbitrum", Escrow: escrowOthers, EscrowNFT: escrowNFTOthers},
		},
		Versions: map[string][]string{
			"1": {"0x0522dd6e9f2beca1cd15a5fd275dc279a1a08eac"},
			"2": {
				"0xad27383460183fd7e21b71df3b4cac9480eb9a75",
				"0x0B79cC1E78C47fF08cA6f355e8aCD32AEa5bFe58",
				"0xc4eb6e5933bc5e32dfd5c80baf143212a95549b3",
			},
			"3": {
				"0x0b962bbbf101941d0d0ec1041d01668dac36647a",
				"0x2d5dfe0e4582c905233df527242616017f36e192",
				"0x021ccef76804c43da62b01652d41bcf6f6394731",
			},
			"3.1": {
				"0x88d51990a3b962f975846f3688e36d2a1fc611f1",
				"0x648b9a6c54890a8fb17de128c6352f621154f358",
				"0x7143f68e689e8540a8eec26b482e1d4ac2e28794",
				"0xe07fa88a10a915b7339aff050db82c0030bf6861",
				"0x4366caf3963d147da4a4287061354058d871d1be",
				"0x317d2501396fe75d997799bf3bdbc7cc6768b533",
				"0x59548f7e4ef381df57a3e5dacbf2ab65111404d6",
				"0xedfea6336c922f896c7e09ba282beb0cb4476675",
				"0xff3471dfdc6f82694e5ad4d4e7ffedf23e1e38e0",
				"0x139b79602b68e8198ea3d57f5e6311fd98262269",
				"0xe0cec4f0b66257fc6b13652c303237de0fd92ed8",
			},
			"3.2": {escrowBase, escrowNFTBase, escrowOthers, escrowNFTOthers},
		},
	}
}

// EscrowAddressForToken returns the escrow contract that takes deposits of the token.
func (c *EscrowNetworkConfig) EscrowAddressForToken(token *claimlink.Token) (common.Address, error) {
	chain, ok := c.Chains[token.ChainID]
	if !ok {
		return common.Address{}, fmt.Errorf("chain %v is not supported", token.ChainID)
	}

	escrow := chain.Escrow
	if token.Type.IsNFT() {
		escrow = chain.EscrowNFT
	}
	if !common.IsHexAddress(escrow) {
		return common.Address{}, fmt.Errorf("chain %v has no valid escrow for %v tokens", token.ChainID, token.Type)
	}

	return common.HexToAddress(escrow), nil
}

// EscrowVersion returns the contract version of an escrow address. The version is part of the escrow's EIP-712 domain.
func (c *EscrowNetworkConfig) EscrowVersion(escrow common.Address) (string, error) {
	for version, addresses := range c.Versions {
		for _, address := range addresses {
			if strings.EqualFold(address, escrow.Hex()) {
				return version, nil
			}
		}
	}

	return "", fmt.Errorf("escrow %v has no known version", escrow.Hex())
}

// ParseEscrowNetworkConfig creates an `EscrowNetworkConfig` object from the specified config file. Sections missing from the file keep their defaults.
//
// Parameters:
//   the path to the config file
//
// Returns:
//   an object containing the escrow network config info
func ParseEscrowNetworkConfig(configFilePath string) (*EscrowNetworkConfig, error) {
	yamlBytes, err := ioutil.ReadFile(configFilePath)
	if err != nil {
		return nil, errors.Wrap(err, "读取托管合约网络配置文件失败")
	}

	var parsed EscrowNetworkConfig
	if err = yaml.Unmarshal(yamlBytes, &parsed); err != nil {
		return nil, errors.Wrap(err, "解析 YAML 文件时出现错误")
	}

	config := DefaultEscrowNetworkConfig()
	if len(parsed.Chains) > 0 {
		config.Chains = parsed.Chains
	}
	if len(parsed.Versions) > 0 {
		config.Versions = parsed.Versions
	}

	return config, nil
}
