package appinit

import (
	"io/ioutil"
	"time"

	errors "github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// ServerInfo is the Go struct for contents in server.yaml.
type ServerInfo struct {
	Port                int             `yaml:"port"`
	ChainID             uint64          `yaml:"chainId"`             // The chain deposits are sent on
	RPCURL              string          `yaml:"rpcUrl"`              // JSON-RPC endpoint of that chain
	SenderKey           string          `yaml:"senderKey"`           // The path to the sender's private key file
	EscrowConfig        string          `yaml:"escrowConfig"`        // The path to an escrow network config. Built-in deployments if empty.
	ClaimHost           string          `yaml:"claimHost"`           // e.g. https://p2p.linkdrop.io
	Source              string          `yaml:"source"`              // The `src` of generated links
	ConfirmationTimeout time.Duration   `yaml:"confirmationTimeout"` // How long to wait for the deposit receipt before orphaning
	PollInterval        time.Duration   `yaml:"pollInterval"`        // Receipt polling interval
	Database            *DatabaseInfo   `yaml:"database"`            // Transfers are journaled in memory if absent
	Signer              *SignerInfo     `yaml:"signer"`
	Retry               *RetryInfo      `yaml:"retry"`
	Reconciler          *ReconcilerInfo `yaml:"reconciler"`
}

// DatabaseInfo locates the MySQL database of the transfer journal.
type DatabaseInfo struct {
	DSN    string `yaml:"dsn"`    // e.g. user:pass@tcp(127.0.0.1:3306)/claimlink?charset=utf8mb4&parseTime=True&loc=Local
	NodeID int64  `yaml:"nodeId"` // Snowflake node ID of this process (0-1023)
}

// SignerInfo selects and configures the signer transport.
type SignerInfo struct {
	Transport string            `yaml:"transport"` // http, ws, exec or inproc
	Endpoint  string            `yaml:"endpoint"`  // URL for http and ws
	Headers   map[string]string `yaml:"headers"`   // Extra headers for http and ws, e.g. an API key
	Path      string            `yaml:"path"`      // Executable for exec
	Args      []string          `yaml:"args"`      // Leading arguments for exec
	Env       []string          `yaml:"env"`       // Extra environment for exec, as KEY=value
	Mode      string            `yaml:"mode"`      // Selector encoding for exec: positional or field
	Timeout   time.Duration     `yaml:"timeout"`   // Per-call timeout for http and ws
}

// RetryInfo bounds retries of unreachable signer calls.
type RetryInfo struct {
	MaxAttempts    int           `yaml:"maxAttempts"`
	InitialBackoff time.Duration `yaml:"initialBackoff"`
	MaxBackoff     time.Duration `yaml:"maxBackoff"`
}

// ReconcilerInfo configures the orphan reconciler.
type ReconcilerInfo struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Workers  int           `yaml:"workers"`
}

// LoadServerInfo loads the server config file (in YAML) which contains info needed to start a server.
//
// Parameters:
//   the path to the config file
//
// Returns:
//   the `ServerInfo` struct containing the info needed to start a server
func LoadServerInfo(configFilePath string) (ret ServerInfo, err error) {
	yamlStr, err := ioutil.ReadFile(configFilePath)
	if err != nil {
		err = errors.Wrap(err, "读取服务器配置文件失败")
		return
	}

	err = yaml.Unmarshal(yamlStr, &ret)
	if err != nil {
		err = errors.Wrap(err, "解析 YAML 文件时出现错误")
		return
	}

	if ret.ChainID == 0 {
		err = errors.New("未指定链 ID")
		return
	}
	if ret.SenderKey == "" {
		err = errors.New("未指定发送者私钥文件")
		return
	}
	if ret.Signer == nil {
		ret.Signer = &SignerInfo{Transport: "inproc"}
	}

	return
}
