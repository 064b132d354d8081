package appinit

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"gitee.com/czyczk/claimlink/internal/blockchain/chainsubmitter/ethsubmitter"
	"gitee.com/czyczk/claimlink/internal/networkinfo"
	"gitee.com/czyczk/claimlink/internal/service"
	"gitee.com/czyczk/claimlink/internal/signerapi"
	"gitee.com/czyczk/claimlink/internal/signerapi/execsignerapi"
	"gitee.com/czyczk/claimlink/internal/signerapi/httpsignerapi"
	"gitee.com/czyczk/claimlink/internal/signerapi/inprocsignerapi"
	"gitee.com/czyczk/claimlink/internal/signerapi/wssignerapi"
	"gitee.com/czyczk/claimlink/internal/signerd"
	"gitee.com/czyczk/claimlink/internal/typeddata"
	"gitee.com/czyczk/claimlink/internal/utils/idutils"
	"gitee.com/czyczk/claimlink/pkg/keyutils"
	"gitee.com/czyczk/claimlink/pkg/linkcodec"
	errors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds everything a command needs, built once from the server config.
type App struct {
	ServerInfo   *ServerInfo
	Sender       *keyutils.KeyPair
	SenderSigner typeddata.TypedDataSigner
	Network      *networkinfo.EscrowNetworkConfig
	Transport    signerapi.Transport
	Submitter    *ethsubmitter.EthSubmitter
	Journal      service.JournalInterface
	SignerSvc    *service.SignerService
	TransferSvc  *service.TransferService
}

// NewApp loads keys and configs, connects to the chain and the database and wires the services.
func NewApp(ctx context.Context, serverInfo *ServerInfo) (*App, error) {
	sender, err := LoadSenderKey(serverInfo.SenderKey)
	if err != nil {
		return nil, err
	}

	network, err := LoadEscrowNetworkConfig(serverInfo.EscrowConfig)
	if err != nil {
		return nil, err
	}

	transport, err := NewSignerTransport(serverInfo.Signer, network)
	if err != nil {
		return nil, err
	}

	journal, err := NewJournal(serverInfo.Database)
	if err != nil {
		transport.Close()
		return nil, err
	}

	submitter, err := ethsubmitter.Dial(ctx, serverInfo.RPCURL, sender, serverInfo.ChainID, serverInfo.PollInterval)
	if err != nil {
		transport.Close()
		return nil, err
	}

	serviceInfo := &service.Info{}
	signerSvc := service.NewSignerService(serviceInfo, transport, NewRetryPolicy(serverInfo.Retry))

	claimHost := serverInfo.ClaimHost
	if claimHost == "" {
		claimHost = "https://p2p.linkdrop.io"
	}

	transferSvc := &service.TransferService{
		ServiceInfo:         serviceInfo,
		Signer:              signerSvc,
		Submitter:           submitter,
		Journal:             journal,
		Codec:               linkcodec.NewCodec(claimHost, serverInfo.Source),
		ConfirmationTimeout: serverInfo.ConfirmationTimeout,
	}

	log.Infof("Sending deposits from %v on chain %v", sender.PublicIdentifier.Hex(), serverInfo.ChainID)
	return &App{
		ServerInfo:   serverInfo,
		Sender:       sender,
		Network:      network,
		Transport:    transport,
		Submitter:    submitter,
		Journal:      journal,
		SignerSvc:    signerSvc,
		TransferSvc:  transferSvc,
		SenderSigner: typeddata.NewKeySigner(sender),
	}, nil
}

// Close releases the signer transport.
func (a *App) Close() error {
	return a.Transport.Close()
}

// LoadEscrowNetworkConfig loads the escrow deployments from a YAML file, or returns the built-in ones if the path is empty.
func LoadEscrowNetworkConfig(configFilePath string) (*networkinfo.EscrowNetworkConfig, error) {
	if configFilePath == "" {
		return networkinfo.DefaultEscrowNetworkConfig(), nil
	}

	return networkinfo.ParseEscrowNetworkConfig(configFilePath)
}

// NewSignerTransport creates the signer transport named in the config. The `inproc` transport runs the reference signer inside this process.
func NewSignerTransport(signerInfo *SignerInfo, network *networkinfo.EscrowNetworkConfig) (signerapi.Transport, error) {
	if signerInfo == nil {
		return nil, fmt.Errorf("未指定签名服务")
	}

	switch strings.ToLower(signerInfo.Transport) {
	case "http":
		if signerInfo.Endpoint == "" {
			return nil, fmt.Errorf("HTTP 签名服务未指定 endpoint")
		}
		var client *http.Client
		if signerInfo.Timeout > 0 {
			client = &http.Client{Timeout: signerInfo.Timeout}
		}
		return httpsignerapi.NewTransport(signerInfo.Endpoint, client, signerInfo.Headers), nil
	case "ws":
		if signerInfo.Endpoint == "" {
			return nil, fmt.Errorf("WebSocket 签名服务未指定 endpoint")
		}
		header := http.Header{}
		for key, value := range signerInfo.Headers {
			header.Set(key, value)
		}
		transport := wssignerapi.NewTransport(signerInfo.Endpoint, header)
		if signerInfo.Timeout > 0 {
			transport.Timeout = signerInfo.Timeout
		}
		return transport, nil
	case "exec":
		if signerInfo.Path == "" {
			return nil, fmt.Errorf("子进程签名服务未指定可执行文件")
		}
		mode, err := execsignerapi.NewSelectorModeFromString(signerInfo.Mode)
		if err != nil {
			return nil, errors.Wrap(err, "无法解析选择器模式")
		}
		return execsignerapi.NewTransport(signerInfo.Path, signerInfo.Args, signerInfo.Env, mode), nil
	case "inproc", "":
		return inprocsignerapi.NewTransport(signerd.NewSigner(network, signerd.NewMemoryRegistrationStore())), nil
	default:
		return nil, fmt.Errorf("未知的签名服务传输方式 '%v'", signerInfo.Transport)
	}
}

// NewJournal creates the transfer journal: MySQL if configured, memory otherwise.
func NewJournal(databaseInfo *DatabaseInfo) (service.JournalInterface, error) {
	if databaseInfo == nil || databaseInfo.DSN == "" {
		log.Warnln("未配置数据库，转账记录仅保存在内存中")
		return service.NewMemoryJournal(), nil
	}

	gormDB, err := OpenDB(databaseInfo.DSN)
	if err != nil {
		return nil, err
	}

	return NewDBJournal(gormDB, databaseInfo.NodeID)
}

// NewDBJournal creates a journal on an open database.
func NewDBJournal(gormDB *gorm.DB, nodeID int64) (*service.JournalService, error) {
	idGenerator, err := idutils.NewIDGenerator(nodeID)
	if err != nil {
		return nil, err
	}

	return service.NewJournalService(gormDB, idGenerator), nil
}

// NewRetryPolicy fills unset fields from `service.DefaultRetryPolicy`.
func NewRetryPolicy(retryInfo *RetryInfo) service.RetryPolicy {
	policy := service.DefaultRetryPolicy
	if retryInfo == nil {
		return policy
	}

	if retryInfo.MaxAttempts > 0 {
		policy.MaxAttempts = retryInfo.MaxAttempts
	}
	if retryInfo.InitialBackoff > 0 {
		policy.InitialBackoff = retryInfo.InitialBackoff
	}
	if retryInfo.MaxBackoff > 0 {
		policy.MaxBackoff = retryInfo.MaxBackoff
	}

	return policy
}
