package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"gitee.com/czyczk/claimlink/internal/appinit"
	"gitee.com/czyczk/claimlink/internal/blockchain/chainsubmitter/ethsubmitter"
	"gitee.com/czyczk/claimlink/internal/signerd"
	"gitee.com/czyczk/claimlink/internal/utils/idutils"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

type signerFlags struct {
	escrowConfig string
	dbDSN        string
	nodeID       int64
	rpcURLs      *cli.StringSlice
	logLevel     string
}

func main() {
	sf := signerFlags{rpcURLs: cli.NewStringSlice()}
	var addr, path string

	app := &cli.App{
		Name:  "signerd",
		Usage: "Reference signer for claim links",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "escrow-config",
				EnvVars:     []string{"SIGNERD_ESCROW_CONF"},
				Destination: &sf.escrowConfig,
			},
			&cli.StringFlag{
				Name:        "db",
				Usage:       "MySQL DSN of the registration store. Registrations are kept in memory if empty.",
				EnvVars:     []string{"SIGNERD_DB"},
				Destination: &sf.dbDSN,
			},
			&cli.Int64Flag{
				Name:        "node-id",
				Value:       1,
				Destination: &sf.nodeID,
			},
			&cli.StringSliceFlag{
				Name:        "rpc",
				Usage:       "<chainId>=<rpcUrl>. Registrations on these chains are checked against the deposit receipt.",
				EnvVars:     []string{"SIGNERD_RPC"},
				Destination: sf.rpcURLs,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Value:       "info",
				EnvVars:     []string{"SIGNERD_LOG_LEVEL"},
				Destination: &sf.logLevel,
			},
		},
		Before: func(c *cli.Context) error {
			level, err := log.ParseLevel(sf.logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve the signer over HTTP and WebSocket",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "addr",
						Value:       ":8090",
						EnvVars:     []string{"SIGNERD_ADDR"},
						Destination: &addr,
					},
					&cli.StringFlag{
						Name:        "path",
						Value:       "/signer",
						Destination: &path,
					},
				},
				Action: func(c *cli.Context) error {
					signer, err := newSigner(c.Context, &sf)
					if err != nil {
						return err
					}
					return serve(signer, addr, path)
				},
			},
			{
				Name:      "exec",
				Usage:     "Answer one request given as arguments and exit",
				ArgsUsage: "[<command>] <payload>",
				Action: func(c *cli.Context) error {
					signer, err := newSigner(c.Context, &sf)
					if err != nil {
						return err
					}
					if code := signerd.RunExec(c.Context, signer, c.Args().Slice(), os.Stdout, os.Stderr); code != signerd.ExitOK {
						return cli.Exit("", code)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func newSigner(ctx context.Context, sf *signerFlags) (*signerd.Signer, error) {
	network, err := appinit.LoadEscrowNetworkConfig(sf.escrowConfig)
	if err != nil {
		return nil, err
	}

	var store signerd.RegistrationStoreInterface = signerd.NewMemoryRegistrationStore()
	if sf.dbDSN != "" {
		gormDB, err := appinit.OpenDB(sf.dbDSN)
		if err != nil {
			return nil, err
		}
		idGenerator, err := idutils.NewIDGenerator(sf.nodeID)
		if err != nil {
			return nil, err
		}
		store = signerd.NewGormRegistrationStore(gormDB, idGenerator)
	}

	signer := signerd.NewSigner(network, store)
	for _, entry := range sf.rpcURLs.Value() {
		chainIDStr, rpcURL, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("'%v' is not <chainId>=<rpcUrl>", entry)
		}
		chainID, err := strconv.ParseUint(chainIDStr, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid chain ID in '%v'", entry)
		}

		// Only receipts are read, so no sender key is needed
		reader, err := ethsubmitter.Dial(ctx, rpcURL, nil, chainID, 0)
		if err != nil {
			return nil, err
		}
		signer.Receipts[chainID] = reader
	}

	return signer, nil
}

func serve(signer *signerd.Signer, addr, path string) error {
	router := gin.Default()
	signerd.RegisterHTTPHandlers(router, path, signer)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	chanError := make(chan error, 1)
	go func() {
		log.Infof("签名服务监听于 %v%v", addr, path)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			chanError <- errors.Wrap(err, "无法启动 HTTP 服务器")
		}
	}()

	chanQuit := make(chan os.Signal, 1)
	signal.Notify(chanQuit, os.Interrupt)
	select {
	case err := <-chanError:
		return err
	case <-chanQuit:
		log.Infoln("收到 Ctrl+C 信号，正在退出程序...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return errors.Wrap(err, "无法正常停止 HTTP 服务器")
		}
	}

	return nil
}
