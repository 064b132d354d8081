package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"gitee.com/czyczk/claimlink/internal/appinit"
	"gitee.com/czyczk/claimlink/internal/background"
	"gitee.com/czyczk/claimlink/internal/controller"
	"gitee.com/czyczk/claimlink/internal/linkmessage"
	"gitee.com/czyczk/claimlink/internal/service"
	"gitee.com/czyczk/claimlink/pkg/keyutils"
	"gitee.com/czyczk/claimlink/pkg/linkcodec"
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// transferFlags are the claim link parameters given on the command line. The chain comes from the server config.
type transferFlags struct {
	tokenType    string
	tokenAddress string
	tokenID      string
	amount       string
	expiresIn    time.Duration
	transferID   string

	message          string
	messageKeyLength int
}

func main() {
	var configPath, logLevel, encryptedMessage string
	var tf transferFlags

	confFlag := &cli.StringFlag{
		Name:        "conf",
		Aliases:     []string{"c"},
		Value:       "server.yaml",
		EnvVars:     []string{"CLAIMLINK_CONF"},
		Destination: &configPath,
	}
	claimLinkFlags := []cli.Flag{
		confFlag,
		&cli.StringFlag{
			Name:        "type",
			Usage:       "NATIVE, ERC20, ERC721 or ERC1155",
			Value:       "ERC20",
			Destination: &tf.tokenType,
		},
		&cli.StringFlag{
			Name:        "token",
			Usage:       "token contract address",
			Destination: &tf.tokenAddress,
		},
		&cli.StringFlag{
			Name:        "token-id",
			Usage:       "token ID of an ERC721 or ERC1155 token",
			Destination: &tf.tokenID,
		},
		&cli.StringFlag{
			Name:        "amount",
			Usage:       "amount in the token's smallest unit",
			Required:    true,
			Destination: &tf.amount,
		},
		&cli.DurationFlag{
			Name:        "expires-in",
			Value:       24 * time.Hour,
			Destination: &tf.expiresIn,
		},
	}

	app := &cli.App{
		Name:  "claimlink",
		Usage: "Create claim links backed by escrowed deposits",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Value:       "info",
				EnvVars:     []string{"CLAIMLINK_LOG_LEVEL"},
				Destination: &logLevel,
			},
		},
		Before: func(c *cli.Context) error {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"s"},
				Usage:   "Start as server",
				Flags:   []cli.Flag{confFlag},
				Action:  getServeFunc(&configPath),
			},
			{
				Name:  "deposit",
				Usage: "Deposit into the escrow and print the claim URL",
				Flags: append(claimLinkFlags,
					&cli.StringFlag{
						Name:        "message",
						Usage:       "message to the receiver, sealed with a key only the link and the sender can derive",
						Destination: &tf.message,
					},
					&cli.IntFlag{
						Name:        "message-key-length",
						Usage:       "Base58 characters of the message key kept in the claim URL",
						Value:       linkmessage.DefaultEncryptionKeyLength,
						Destination: &tf.messageKeyLength,
					},
				),
				Action: getDepositFunc(&configPath, &tf),
			},
			{
				Name:  "recover",
				Usage: "Authorize a new link key for an existing transfer and print the recovered claim URL",
				Flags: append(claimLinkFlags, &cli.StringFlag{
					Name:        "transfer-id",
					Required:    true,
					Destination: &tf.transferID,
				}),
				Action: getRecoverFunc(&configPath, &tf),
			},
			{
				Name:      "decode",
				Usage:     "Print the public part of a claim URL",
				ArgsUsage: "<claim URL>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "encrypted-message",
						Usage:       "hex sealed sender message, as read from the escrow, to open with the URL's message key",
						Destination: &encryptedMessage,
					},
				},
				Action: getDecodeFunc(&encryptedMessage),
			},
		},
	}

	// Run the cli helper
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func loadApp(ctx context.Context, configPath string) (*appinit.App, error) {
	serverInfo, err := appinit.LoadServerInfo(configPath)
	if err != nil {
		return nil, err
	}

	return appinit.NewApp(ctx, &serverInfo)
}

func (tf *transferFlags) toDescriptor(chainID uint64, sender common.Address) (*claimlink.ClaimLinkDescriptor, error) {
	params := claimlink.ClaimLinkParams{
		Token: claimlink.TokenParams{
			Type:    tf.tokenType,
			ChainID: chainID,
			Address: tf.tokenAddress,
			ID:      tf.tokenID,
		},
		Sender:     sender.Hex(),
		Amount:     tf.amount,
		Expiration: time.Now().Add(tf.expiresIn).Unix(),
	}

	return params.ToDescriptor()
}

func getDepositFunc(configPath *string, tf *transferFlags) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		a, err := loadApp(c.Context, *configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		descriptor, err := tf.toDescriptor(a.ServerInfo.ChainID, a.Sender.PublicIdentifier)
		if err != nil {
			return err
		}

		var outcome *service.DepositOutcome
		if tf.message != "" {
			outcome, err = a.TransferSvc.CreateDepositWithMessage(c.Context, descriptor, &linkmessage.SenderMessage{
				Text:                tf.message,
				EncryptionKeyLength: tf.messageKeyLength,
				Signer:              a.SenderSigner,
			})
		} else {
			outcome, err = a.TransferSvc.CreateDeposit(c.Context, descriptor)
		}
		if err != nil {
			if outcome != nil && outcome.Transfer.DepositTxHash != nil {
				// The funds may be in escrow. The link key is the only way to claim them.
				fmt.Fprintf(os.Stderr, "Transfer %v stopped at %v with deposit %v.\nKeep this link key to resume: %v\n",
					outcome.Transfer.TransferID.Hex(), outcome.Transfer.Status, outcome.Transfer.DepositTxHash.Hex(),
					keyutils.EncodePrivateKey(outcome.LinkKey))
			}
			return err
		}

		fmt.Println(outcome.ClaimURL)
		return nil
	}
}

func getRecoverFunc(configPath *string, tf *transferFlags) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		if !common.IsHexAddress(tf.transferID) {
			return fmt.Errorf("transfer ID '%v' is not an address", tf.transferID)
		}

		a, err := loadApp(c.Context, *configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		descriptor, err := tf.toDescriptor(a.ServerInfo.ChainID, a.Sender.PublicIdentifier)
		if err != nil {
			return err
		}

		outcome, err := a.TransferSvc.Recover(c.Context, common.HexToAddress(tf.transferID), descriptor, a.SenderSigner)
		if err != nil {
			return err
		}

		fmt.Println(outcome.ClaimURL)
		return nil
	}
}

func getDecodeFunc(encryptedMessage *string) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("expected exactly one claim URL")
		}
		claimURL := c.Args().First()

		token, err := linkcodec.Decode(claimURL)
		if err != nil {
			return err
		}
		version, _ := linkcodec.VersionFromURL(claimURL)
		source, _ := linkcodec.SourceFromURL(claimURL)

		info := map[string]interface{}{
			"transferId":      token.TransferID.Hex(),
			"chainId":         token.ChainID,
			"linkKeyId":       token.LinkKey.PublicIdentifier.Hex(),
			"isRecovery":      token.IsRecovery(),
			"signatureLength": token.SignatureLength(),
			"version":         version,
			"source":          source,
			"hasMessage":      token.HasMessage(),
		}

		if *encryptedMessage != "" {
			if !token.HasMessage() {
				return fmt.Errorf("claim URL carries no message key")
			}
			data, err := hexutil.Decode(*encryptedMessage)
			if err != nil {
				return errors.Wrap(err, "encrypted message is not hex")
			}
			var initialKey [linkmessage.InitialKeyLength]byte
			copy(initialKey[:], token.EncryptionKey)
			message, err := linkmessage.Decrypt(data, initialKey)
			if err != nil {
				return err
			}
			info["message"] = message
		}

		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return errors.Wrap(err, "无法序列化链接信息")
		}

		fmt.Println(string(out))
		return nil
	}
}

func getServeFunc(configPath *string) func(c *cli.Context) error {
	serveFunc := func(c *cli.Context) error {
		a, err := loadApp(c.Context, *configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		serverInfo := a.ServerInfo

		// Prepare the orphan reconciler
		var reconciler *background.ReconcilerServer
		if serverInfo.Reconciler != nil && serverInfo.Reconciler.Enabled {
			reconciler = background.NewReconcilerServer(&service.Info{}, a.Journal, a.Submitter, serverInfo.Reconciler.Interval, serverInfo.Reconciler.Workers)
			if err := reconciler.Start(); err != nil {
				return err
			}
		}

		// Instantiate controllers
		pingPongController := &controller.PingPongController{
			GroupName: "/",
			Health: func() *controller.HealthInfo {
				info := &controller.HealthInfo{
					ChainID:   serverInfo.ChainID,
					Sender:    a.Sender.PublicIdentifier.Hex(),
					Transport: serverInfo.Signer.Transport,
				}
				if reconciler != nil {
					info.Reconciler = reconciler.Stats()
				}
				return info
			},
		}

		transferController := &controller.TransferController{
			GroupName:   "/transfers",
			TransferSvc: a.TransferSvc,
			Journal:     a.Journal,
			Sender:      a.SenderSigner,
		}

		linkController := &controller.LinkController{GroupName: "/links"}

		// Register controller handlers
		router := gin.Default()
		router.Use(controller.CORSMiddleware())
		apiv1Group := router.Group("/api/v1")
		for _, ctrl := range []controller.Controller{pingPongController, transferController, linkController} {
			if err := controller.RegisterHandlers(apiv1Group, ctrl); err != nil {
				return err
			}
		}

		// Start the HTTP server
		httpServer := &http.Server{
			Addr:    fmt.Sprintf(":%v", serverInfo.Port),
			Handler: router,
		}

		chanError := make(chan error, 1)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				chanError <- errors.Wrap(err, "无法启动 HTTP 服务器")
			}
		}()

		// Listen Ctrl+C signals. On receiving a signal stops the app elegantly
		chanQuit := make(chan os.Signal, 1)
		signal.Notify(chanQuit, os.Interrupt)
		select {
		case err := <-chanError:
			return err
		case <-chanQuit:
			log.Infoln("收到 Ctrl+C 信号，正在退出程序...")

			// Stop the HTTP server elegantly. In-flight deposits finish their confirmation wait detached from the request.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			log.Infoln("正在停止 HTTP 服务器...")
			if err := httpServer.Shutdown(ctx); err != nil {
				return errors.Wrap(err, "无法正常停止 HTTP 服务器")
			}

			if reconciler != nil {
				log.Infoln("正在停止押金对账服务器...")
				wg, err := reconciler.Stop()
				if err != nil {
					return err
				}
				wg.Wait()
			}
		}

		return nil
	}

	return serveFunc
}
