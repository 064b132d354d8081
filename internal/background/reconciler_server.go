package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gitee.com/czyczk/claimlink/internal/blockchain/chainsubmitter"
	"gitee.com/czyczk/claimlink/internal/service"
	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"gitee.com/czyczk/claimlink/pkg/models/claimlink"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultReconcileInterval = 30 * time.Second
	serverName               = "押金对账服务器"
)

// ReconcilerServer watches orphaned deposits. It re-reads their receipts and never rebroadcasts: a late-confirmed deposit becomes `Deposited` so that its registration can be resumed, a reverted one becomes `Aborted`.
type ReconcilerServer struct {
	ServiceInfo  *service.Info
	Journal      service.JournalInterface
	Submitter    chainsubmitter.ChainSubmitterInterface
	Interval     time.Duration
	NumWorkers   int // Don't change the value after creation or the server might not be able to stop as expected.
	wg           sync.WaitGroup
	chanQuit     chan struct{}
	chanTransfer chan *claimlink.Transfer
	ctx          context.Context
	cancel       context.CancelFunc
	serverStatus *backgroundServerStatus
}

func NewReconcilerServer(serviceInfo *service.Info, journal service.JournalInterface, submitter chainsubmitter.ChainSubmitterInterface, interval time.Duration, numWorkers int) *ReconcilerServer {
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}

	return &ReconcilerServer{
		ServiceInfo:  serviceInfo,
		Journal:      journal,
		Submitter:    submitter,
		Interval:     interval,
		NumWorkers:   numWorkers,
		wg:           sync.WaitGroup{},
		serverStatus: newBackgroundServerStatus(),
	}
}

// Start starts the scanner and the workers.
func (s *ReconcilerServer) Start() error {
	log.Infoln("正在启动押金对账服务器...")

	if err := s.serverStatus.beginStart(serverName); err != nil {
		return err
	}

	s.chanQuit = make(chan struct{})
	s.chanTransfer = make(chan *claimlink.Transfer)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	log.Debugf("正在创建 %v 个押金对账工作单元...", s.NumWorkers)
	for id := 0; id < s.NumWorkers; id++ {
		s.wg.Add(1)
		go s.createReconcilerWorker(id)
	}

	s.wg.Add(1)
	go s.runScanner()

	s.serverStatus.finishStart()
	log.Infoln("押金对账服务器已启动。")

	return nil
}

func (s *ReconcilerServer) runScanner() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		s.serverStatus.recordSweep(time.Now())
		orphans, err := s.Journal.ListByStatus(claimlink.Orphaned)
		if err != nil {
			log.Errorln(errors.Wrap(err, "押金对账服务器无法读取孤立押金"))
		}

	dispatchLoop:
		for _, orphan := range orphans {
			select {
			case s.chanTransfer <- orphan:
			case <-s.chanQuit:
				break dispatchLoop
			}
		}

		select {
		case <-s.chanQuit:
			return
		case <-ticker.C:
		}
	}
}

func (s *ReconcilerServer) createReconcilerWorker(id int) {
	defer s.wg.Done()
	log.Debugf("押金对账工作单元 #%v 已创建。", id)

	for {
		select {
		case transfer := <-s.chanTransfer:
			if _, err := s.Reconcile(s.ctx, transfer); err != nil {
				log.Warnf("押金对账工作单元 #%v 无法对账转账 %v: %v", id, transfer.TransferID.Hex(), err)
			}
		case <-s.chanQuit:
			return
		}
	}
}

// Reconcile reads the receipt of one orphaned deposit and moves the transfer if its outcome is now known. Returns whether the transfer was moved.
func (s *ReconcilerServer) Reconcile(ctx context.Context, transfer *claimlink.Transfer) (bool, error) {
	moved, err := s.reconcile(ctx, transfer)
	s.serverStatus.recordOutcome(moved, transfer.Status == claimlink.Deposited, err)
	return moved, err
}

// Stats returns counters of the sweeps and reconciled deposits so far.
func (s *ReconcilerServer) Stats() ReconcilerStats {
	return s.serverStatus.snapshot()
}

func (s *ReconcilerServer) reconcile(ctx context.Context, transfer *claimlink.Transfer) (bool, error) {
	if transfer.Status != claimlink.Orphaned || transfer.DepositTxHash == nil {
		return false, nil
	}

	receipt, err := s.Submitter.GetReceipt(ctx, *transfer.DepositTxHash)
	if err != nil {
		if errors.Cause(err) == errorcode.ErrorNotFound {
			log.Debugf("Deposit %v of transfer %v is still unknown", transfer.DepositTxHash.Hex(), transfer.TransferID.Hex())
			return false, nil
		}
		return false, err
	}

	now := time.Now
	if s.ServiceInfo != nil && s.ServiceInfo.Now != nil {
		now = s.ServiceInfo.Now
	}

	if receipt.Success {
		if err := transfer.Transition(claimlink.Deposited, now()); err != nil {
			return false, err
		}
		transfer.LastError = ""
		log.Infof("Orphaned deposit %v of transfer %v was confirmed in block %v, registration can be resumed", transfer.DepositTxHash.Hex(), transfer.TransferID.Hex(), receipt.BlockNumber)
	} else {
		if err := transfer.Transition(claimlink.Aborted, now()); err != nil {
			return false, err
		}
		transfer.LastError = fmt.Sprintf("deposit %v reverted in block %v", transfer.DepositTxHash.Hex(), receipt.BlockNumber)
		log.Warnf("Orphaned deposit %v of transfer %v reverted", transfer.DepositTxHash.Hex(), transfer.TransferID.Hex())
	}

	if err := s.Journal.Save(transfer); err != nil {
		return true, errors.Wrap(err, "无法保存对账结果")
	}

	return true, nil
}

// Stop stops the scanner and the workers. In-flight receipt reads are cancelled.
//
// Returns
//   a wait group that can be used to block the caller Go routine
func (s *ReconcilerServer) Stop() (*sync.WaitGroup, error) {
	if err := s.serverStatus.beginStop(serverName); err != nil {
		return nil, err
	}

	close(s.chanQuit)
	s.cancel()

	s.serverStatus.finishStop()
	log.Infoln("押金对账服务器已停止。")

	return &s.wg, nil
}
