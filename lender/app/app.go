package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"

	"github.com/egaotan/solana-lending/backend"
	"github.com/egaotan/solana-lending/config"
	"github.com/egaotan/solana-lending/dingsdk"
	"github.com/egaotan/solana-lending/env"
	"github.com/egaotan/solana-lending/lending"
	"github.com/egaotan/solana-lending/networkdetect"
	"github.com/egaotan/solana-lending/notify"
	"github.com/egaotan/solana-lending/program"
	"github.com/egaotan/solana-lending/provision"
	"github.com/egaotan/solana-lending/rent"
	"github.com/egaotan/solana-lending/serum"
	"github.com/egaotan/solana-lending/spltoken"
	"github.com/egaotan/solana-lending/store"
	"github.com/egaotan/solana-lending/tokenlending"
)

// Lender owns every long running component of the service.
type Lender struct {
	ctx        context.Context
	cfg        *config.Config
	log        *logrus.Entry
	node       *config.Node
	backend    *backend.Backend
	splToken   *spltoken.Program
	lending    *tokenlending.Program
	serum      *serum.Program
	env        *env.Env
	store      *store.Store
	metrics    *Metrics
	ding       *notify.DingNotifier
	nd         *networkdetect.NetworkDetector
	service    *lending.Service
	server     *Server
	httpServer *http.Server
}

// selectNode picks the fastest usable node when detection is enabled, the first one otherwise.
func selectNode(cfg *config.Config, log *logrus.Entry) *config.Node {
	nodes := cfg.UsableNodes()
	if !cfg.DetectNodes || len(nodes) == 1 {
		return nodes[0]
	}
	node, rtt, err := networkdetect.DetectPeers(nodes, networkdetect.Ping)
	if err != nil {
		log.WithError(err).Warn("detect peers failed, use the first node")
		return nodes[0]
	}
	log.Infof("use node %s, rtt %dms", node.Rpc, rtt.Milliseconds())
	return node
}

func NewLender(ctx context.Context, cfg *config.Config) (*Lender, error) {
	l := &Lender{
		ctx: ctx,
		cfg: cfg,
		log: logrus.StandardLogger().WithField("service", "lender"),
	}
	l.node = selectNode(cfg, l.log)
	l.backend = backend.NewBackend(l.node)
	if cfg.Key != "" {
		player, err := l.backend.ImportWallet(cfg.Key)
		if err != nil {
			return nil, errors.Wrap(err, "import wallet")
		}
		if !cfg.User.IsZero() && cfg.User != player {
			return nil, errors.Errorf("key does not belong to user %s", cfg.User)
		}
		l.backend.SetPlayer(player)
	}

	l.splToken = spltoken.NewProgram(l.backend)
	l.lending = tokenlending.NewProgram(cfg.LendingProgram, l.backend)
	l.serum = serum.NewProgram(cfg.SerumProgram, l.backend)
	calculator := rent.NewCalculator(l.backend)
	provisioner := provision.NewProvisioner(l.splToken, calculator, l.splToken, l.lending.Id())
	lookup := NewChainLookup(l.backend, l.lending, l.splToken, l.serum, cfg.LendingMarket)
	var hostFee lending.HostFee = lending.NoHostFee{}
	if !cfg.HostFee.IsZero() {
		hostFee = lending.HostFeeAddress{Owner: cfg.HostFee}
	}
	orchestrator := lending.NewOrchestrator(l.lending, provisioner, calculator, lookup, hostFee)

	notifiers := notify.Fanout{notify.NewLogNotifier()}
	if cfg.DingUrl != "" {
		l.ding = notify.NewDingNotifier(ctx, dingsdk.NewDingSdk(cfg.DingUrl))
		notifiers = append(notifiers, l.ding)
	}

	s, err := store.NewStore(ctx, &cfg.DB)
	if err != nil {
		return nil, err
	}
	l.store = s
	l.metrics = NewMetrics()
	l.service = lending.NewService(orchestrator, l.backend, l.backend, notifiers, lending.Recorders{l.store, l.metrics})

	l.env = env.NewEnv(cfg.TokensFile)
	nd, err := networkdetect.NewNetworkDetector(ctx, l.node, notifiers)
	if err != nil {
		l.log.WithError(err).Warn("network detector is disabled")
	} else {
		l.nd = nd
	}
	l.server = NewServer(l.service, lookup, l.backend, l.store, l.env, l.metrics)
	return l, nil
}

func (l *Lender) programs() []program.Program {
	return []program.Program{l.splToken, l.lending, l.serum}
}

func (l *Lender) Service() error {
	if err := l.Start(); err != nil {
		return err
	}
	if err := l.StartRPC(); err != nil {
		l.Stop()
		return err
	}
	<-l.ctx.Done()
	l.StopRPC()
	l.Stop()
	return nil
}

func (l *Lender) Start() error {
	if err := l.env.Start(); err != nil {
		return err
	}
	l.store.Start()
	if l.ding != nil {
		l.ding.Start()
	}
	if l.nd != nil {
		if err := l.nd.Start(); err != nil {
			l.log.WithError(err).Warn("network detector start failed")
		}
	}
	for _, p := range l.programs() {
		if err := p.Start(); err != nil {
			l.log.WithError(err).Warnf("program %s(%s) start failed", p.Name(), p.Id())
		}
	}
	l.log.Infof("lender has started, player %s", l.backend.Player())
	return nil
}

func (l *Lender) Stop() {
	programs := l.programs()
	for i := len(programs) - 1; i >= 0; i-- {
		p := programs[i]
		if err := p.Stop(); err != nil {
			l.log.WithError(err).Warnf("program %s stop failed", p.Name())
		}
	}
	if l.nd != nil {
		l.nd.Stop()
	}
	if l.ding != nil {
		l.ding.Stop()
	}
	l.store.Stop()
	l.env.Stop()
	l.log.Info("lender has stopped")
}

func (l *Lender) StartRPC() error {
	gin.SetMode(gin.ReleaseMode)
	listener, err := net.Listen("tcp", l.cfg.Listen)
	if err != nil {
		return errors.Wrapf(err, "listen %s", l.cfg.Listen)
	}
	l.httpServer = &http.Server{
		Handler: l.server.Router(),
	}
	l.log.Infof("start rpc server on %s", l.cfg.Listen)
	go func() {
		err := l.httpServer.Serve(netutil.LimitListener(listener, l.cfg.MaxConnections))
		if err != nil && err != http.ErrServerClosed {
			l.log.WithError(err).Error("rpc server stopped")
		}
	}()
	return nil
}

func (l *Lender) StopRPC() {
	if l.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.httpServer.Shutdown(ctx); err != nil {
		l.log.WithError(err).Warn("rpc server shutdown")
	}
	l.log.Info("rpc server has stopped")
}
