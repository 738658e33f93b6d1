package networkdetect

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/go-ping/ping"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/egaotan/solana-lending/config"
	"github.com/egaotan/solana-lending/notify"
	"github.com/egaotan/solana-lending/utils"
)

const (
	PingCount        = 3
	PingTimeout      = time.Second * 5
	LatencyWindow    = 300
	LatencyThreshold = time.Millisecond * 20
	NotifyInterval   = time.Minute * 5
)

// Prober measures the average round trip time to host.
type Prober func(host string) (time.Duration, error)

// Ping probes host with icmp echo requests.
func Ping(host string) (time.Duration, error) {
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return 0, errors.Wrapf(err, "new pinger %s", host)
	}
	pinger.Count = PingCount
	pinger.Timeout = PingTimeout
	pinger.SetPrivileged(false)
	if err := pinger.Run(); err != nil {
		return 0, errors.Wrapf(err, "ping %s", host)
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, errors.Errorf("ping %s: no packet received", host)
	}
	return stats.AvgRtt, nil
}

// Host extracts the host name of an rpc endpoint.
func Host(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", errors.Wrapf(err, "parse endpoint %s", endpoint)
	}
	host := u.Hostname()
	if host == "" {
		if h, _, err := net.SplitHostPort(endpoint); err == nil {
			host = h
		}
	}
	if host == "" {
		return "", errors.Errorf("endpoint %s has no host", endpoint)
	}
	return host, nil
}

// DetectPeers returns the node with the lowest round trip time. Unreachable nodes are skipped.
func DetectPeers(nodes []*config.Node, prober Prober) (*config.Node, time.Duration, error) {
	log := logrus.StandardLogger().WithField("service", "network detect")
	var best *config.Node
	var bestRtt time.Duration
	for _, node := range nodes {
		host, err := Host(node.Rpc)
		if err != nil {
			log.WithError(err).Warn("skip node")
			continue
		}
		rtt, err := prober(host)
		if err != nil {
			log.WithField("rpc", node.Rpc).WithError(err).Warn("node is unreachable")
			continue
		}
		log.WithFields(logrus.Fields{"rpc": node.Rpc, "rtt": rtt.String()}).Info("node detected")
		if best == nil || rtt < bestRtt {
			best, bestRtt = node, rtt
		}
	}
	if best == nil {
		return nil, 0, errors.New("no reachable node")
	}
	return best, bestRtt, nil
}

// NetworkDetector keeps pinging the rpc node and warns when the latency stays too high.
type NetworkDetector struct {
	ctx        context.Context
	wg         sync.WaitGroup
	mu         sync.Mutex
	peer       string
	ttl        []time.Duration
	avg        []time.Duration
	notifyTime time.Time
	pinger     *ping.Pinger
	logger     *logrus.Logger
	notifier   notify.Notifier
}

func NewNetworkDetector(ctx context.Context, node *config.Node, notifier notify.Notifier) (*NetworkDetector, error) {
	host, err := Host(node.Rpc)
	if err != nil {
		return nil, err
	}
	nd := &NetworkDetector{
		ctx:      ctx,
		peer:     host,
		ttl:      make([]time.Duration, 0, LatencyWindow),
		avg:      make([]time.Duration, 0, LatencyWindow),
		logger:   utils.NewLog(config.LogPath, config.NetworkLog),
		notifier: notifier,
	}
	return nd, nil
}

func (nd *NetworkDetector) Start() error {
	pinger, err := ping.NewPinger(nd.peer)
	if err != nil {
		return errors.Wrapf(err, "new pinger %s", nd.peer)
	}
	pinger.SetPrivileged(false)
	pinger.OnRecv = func(pkt *ping.Packet) {
		nd.observe(pkt.Rtt, time.Now())
	}
	nd.pinger = pinger
	nd.wg.Add(2)
	go func() {
		defer nd.wg.Done()
		if err := pinger.Run(); err != nil {
			nd.logger.WithError(err).Warn("ping stopped")
		}
	}()
	go func() {
		defer nd.wg.Done()
		<-nd.ctx.Done()
		pinger.Stop()
	}()
	return nil
}

func (nd *NetworkDetector) Stop() {
	if nd.pinger != nil {
		nd.pinger.Stop()
	}
	nd.wg.Wait()
}

// observe records one round trip. It reports whether the latency is too high.
func (nd *NetworkDetector) observe(rtt time.Duration, now time.Time) bool {
	nd.mu.Lock()
	defer nd.mu.Unlock()
	nd.ttl = append(nd.ttl, rtt)
	if len(nd.ttl) > LatencyWindow {
		nd.ttl = nd.ttl[len(nd.ttl)-LatencyWindow:]
	}
	sum := time.Duration(0)
	for _, x := range nd.ttl {
		sum += x
	}
	avg := sum / time.Duration(len(nd.ttl))
	nd.avg = append(nd.avg, avg)
	if len(nd.avg) > LatencyWindow {
		nd.avg = nd.avg[len(nd.avg)-LatencyWindow:]
	}
	nd.logger.Infof("ping ttl: %d", avg.Milliseconds())

	for _, x := range nd.avg {
		if x < LatencyThreshold {
			return false
		}
	}
	nd.logger.Warn("network latency is too large")
	if nd.notifyTime.IsZero() || now.Sub(nd.notifyTime) > NotifyInterval {
		nd.notifyTime = now
		nd.notifier.Notify(&notify.Notification{
			Severity:    notify.Error,
			Message:     "Lending server network latency is too large",
			Description: fmt.Sprintf("rpc: %s; ttl: %dms", nd.peer, avg.Milliseconds()),
		})
	}
	return true
}
