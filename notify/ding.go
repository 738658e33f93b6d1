package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/egaotan/solana-lending/dingsdk"
)

const (
	DingQueueSize = 32
)

type Sender interface {
	Notify(ctx context.Context, notify *dingsdk.DingNotify) (*dingsdk.DingResult, error)
}

// DingNotifier forwards notifications to a DingTalk robot from its own goroutine. When the
// queue is full the notification is dropped and logged.
type DingNotifier struct {
	ctx  context.Context
	wg   sync.WaitGroup
	log  *logrus.Entry
	data chan *Notification
	dsdk Sender
}

func NewDingNotifier(ctx context.Context, dsdk Sender) *DingNotifier {
	return &DingNotifier{
		ctx:  ctx,
		log:  logrus.StandardLogger().WithField("service", "ding notify"),
		data: make(chan *Notification, DingQueueSize),
		dsdk: dsdk,
	}
}

func (notify *DingNotifier) Start() {
	notify.wg.Add(1)
	go notify.listen()
}

// Stop waits for the listener to exit. The context given to NewDingNotifier must be done.
func (notify *DingNotifier) Stop() {
	notify.wg.Wait()
}

func (notify *DingNotifier) Notify(n *Notification) {
	select {
	case notify.data <- n:
	default:
		notify.log.WithField("message", n.Message).Warn("ding queue is full, drop notification")
	}
}

func (notify *DingNotifier) listen() {
	defer notify.wg.Done()
	for {
		select {
		case n := <-notify.data:
			notify.send(n)
		case <-notify.ctx.Done():
			return
		}
	}
}

func (notify *DingNotifier) send(n *Notification) {
	items := make([]string, 0, 4)
	items = append(items, fmt.Sprintf("lending %s: %s", n.Severity, n.Message))
	if n.Description != "" {
		items = append(items, n.Description)
	}
	items = append(items, fmt.Sprintf("time: %s", time.Now().Format("2006-01-02 15:04:05")))
	_, err := notify.dsdk.Notify(notify.ctx, dingsdk.NewText(strings.Join(items, "\n")))
	if err != nil {
		notify.log.WithError(err).Warn("send ding notify")
	}
}
