package webhook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Enriquefft/whatsapp-bot-bridge/internal/infobip"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/outbound"
)

// Sender delivers one composed request to the provider.
type Sender interface {
	Send(ctx context.Context, path string, payload any) (*infobip.SendResponse, error)
}

// Dispatcher sends composed batches in the background. Requests within a
// batch go out one after another in order; a failed send is
// logged and the next one is still attempted.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	log     *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. timeout bounds each individual send.
func NewDispatcher(sender Sender, timeout time.Duration, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		sender:  sender,
		timeout: timeout,
		log:     log.With("component", "dispatcher"),
	}
}

// Dispatch starts sending reqs and returns immediately.
func (d *Dispatcher) Dispatch(reqs []outbound.Request) {
	if len(reqs) == 0 {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for _, req := range reqs {
			d.send(req)
		}
	}()
}

// Wait blocks until every dispatched batch has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) send(req outbound.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	resp, err := d.sender.Send(ctx, req.URLPath, req.Payload)
	if err != nil {
		d.log.Error("send failed", "to", req.RecipientID, "path", req.URLPath, "error", err)
		return
	}
	d.log.Info("sent message", "to", req.RecipientID, "path", req.URLPath, "status", resp.Status.Name)
}
