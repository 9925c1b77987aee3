package swapengine

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/private-swap/internal/cache"
	"github.com/aman-zulfiqar/private-swap/internal/permission"
	"github.com/aman-zulfiqar/private-swap/internal/session"
	"github.com/aman-zulfiqar/private-swap/internal/submit"
)

func newExecution(kind string) *Execution {
	return &Execution{ID: uuid.NewString(), Kind: kind, StartedAt: time.Now().UTC()}
}

func (x *Execution) fail(err error) (*Execution, error) {
	x.Error = err.Error()
	x.CompletedAt = time.Now().UTC()
	return x, err
}

// execute submits a single-instruction operation on conn, signed by the
// session wallet, and records the outcome on exec.
func (e *Engine) execute(ctx context.Context, sess *session.Session, conn permission.Conn, exec *Execution, pool solana.PublicKey, label string, ix solana.Instruction) error {
	sub := submit.NewSubmitter(submit.Config{
		Ledger:         conn,
		Signer:         sess.Wallet(),
		ConfirmTimeout: e.confirmTimeout,
		Logger:         e.logger,
	})

	log := e.logger.WithFields(logrus.Fields{
		"execution": exec.ID,
		"kind":      exec.Kind,
		"venue":     exec.Venue,
	})
	log.Info("submitting")

	receipt, err := sub.Submit(ctx, submit.Operation{Label: label, Instructions: []solana.Instruction{ix}})
	exec.Receipt = receipt
	exec.CompletedAt = time.Now().UTC()
	if err != nil {
		exec.Error = err.Error()
		log.WithError(err).Warn("execution failed")
	} else {
		log.WithField("signature", receipt.Signature).Info("execution confirmed")
	}

	e.publish(ctx, sess, exec, pool)
	return err
}

// publish records the execution on the event sink. Amounts never leave the
// engine; only labels, signatures and status do.
func (e *Engine) publish(ctx context.Context, sess *session.Session, exec *Execution, pool solana.PublicKey) {
	if e.events == nil {
		return
	}

	kind, status := cache.KindSwap, "confirmed"
	switch {
	case exec.Compliance != nil && !exec.Compliance.IsCompliant:
		kind, status = cache.KindCompliance, "blocked"
	case exec.Receipt != nil && exec.Receipt.Pending:
		status = "pending"
	case exec.Error != "":
		status = "failed"
	}

	ev := cache.NewEvent(sess.ID, kind, status)
	ev.Pool = pool.String()
	ev.Label = exec.Kind
	ev.Error = exec.Error
	if exec.Receipt != nil {
		ev.Signature = exec.Receipt.Signature
	}
	if err := e.events.Publish(ctx, ev); err != nil {
		e.logger.WithError(err).Debug("event publish failed")
	}
}
