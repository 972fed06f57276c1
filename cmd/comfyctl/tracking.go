package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"comfyctl/internal/comfy"
	"comfyctl/internal/keypress"
	"comfyctl/internal/logging"
	"comfyctl/internal/queue"
	"comfyctl/internal/stream"
)

// errSessionActive reports a second watch against the same state directory.
var errSessionActive = errors.New("another progress session is already running for this state directory")

// dialStream connects the progress stream for clientID.
func dialStream(cmd *cobra.Command, ctx *commandContext, client *comfy.Client, clientID string) (*stream.Conn, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	conn, err := stream.Dial(commandCtx(cmd), stream.DialOptions{
		URL:              client.StreamURL(clientID),
		HandshakeTimeout: cfg.HandshakeTimeout(),
		IdleTimeout:      cfg.IdleTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("connect progress stream: %w", err)
	}
	return conn, nil
}

// acquireSessionLock holds the state directory's watch lock until release
// is called.
func acquireSessionLock(ctx *commandContext) (release func(), err error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	lock := flock.New(cfg.SessionLockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return nil, errSessionActive
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			ctx.log().Warn("failed to release session lock", logging.Error(err))
		}
	}, nil
}

// startKeyListener raises flag on ESC or q when stdin is a terminal. The
// returned stop function waits for the listener goroutine to exit.
func startKeyListener(parent context.Context, ctx *commandContext, flag *stream.CancelFlag) (stop func()) {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return func() {}
	}
	listenCtx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := keypress.Listen(listenCtx, os.Stdin, func(k keypress.Key) {
			ctx.log().Debug("stop key pressed", logging.String("key", k.String()))
			flag.Set()
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			ctx.log().Debug("key listener stopped", logging.Error(err))
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

// track follows conn until the session ends and then syncs the ledger.
func track(cmd *cobra.Command, ctx *commandContext, client *comfy.Client, conn *stream.Conn, resolver stream.NodeResolver) (stream.Result, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return stream.Result{}, err
	}
	release, err := acquireSessionLock(ctx)
	if err != nil {
		return stream.Result{}, err
	}
	defer release()

	flag := stream.NewCancelFlag()
	stopKeys := startKeyListener(commandCtx(cmd), ctx, flag)
	defer stopKeys()

	observers := stream.Observers{stream.NewLogObserver(ctx.log())}
	if !ctx.jsonOutput() {
		fmt.Fprintln(cmd.ErrOrStderr(), "Press ESC or q to stop following progress")
		observers = append(observers, newBarObserver(cmd.ErrOrStderr()))
	}

	tracker := stream.NewTracker(stream.TrackerOptions{
		Resolver: resolver,
		Previews: stream.PreviewPolicy(cfg.Tracker.PreviewPolicy),
		Logger:   ctx.log(),
	})
	result, runErr := tracker.Run(commandCtx(cmd), conn, flag, observers)

	if result.Reason == stream.ReasonCompleted {
		if err := ctx.withStore(func(store *queue.Store) error {
			_, err := syncLedger(commandCtx(cmd), client, store)
			return err
		}); err != nil {
			logging.WarnWithContext(ctx.log(), "ledger sync failed", "ledger_sync",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run `comfyctl jobs --sync`"),
				logging.String(logging.FieldImpact, "job statuses may be stale"))
		}
	}
	return result, runErr
}

// syncLedger reconciles the ledger against the server's queue and history.
func syncLedger(c context.Context, client *comfy.Client, store *queue.Store) (queue.ReconcileReport, error) {
	snapshot, err := client.Queue(c)
	if err != nil {
		return queue.ReconcileReport{}, fmt.Errorf("fetch queue: %w", err)
	}
	history, err := client.History(c, "")
	if err != nil {
		return queue.ReconcileReport{}, fmt.Errorf("fetch history: %w", err)
	}
	return store.Reconcile(c, snapshot, history)
}
