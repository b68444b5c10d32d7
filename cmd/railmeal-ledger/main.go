// Command railmeal-ledger inspects and settles paid checkouts whose order
// could not be created.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/xenking/railmeal/internal/ledger"
)

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

type options struct {
	redisAddr     string
	redisPassword string
	redisDB       int
	kafkaBrokers  []string
	kafkaTopic    string
	timeout       time.Duration
}

// backends opens the ledger and notifier selected by the flags.
type backends func(opts options) (ledger.Ledger, ledger.Notifier, func(), error)

func openBackends(opts options) (ledger.Ledger, ledger.Notifier, func(), error) {
	if opts.redisAddr == "" {
		return nil, nil, nil, errors.New("redis address is required (--redis-addr or RAILMEAL_REDIS_ADDR)")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.redisAddr,
		Password: opts.redisPassword,
		DB:       opts.redisDB,
	})
	closers := []func() error{rdb.Close}

	var notifier ledger.Notifier = ledger.NopNotifier{}
	if len(opts.kafkaBrokers) > 0 {
		kn := ledger.NewKafkaNotifier(opts.kafkaBrokers, opts.kafkaTopic)
		closers = append(closers, kn.Close)
		notifier = kn
	}

	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	return ledger.NewRedis(rdb, 0), notifier, closeAll, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(openBackends, os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(open backends, out io.Writer) *cobra.Command {
	var opts options
	root := &cobra.Command{
		Use:           "railmeal-ledger",
		Short:         "Inspect and settle checkouts awaiting reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.redisAddr, "redis-addr", os.Getenv("RAILMEAL_REDIS_ADDR"), "Redis address (host:port)")
	pf.StringVar(&opts.redisPassword, "redis-password", os.Getenv("RAILMEAL_REDIS_PASSWORD"), "Redis password")
	pf.IntVar(&opts.redisDB, "redis-db", 0, "Redis database")
	pf.StringSliceVar(&opts.kafkaBrokers, "kafka-brokers", splitList(os.Getenv("RAILMEAL_KAFKA_BROKERS")), "Kafka brokers to announce resolutions on")
	pf.StringVar(&opts.kafkaTopic, "kafka-topic", ledger.DefaultTopic, "Reconciliation topic")
	pf.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Timeout for each command")

	// run opens the backends and hands them to fn under the command timeout.
	run := func(cmd *cobra.Command, fn func(ctx context.Context, l ledger.Ledger, n ledger.Notifier) error) error {
		l, n, closeFn, err := open(opts)
		if err != nil {
			return codeError(3, "%s", err)
		}
		if closeFn != nil {
			defer closeFn()
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
		defer cancel()
		return fn(ctx, l, n)
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List pending entries, oldest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, func(ctx context.Context, l ledger.Ledger, _ ledger.Notifier) error {
					entries, err := l.Pending(ctx)
					if err != nil {
						return codeError(4, "list pending: %s", err)
					}
					return printTable(out, entries)
				})
			},
		},
		&cobra.Command{
			Use:   "show <key>",
			Short: "Print an entry as JSON",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, func(ctx context.Context, l ledger.Ledger, _ ledger.Notifier) error {
					e, err := l.Get(ctx, args[0])
					if errors.Is(err, ledger.ErrEntryNotFound) {
						return codeError(2, "entry %s not found", args[0])
					}
					if err != nil {
						return codeError(4, "get entry: %s", err)
					}
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(e)
				})
			},
		},
		newResolveCmd(run, out),
	)
	return root
}

type runner func(cmd *cobra.Command, fn func(ctx context.Context, l ledger.Ledger, n ledger.Notifier) error) error

func newResolveCmd(run runner, out io.Writer) *cobra.Command {
	var orderID int64
	cmd := &cobra.Command{
		Use:   "resolve <key>",
		Short: "Mark an entry as settled by a backend order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if orderID <= 0 {
				return codeError(3, "--order-id must be positive")
			}
			key := args[0]
			return run(cmd, func(ctx context.Context, l ledger.Ledger, n ledger.Notifier) error {
				err := l.Resolve(ctx, key, orderID)
				if errors.Is(err, ledger.ErrEntryNotFound) {
					return codeError(2, "entry %s not found", key)
				}
				if err != nil {
					return codeError(4, "resolve: %s", err)
				}

				e, err := l.Get(ctx, key)
				if err != nil {
					return codeError(4, "reload entry: %s", err)
				}
				if err := n.Notify(ctx, *e); err != nil {
					fmt.Fprintln(os.Stderr, "WARN: resolution not announced:", err)
				}
				_, err = fmt.Fprintf(out, "%s resolved by order %d\n", key, orderID)
				return err
			})
		},
	}
	cmd.Flags().Int64Var(&orderID, "order-id", 0, "Backend order that settles the payment")
	return cmd
}

func printTable(out io.Writer, entries []ledger.Entry) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tUSER\tPAYMENT\tAMOUNT\tATTEMPTS\tAGE\tREASON")
	now := time.Now()
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s %s\t%d\t%s\t%s\n",
			e.Key, e.UserID, e.PaymentID,
			e.Amount.StringFixed(2), e.Currency,
			e.Attempts, now.Sub(e.CreatedAt).Truncate(time.Second), e.Reason,
		)
	}
	return tw.Flush()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
