// Command mailsweep links mailbox accounts, scans them for
// unsubscribe links, and fires unsubscribe batches.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mdiaz/mailsweep/internal/config"
	"github.com/mdiaz/mailsweep/internal/credential"
	"github.com/mdiaz/mailsweep/internal/mailbox"
	"github.com/mdiaz/mailsweep/internal/scan"
	"github.com/mdiaz/mailsweep/internal/service"
	"github.com/mdiaz/mailsweep/internal/store"
	"github.com/mdiaz/mailsweep/internal/task"
	"github.com/mdiaz/mailsweep/internal/unsubscribe"
)

var (
	configPath string
	userID     string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "mailsweep",
		Short:         "Scan mailboxes for unsubscribe links and fire them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "local", "User identifier owning the linked accounts")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newSecretCmd(),
		newLinkCmd(),
		newScanCmd(),
		newUnsubscribeCmd(),
		newStatusCmd(),
		newSendersCmd(),
		newMessagesCmd(),
		newLinksCmd(),
		newPurgeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles everything a subcommand needs, built once per invocation.
type app struct {
	cfg     *config.Config
	store   *store.SQLiteStore
	svc     *service.Service
	queue   *task.Queue
	logger  *slog.Logger
	cleanup func()
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(logLevel)

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	secret, err := credential.MasterSecret(cfg.Vault)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("loading master secret: %w", err)
	}
	vault, err := credential.NewVault(secret)
	if err != nil {
		st.Close()
		return nil, err
	}

	resolver := mailbox.NewResolver(cfg.IMAPServers)
	dialer := &mailbox.IMAPDialer{}
	scanner := scan.New(st, dialer, nil, logger)
	client := &http.Client{Timeout: time.Duration(cfg.UnsubscribeTimeoutSec) * time.Second}
	executor := unsubscribe.NewExecutor(st, client, logger)
	queue := task.NewQueue(cfg.Workers, logger)

	svc := service.New(st, vault, resolver, dialer, scanner, executor, queue, logger)

	return &app{
		cfg:    cfg,
		store:  st,
		svc:    svc,
		queue:  queue,
		logger: logger,
		cleanup: func() {
			queue.Close()
			st.Close()
		},
	}, nil
}

func newLogger(level string) *slog.Logger {
	lv := new(slog.LevelVar)
	switch level {
	case "debug":
		lv.Set(slog.LevelDebug)
	case "warn":
		lv.Set(slog.LevelWarn)
	case "error":
		lv.Set(slog.LevelError)
	default:
		lv.Set(slog.LevelInfo)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the credential vault master secret",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Store the master secret in the system keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			secret, err := promptLine("Master secret: ")
			if err != nil {
				return err
			}
			if err := credential.SetMasterSecret(cfg.Vault, secret); err != nil {
				return err
			}
			fmt.Println("Master secret stored.")
			return nil
		},
	})
	return cmd
}

func newLinkCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "link [address]",
		Short: "Link a mailbox account, verifying the credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.cleanup()

			if password == "" {
				password, err = promptLine("App password: ")
				if err != nil {
					return err
				}
			}

			acct, err := a.svc.LinkAccount(cmd.Context(), userID, args[0], password)
			if err != nil {
				return err
			}
			fmt.Printf("Linked %s (account %s)\n", acct.Address, acct.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Mailbox app password (prompted when omitted)")
	return cmd
}

func newScanCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "scan [address]",
		Short: "Scan the account's inbox for unsubscribe links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.cleanup()

			acct, err := a.svc.AccountByAddress(cmd.Context(), userID, args[0])
			if err != nil {
				return err
			}

			taskID, err := a.svc.SubmitScan(cmd.Context(), userID, acct.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Scan started: task %s\n", taskID)

			if wait {
				return followTask(cmd.Context(), a.svc, taskID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", true, "Block and show progress until the scan finishes")
	return cmd
}

func newUnsubscribeCmd() *cobra.Command {
	var (
		senders []string
		wait    bool
	)

	cmd := &cobra.Command{
		Use:   "unsubscribe [address]",
		Short: "Fire the account's pending unsubscribe links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.cleanup()

			acct, err := a.svc.AccountByAddress(cmd.Context(), userID, args[0])
			if err != nil {
				return err
			}

			taskID, err := a.svc.SubmitUnsubscribe(cmd.Context(), userID, acct.ID, senders)
			if err != nil {
				return err
			}
			fmt.Printf("Unsubscribe batch started: task %s\n", taskID)

			if wait {
				return followTask(cmd.Context(), a.svc, taskID)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&senders, "sender", "s", nil, "Restrict the batch to links from this sender (repeatable)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", true, "Block and show progress until the batch finishes")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [task-id]",
		Short: "Show the status of a background task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.cleanup()

			st, ok := a.svc.TaskStatus(args[0])
			if !ok {
				return fmt.Errorf("unknown task %s", args[0])
			}
			printStatus(st)
			return nil
		},
	}
}

func newSendersCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "senders [address]",
		Short: "List scanned messages aggregated by sender",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.cleanup()

			acct, err := a.svc.AccountByAddress(cmd.Context(), userID, args[0])
			if err != nil {
				return err
			}

			senders, err := a.svc.Senders(cmd.Context(), userID, acct.ID, limit, offset)
			if err != nil {
				return err
			}
			for _, s := range senders {
				fmt.Printf("%-50s %3d messages %3d links [%s]\n",
					s.Sender, s.MessageCount, s.LinkCount, strings.Join(s.Statuses, ","))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of senders to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of senders to skip")
	return cmd
}

func newMessagesCmd() *cobra.Command {
	var (
		sender        string
		limit, offset int
	)

	cmd := &cobra.Command{
		Use:   "messages [address]",
		Short: "List the account's scanned messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.cleanup()

			acct, err := a.svc.AccountByAddress(cmd.Context(), userID, args[0])
			if err != nil {
				return err
			}

			msgs, err := a.svc.Messages(cmd.Context(), userID, acct.ID, store.MessageFilter{
				Sender: sender,
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}
			for _, m := range msgs {
				fmt.Printf("%s  %s  %-40s %-50s %d links\n",
					m.ID, m.InboxDate.Format("2006-01-02 15:04"), m.Sender, m.Subject, m.LinkCount)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sender, "sender", "", "Restrict the listing to one sender")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of messages to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of messages to skip")
	return cmd
}

func newLinksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "links [address] [message-id]",
		Short: "List the unsubscribe links extracted from one message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.cleanup()

			acct, err := a.svc.AccountByAddress(cmd.Context(), userID, args[0])
			if err != nil {
				return err
			}

			links, err := a.svc.MessageLinks(cmd.Context(), userID, acct.ID, args[1])
			if err != nil {
				return err
			}
			for _, l := range links {
				fmt.Printf("%-8s %s\n", l.Status, l.URL)
			}
			return nil
		},
	}
}

func newPurgeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge [address]",
		Short: "Delete the account's scan history and links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				answer, err := promptLine(fmt.Sprintf("Delete all scan history for %s? [y/N] ", args[0]))
				if err != nil {
					return err
				}
				if !strings.EqualFold(strings.TrimSpace(answer), "y") {
					fmt.Println("Aborted.")
					return nil
				}
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.cleanup()

			acct, err := a.svc.AccountByAddress(cmd.Context(), userID, args[0])
			if err != nil {
				return err
			}

			deleted, err := a.svc.PurgeHistory(cmd.Context(), userID, acct.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d messages.\n", deleted)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// followTask polls the task until it terminates, printing progress on
// one line as it advances.
func followTask(ctx context.Context, svc *service.Service, taskID string) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		st, ok := svc.TaskStatus(taskID)
		if ok {
			if st.State.Terminal() {
				fmt.Println()
				printStatus(st)
				if st.State == task.StateFailure {
					return fmt.Errorf("task failed: %s", st.Reason)
				}
				return nil
			}
			if st.Progress.Total > 0 {
				fmt.Printf("\r%d/%d", st.Progress.Current, st.Progress.Total)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func printStatus(st task.Status) {
	fmt.Printf("Task %s: %s", st.ID, st.State)
	if st.Progress.Total > 0 {
		fmt.Printf(" (%d/%d)", st.Progress.Current, st.Progress.Total)
	}
	if st.Reason != "" {
		fmt.Printf(": %s", st.Reason)
	}
	fmt.Println()
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
