package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-lending/config"
	"library-lending/library"
	"library-lending/storage"
)

const maxLoginAttempts = 3

// stdinIsTerminal decides whether passwords are read with masking.
var stdinIsTerminal = func() bool { return term.IsTerminal(int(syscall.Stdin)) }

type flags struct {
	envFile string
	store   string
	dataDir string
	dbPath  string
	logFile string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:          "library",
		Short:        "Library lending desk: catalog, members, borrowing and reservations",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDesk(cmd, f)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.envFile, "env-file", ".env", "dotenv file with LIBRARY_* settings")
	pf.StringVar(&f.store, "store", "", "persistence backend: text or sqlite (overrides LIBRARY_STORE)")
	pf.StringVar(&f.dataDir, "data-dir", "", "directory of the text files (overrides LIBRARY_DATA_DIR)")
	pf.StringVar(&f.dbPath, "db", "", "SQLite database path (overrides LIBRARY_DB_PATH)")
	pf.StringVar(&f.logFile, "log-file", "", "append logs to this file instead of stderr")

	root.AddCommand(newExportCmd(f), newHashPasswordCmd())
	return root
}

// loadConfig merges the environment with the command line flags.
func loadConfig(f *flags) (config.Config, error) {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return cfg, err
	}
	if f.store != "" {
		cfg.Store = strings.ToLower(f.store)
	}
	if f.dataDir != "" {
		cfg.DataDir = f.dataDir
	}
	if f.dbPath != "" {
		cfg.DBPath = f.dbPath
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config, f *flags) (*slog.Logger, func(), error) {
	if f.logFile == "" {
		return cfg.NewLogger(os.Stderr), func() {}, nil
	}
	w, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return cfg.NewLogger(w), func() { w.Close() }, nil
}

// openManager wires config, logging and the store into a LibraryManager.
func openManager(f *flags) (*library.LibraryManager, config.Config, func(), error) {
	cfg, err := loadConfig(f)
	if err != nil {
		return nil, cfg, nil, err
	}
	logger, closeLog, err := newLogger(cfg, f)
	if err != nil {
		return nil, cfg, nil, err
	}
	store, err := storage.Open(cfg, logger)
	if err != nil {
		closeLog()
		return nil, cfg, nil, fmt.Errorf("open store: %w", err)
	}
	mgr, err := library.NewLibraryManager(store, library.WithLogger(logger))
	if err != nil {
		store.Close()
		closeLog()
		return nil, cfg, nil, err
	}
	logger.Info("library opened", "store", cfg.Store, "data_dir", cfg.DataDir)
	return mgr, cfg, func() {
		if err := mgr.Close(); err != nil {
			logger.Error("closing store failed", "error", err)
		}
		closeLog()
	}, nil
}

func runDesk(cmd *cobra.Command, f *flags) error {
	mgr, cfg, closeAll, err := openManager(f)
	if err != nil {
		return err
	}
	defer closeAll()

	op, err := library.NewOperator(cfg.OperatorUser, cfg.OperatorPasswordHash)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	if err := login(scanner, out, op); err != nil {
		return err
	}

	sh := newShell(scanner, out, mgr)
	sh.run()
	return mgr.Flush()
}

// login asks for the operator credentials, allowing a few attempts.
func login(sc *bufio.Scanner, out io.Writer, op *library.Operator) error {
	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		fmt.Fprint(out, "Username: ")
		if !sc.Scan() {
			return library.ErrUnauthorized
		}
		username := strings.TrimSpace(sc.Text())
		password, err := readPassword(sc, out, "Password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if err := op.Authenticate(username, password); err == nil {
			fmt.Fprintf(out, "Welcome, %s.\n", username)
			return nil
		}
		fmt.Fprintf(out, "Invalid credentials (%d/%d).\n", attempt, maxLoginAttempts)
	}
	return library.ErrUnauthorized
}

// readPassword reads a password with masking when stdin is a terminal, and falls back
// to the next input line otherwise.
func readPassword(sc *bufio.Scanner, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	if !stdinIsTerminal() {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return strings.TrimSpace(sc.Text()), nil
	}
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(out) // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

func newExportCmd(f *flags) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole library state as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, _, closeAll, err := openManager(f)
			if err != nil {
				return err
			}
			defer closeAll()

			w := cmd.OutOrStdout()
			if outPath != "" {
				file, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer file.Close()
				w = file
			}
			return exportJSON(w, mgr.Snapshot())
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	return cmd
}

func exportJSON(w io.Writer, snap library.Snapshot) error {
	enc := jsoniter.ConfigFastest.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for LIBRARY_OPERATOR_PASSWORD_HASH",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc := bufio.NewScanner(cmd.InOrStdin())
			password, err := readPassword(sc, cmd.ErrOrStderr(), "New operator password: ")
			if err != nil {
				return err
			}
			hash, err := library.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
