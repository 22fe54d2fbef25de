// Package main provides the orient-cli entry point: a small command tree
// for exercising the driver against a live server by hand.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/go-orient/orient/orient"
	"github.com/go-orient/orient/orientconfig"
	"github.com/go-orient/orient/protocol"
	"github.com/go-orient/orient/record"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

var (
	flagHost         string
	flagPort         int
	flagUser         string
	flagPassword     string
	flagDatabase     string
	flagDatabaseKind string
	flagVerbose      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "orient-cli",
		Short: "orient-cli exercises the OrientDB binary-protocol driver",
		Long: `orient-cli is a thin wrapper over the go-orient driver, for
manually issuing administrative operations and queries against a live
OrientDB server without writing Go.`,
	}

	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "", "OrientDB host (env ORIENTDB_HOST)")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "OrientDB port (default 2424)")
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", "", "username (env ORIENTDB_USER)")
	rootCmd.PersistentFlags().StringVar(&flagPassword, "password", "", "password (env ORIENTDB_PASSWORD)")
	rootCmd.PersistentFlags().StringVar(&flagDatabase, "database", "", "database name; omit for a server-scope session")
	rootCmd.PersistentFlags().StringVar(&flagDatabaseKind, "database-kind", "document", "database kind: graph or document")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log at debug level to stderr")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("orient-cli v%s (%s)\n", version, commit)
		},
	})
	rootCmd.AddCommand(dbCreateCmd())
	rootCmd.AddCommand(dbListCmd())
	rootCmd.AddCommand(dbDropCmd())
	rootCmd.AddCommand(dbExistCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(recordLoadCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	if !flagVerbose {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// buildOptions loads defaults from the environment, then overlays any flag
// the caller explicitly set, so orient-cli can run equally well off env
// vars in a script or explicit flags on a terminal.
func buildOptions(serverScope bool) orientconfig.Options {
	opts := orientconfig.LoadFromEnv()

	if flagHost != "" {
		opts.Host = flagHost
	}
	if flagPort != 0 {
		opts.Port = flagPort
	}
	if flagUser != "" {
		opts.User = flagUser
	}
	if flagPassword != "" {
		opts.Password = flagPassword
	}

	if serverScope {
		opts.Target = orientconfig.Target{Kind: orientconfig.ServerTarget}
	} else if flagDatabase != "" {
		opts.Target = orientconfig.Target{
			Kind:         orientconfig.DatabaseTarget,
			DatabaseName: flagDatabase,
			DatabaseKind: orientconfig.DatabaseKind(flagDatabaseKind),
		}
	}

	return opts
}

// withConn dials, runs fn, and always stops the connection before
// returning, wiring Ctrl+C into a graceful Stop rather than an abrupt
// process kill.
func withConn(serverScope bool, fn func(ctx context.Context, conn *orient.Conn) error) error {
	opts := buildOptions(serverScope)
	if err := opts.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	conn, err := orient.Dial(ctx, opts, newLogger())
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Stop()

	sigCtx, stopSig := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSig()
	callCtx, cancelCall := context.WithTimeout(sigCtx, opts.Timeout)
	defer cancelCall()

	return fn(callCtx, conn)
}

func dbCreateCmd() *cobra.Command {
	var storageType string
	cmd := &cobra.Command{
		Use:   "db-create <name>",
		Short: "Create a database on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(true, func(ctx context.Context, conn *orient.Conn) error {
				cliArgs := []protocol.Arg{
					protocol.String(args[0]),
					protocol.String(flagDatabaseKind),
					protocol.String(storageType),
				}
				_, err := conn.Operation(ctx, protocol.DBCreate, cliArgs)
				if err != nil {
					return err
				}
				fmt.Printf("database %q created\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&storageType, "storage", "plocal", "storage engine: plocal or memory")
	return cmd
}

func dbListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "db-list",
		Short: "List databases known to the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(true, func(ctx context.Context, conn *orient.Conn) error {
				result, err := conn.Operation(ctx, protocol.DBList, nil)
				if err != nil {
					return err
				}
				doc := result.(*record.Document)
				databases, _ := doc.Get("databases")
				for name, entry := range databases.Map {
					fmt.Printf("%s -> %s\n", name, entry.String)
				}
				return nil
			})
		},
	}
}

func dbDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "db-drop <name>",
		Short: "Drop a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(true, func(ctx context.Context, conn *orient.Conn) error {
				cliArgs := []protocol.Arg{
					protocol.String(args[0]),
					protocol.String(flagDatabaseKind),
				}
				_, err := conn.Operation(ctx, protocol.DBDrop, cliArgs)
				if err != nil {
					return err
				}
				fmt.Printf("database %q dropped\n", args[0])
				return nil
			})
		},
	}
}

func dbExistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "db-exist <name>",
		Short: "Check whether a database exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(true, func(ctx context.Context, conn *orient.Conn) error {
				cliArgs := []protocol.Arg{
					protocol.String(args[0]),
					protocol.String(flagDatabaseKind),
				}
				result, err := conn.Operation(ctx, protocol.DBExist, cliArgs)
				if err != nil {
					return err
				}
				fmt.Println(result.(bool))
				return nil
			})
		},
	}
}

func queryCmd() *cobra.Command {
	var async bool
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a SQL command against the open database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(false, func(ctx context.Context, conn *orient.Conn) error {
				cliArgs := protocol.EncodeCommandArgs(args[0], async)
				result, err := conn.Operation(ctx, protocol.Command, cliArgs)
				if err != nil {
					return err
				}
				cmdResult := result.(protocol.CommandResult)
				switch cmdResult.Kind {
				case 'n':
					fmt.Println("ok, no result")
				case 'r':
					fmt.Printf("%+v\n", cmdResult.Record.Doc)
				case 'l':
					for _, rec := range cmdResult.Records {
						fmt.Printf("%+v\n", rec.Doc)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "issue the command asynchronously")
	return cmd
}

func recordLoadCmd() *cobra.Command {
	var cluster int16
	var position int64
	cmd := &cobra.Command{
		Use:   "record-load",
		Short: "Load a single record by RID",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(false, func(ctx context.Context, conn *orient.Conn) error {
				cliArgs := []protocol.Arg{
					protocol.Short(cluster),
					protocol.Long(position),
					protocol.String(""),
					protocol.Bool(true),
					protocol.Bool(false),
				}
				result, err := conn.Operation(ctx, protocol.RecordLoad, cliArgs)
				if err != nil {
					return err
				}
				loadResult := result.(protocol.RecordLoadResult)
				if !loadResult.Found {
					fmt.Println("not found")
					return nil
				}
				fmt.Printf("%+v\n", loadResult.Primary.Doc)
				return nil
			})
		},
	}
	cmd.Flags().Int16Var(&cluster, "cluster", 0, "cluster id")
	cmd.Flags().Int64Var(&position, "position", 0, "cluster position")
	return cmd
}
