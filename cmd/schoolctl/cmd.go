package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mpa-academy/schooladmin/internal/auth"
	"github.com/mpa-academy/schooladmin/internal/config"
	"github.com/mpa-academy/schooladmin/internal/rollover"
	"github.com/mpa-academy/schooladmin/internal/storage"
	"github.com/mpa-academy/schooladmin/internal/storage/sqlstore"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errNotConfirmed  = errors.New("refusing to start a new academic year without --yes")
	errEmptyPassword = errors.New("password must not be empty")
)

type commandLine struct {
	out    io.Writer
	driver string
	dsn    string
}

func newRootCmd(out io.Writer) *cobra.Command {
	cli := &commandLine{out: out}

	root := &cobra.Command{
		Use:          "schoolctl",
		Short:        "School administration tasks",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.PersistentFlags().StringVar(&cli.driver, "driver", "", "database driver: sqlite or pgx (default from DB_DRIVER)")
	root.PersistentFlags().StringVar(&cli.dsn, "dsn", "", "database DSN (default from DB_DSN)")

	root.AddCommand(cli.rolloverCmd(), cli.archivesCmd(), cli.hashPasswordCmd())
	return root
}

// openStore opens the store named by the flags, falling back to the configuration.
func (cli *commandLine) openStore(ctx context.Context) (storage.Store, error) {
	driver, dsn := cli.driver, cli.dsn
	if driver == "" || dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if driver == "" {
			driver = cfg.DBDriver
		}
		if dsn == "" {
			dsn = cfg.DBDSN
		}
	}
	return sqlstore.Open(ctx, driver, dsn)
}

func (cli *commandLine) rolloverCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "Archive learners, advance grades and start the next academic year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNotConfirmed
			}
			store, err := cli.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := rollover.NewService().Run(cmd.Context(), store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "Archived %d learners for %d\n", result.Archived, result.ArchivedYear)
			fmt.Fprintf(cli.out, "Advanced %d, graduated %d, skipped %d\n", result.Advanced, result.Graduated, result.Skipped)
			fmt.Fprintf(cli.out, "Now %s %d\n", result.NewTerm, result.NewYear)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the rollover")
	return cmd
}

func (cli *commandLine) archivesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archives",
		Short: "Inspect learner archives",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List archived years",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cli.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			years, err := store.ArchiveYears(cmd.Context())
			if err != nil {
				return err
			}
			for _, y := range years {
				fmt.Fprintln(cli.out, strconv.Itoa(y))
			}
			return nil
		},
	}

	var year int
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the learners archived for a year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cli.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			archive, err := store.Archive(cmd.Context(), year)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no archive for %d", year)
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ADMISSION NO\tNAME\tGRADE\tPARENT\tPHONE")
			for _, l := range archive.Learners {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.AdmissionNo, l.FullName, l.Grade, l.ParentName, l.ParentPhone)
			}
			return tw.Flush()
		},
	}
	show.Flags().IntVar(&year, "year", 0, "academic year")
	_ = show.MarkFlagRequired("year")

	cmd.AddCommand(list, show)
	return cmd
}

func (cli *commandLine) hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Prompt for a password and print its bcrypt hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cli.out, "Enter password:")
			pwd, err := readPasswordFunc(int(syscall.Stdin))
			fmt.Fprintln(cli.out)
			if err != nil {
				return err
			}
			if len(pwd) == 0 {
				return errEmptyPassword
			}

			hash, err := auth.HashPassword(string(pwd))
			if err != nil {
				return err
			}
			fmt.Fprintln(cli.out, hash)
			return nil
		},
	}
}
