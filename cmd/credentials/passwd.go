package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/app"
)

// readPassword is swapped in tests.
var readPassword = func(fd int) ([]byte, error) { return term.ReadPassword(fd) }

func newPasswdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <account-id>",
		Short: "Set an account's password from the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid account id %q", args[0])
			}

			password, err := promptPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			if err := s.ApplyMigrations(); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}

			creds, err := app.NewCredentialUpdater(cfg, s)
			if err != nil {
				return err
			}
			if err := creds.Replace(ctx, id, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password updated for account %d\n", id)
			return nil
		},
	}
}

// promptPassword asks twice. A terminal gets no echo; piped input is read
// line by line.
func promptPassword(in io.Reader, out io.Writer) (string, error) {
	read := lineReader(in)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		read = func() (string, error) {
			b, err := readPassword(int(f.Fd()))
			fmt.Fprintln(out)
			return string(b), err
		}
	}

	fmt.Fprint(out, "New password: ")
	first, err := read()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(out, "Repeat password: ")
	second, err := read()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}

func lineReader(in io.Reader) func() (string, error) {
	sc := bufio.NewScanner(in)
	return func() (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		return strings.TrimRight(sc.Text(), "\r"), nil
	}
}
