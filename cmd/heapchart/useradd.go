package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heapchart/heapchart/heapchart"
	"github.com/heapchart/heapchart/internal/config"
)

func newUseraddCmd(a *app) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "useradd <username>",
		Short: "Create an account",
		Long: `Creates an account in the configured storage. The password is read from
the first line of standard input unless --password is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Storage.Backend == config.BackendMemory {
				return errors.New("useradd needs a persistent storage backend (badger or sqlite)")
			}
			if password == "" {
				var err error
				if password, err = readLine(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}

			storage, closeStorage, err := openStorage(a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer closeStorage()

			user, err := heapchart.Signup(cmd.Context(), storage, strings.TrimSpace(args[0]), password, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %s)\n", user.Name, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (visible in process lists; prefer stdin)")
	return cmd
}

// readLine returns the first line of r without its line ending.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
