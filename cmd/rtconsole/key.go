package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/codewandler/openairt-console/internal/config"
)

// resolveAPIKey returns the key from the environment or the credential
// store, prompting for one when neither has it. A prompted key is saved.
func resolveAPIKey(store *config.CredentialStore, in io.Reader, out io.Writer) (string, error) {
	if key := config.APIKey(); key != "" {
		return key, nil
	}
	key, err := store.Load()
	if err != nil {
		return "", err
	}
	if key != "" {
		return key, nil
	}
	return promptAPIKey(store, in, out)
}

func promptAPIKey(store *config.CredentialStore, in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "OpenAI API Key: ")
	key, err := readSecret(in)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read api key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("no api key given")
	}
	if err := store.Save(key); err != nil {
		return "", err
	}
	return key, nil
}

func readSecret(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		return string(b), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return line, nil
}

// maskKey shows only the first characters of a key.
func maskKey(key string) string {
	if len(key) <= 3 {
		return "..."
	}
	return key[:3] + "..."
}

func newResetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-key",
		Short: "Replace the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := config.NewCredentialStore("")
			if err := store.Reset(); err != nil {
				return err
			}
			key, err := promptAPIKey(store, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "api key %s saved to %s\n", maskKey(key), store.Path())
			return nil
		},
	}
}
