package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/runoshun/boardsync/internal/domain"
	"github.com/runoshun/boardsync/internal/usecase"
)

// readPasswordFunc reads a credential without echo. Replaced in tests.
var readPasswordFunc = func(fd int) ([]byte, error) {
	return term.ReadPassword(fd)
}

// isTerminalFunc reports whether fd is a terminal. Replaced in tests.
var isTerminalFunc = term.IsTerminal

func newConfigureCommand(rt *runtime) *cobra.Command {
	var opts domain.SyncConfig
	var reset bool

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Set the remote repository and credential",
		Long: `Set the remote coordinates and credential used for syncing.

The credential is read from --credential, then BOARDSYNC_CREDENTIAL, and
finally prompted for without echo when stdin is a terminal. It is stored
obfuscated in the local store.

Changes made while the previous credential was rejected are queued and
delivered once the new configuration connects.

Examples:
  boardsync configure --owner acme --repo board --branch main --path data/board.json
  boardsync configure --clear`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reset {
				opts = domain.SyncConfig{}
			} else {
				if opts.Credential == "" {
					opts.Credential = os.Getenv("BOARDSYNC_CREDENTIAL")
				}
				if opts.Credential == "" {
					cred, err := promptCredential(cmd.InOrStdin(), cmd.ErrOrStderr())
					if err != nil {
						return err
					}
					opts.Credential = cred
				}
			}

			out, err := rt.c.ReconfigureUseCase().Execute(cmd.Context(), usecase.ReconfigureInput{Config: opts})
			if err != nil {
				return err
			}
			if rt.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), out.Status)
			}
			printStatus(cmd.OutOrStdout(), out.Status)
			if out.Flush != nil && out.Flush.Processed > 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Delivered %d queued change(s)\n", out.Flush.Processed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "Repository owner")
	cmd.Flags().StringVar(&opts.Repo, "repo", "", "Repository name")
	cmd.Flags().StringVar(&opts.Branch, "branch", "main", "Branch holding the board")
	cmd.Flags().StringVar(&opts.Path, "path", "board.json", "Path of the board document")
	cmd.Flags().StringVar(&opts.Credential, "credential", "", "Access token (prefer the prompt or BOARDSYNC_CREDENTIAL)")
	cmd.Flags().BoolVar(&reset, "clear", false, "Remove the configuration and work locally")
	return cmd
}

// promptCredential reads the credential from the terminal without echo, or
// a single line when stdin is not a terminal.
func promptCredential(in io.Reader, errOut io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && isTerminalFunc(int(f.Fd())) {
		_, _ = fmt.Fprint(errOut, "Credential: ")
		b, err := readPasswordFunc(int(f.Fd()))
		_, _ = fmt.Fprintln(errOut)
		if err != nil {
			return "", fmt.Errorf("read credential: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return strings.TrimSpace(line), nil
}
