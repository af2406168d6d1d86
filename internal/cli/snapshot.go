package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/runoshun/boardsync/internal/usecase"
)

func newExportCommand(rt *runtime) *cobra.Command {
	var envelope bool
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the board document as JSON",
		Long: `Write the current board document as JSON to stdout or a file.
--envelope writes the base64 form stored on the remote instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := rt.c.ExportSnapshotUseCase().Execute(cmd.Context(), usecase.ExportSnapshotInput{Envelope: envelope})
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(out.Data)
				return err
			}
			if err := os.WriteFile(output, out.Data, 0o600); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported board to %s\n", output)
			return nil
		},
	}
	cmd.Flags().BoolVar(&envelope, "envelope", false, "Write the base64 envelope")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func newImportCommand(rt *runtime) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the board with a JSON snapshot",
		Long: `Replace the board with a previously exported snapshot (plain JSON or the
base64 envelope). The snapshot is validated before anything is saved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			out, err := rt.c.ImportSnapshotUseCase().Execute(cmd.Context(), usecase.ImportSnapshotInput{
				Actor:   rt.actor(),
				Summary: message,
				Data:    data,
			})
			if err != nil {
				return err
			}
			printSave(cmd.OutOrStdout(), out.Result, "Imported board (%d tasks)", len(out.Result.Document.Tasks))
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message (default \"Import snapshot\")")
	return cmd
}
