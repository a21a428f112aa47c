package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/astralblue/k3l-fcgraph-embeds/internal/embed"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	File string
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse [payload]",
		Short: "Parse a raw embed payload and print its canonical form",
		Long: `Parse one embed payload the way the sync loop would and print the
normalized embeds as canonical JSON. The payload comes from the
argument, --file, or stdin.

Example:
  fcembeds parse '[{"url": "https://example.com"}]'
  fcembeds parse "[{'castId': {'fid': 7, 'hash': '0x0102030405060708090a0b0c0d0e0f1011121314'}}]"
  echo '[{"url": "https://x.test"}]' | fcembeds parse`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, cmd, args)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read the payload from a file instead of the argument")

	return cmd
}

func runParse(opts *ParseOptions, cmd *cobra.Command, args []string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	payload, err := readPayload(opts, cmd, args)
	if err != nil {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading payload", err)
	}

	embeds, err := embed.Parse(payload)
	if err != nil {
		formatter.Error(ErrCodeParse, err.Error(), nil)
		return WrapExitError(ExitFailure, "unparsable payload", err)
	}

	canonical, err := embed.MarshalCanonical(embeds)
	if err != nil {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "serializing embeds", err)
	}

	if opts.Format == "json" {
		return formatter.Success(embeds.AsMaps())
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(canonical))
	return nil
}

func readPayload(opts *ParseOptions, cmd *cobra.Command, args []string) (string, error) {
	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return string(data), nil
}
