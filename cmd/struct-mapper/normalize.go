package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"struct-mapper/internal/mapping"
)

func newNormalizeCommand(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "normalize FILE",
		Short: "Rewrite a rule file as YAML with the 121 shorthand expanded",
		Long: `Read a YAML or TOML rule file and write it back as YAML. Entries of the
121 shorthand become explicit field mappings placed before the existing ones.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(c, cmd.OutOrStdout(), args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write instead of standard output")

	return cmd
}

func runNormalize(c *cli, out io.Writer, path, output string) error {
	mf, err := mapping.LoadFile(path)
	if err != nil {
		return err
	}

	mapping.NormalizeMappingFile(mf)

	if output != "" {
		if err := mapping.WriteFile(mf, output); err != nil {
			return err
		}

		c.logger.Debug("rule file normalized", zap.String("path", path), zap.String("output", output))
		fmt.Fprintf(out, "%s: %d mappings written to %s\n", path, len(mf.TypeMappings), output)

		return nil
	}

	data, err := mapping.Marshal(mf)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	_, err = out.Write(data)

	return err
}
