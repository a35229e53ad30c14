/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Command indexmap generates storage registrations from an OpenAPI document.
//
//	//go:generate go run github.com/suparena/reactiverepo/cmd/indexmap -i users.yaml -p users -o zz_registry.go
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/suparena/reactiverepo"
	"github.com/suparena/reactiverepo/processor"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		inputPath string
		pkg      string
		outPath  string
	)
	cmd := &cobra.Command{
		Use:          "indexmap",
		Short:        "Generate storage registrations from OpenAPI vendor extensions",
		Version:      reactiverepo.GetVersionInfo().Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(inputPath)
			if err != nil {
				return err
			}
			defer in.Close()

			mappings, err := processor.Parse(in)
			if err != nil {
				return err
			}
			if len(mappings) == 0 {
				return fmt.Errorf("%s has no schema with storage extensions", inputPath)
			}

			var buf bytes.Buffer
			if err := processor.Generate(&buf, pkg, mappings); err != nil {
				return err
			}
			if outPath == "" || outPath == "-" {
				_, err = cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d registration(s) to %s\n", len(mappings), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "OpenAPI document (YAML)")
	cmd.Flags().StringVarP(&pkg, "package", "p", "", "package of the generated file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file, stdout when empty")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("package")
	return cmd
}
