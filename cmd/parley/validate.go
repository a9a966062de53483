package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nathoo/parley/config"
	"github.com/nathoo/parley/loader"
)

func newValidateCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [content_dir]",
		Short: "Check a content pack without playing it",
		Long: `Load every .lua and .yaml file in the content directory and check
references between NPCs, dialogues, lines and conditions. Warnings are
printed but do not fail validation.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := contentDir(rootOpts, args)
			if err != nil {
				return err
			}
			return runValidate(cmd, dir)
		},
	}
}

func runValidate(cmd *cobra.Command, dir string) error {
	out := cmd.OutOrStdout()

	defs, warnings, err := loader.LoadAll(dir)
	for _, w := range warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}

	var ve *loader.ValidationError
	if errors.As(err, &ve) {
		for _, e := range ve.Errors {
			fmt.Fprintf(out, "error: %s\n", e)
		}
		return fmt.Errorf("%s: %d error(s)", dir, len(ve.Errors))
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "ok: %s (%d NPCs, %d dialogues, %d warnings)\n",
		defs.Game.Title, len(defs.NPCDefs), len(defs.Dialogues), len(warnings))
	return nil
}

// contentDir returns the directory argument, or the configured content
// directory when none was given.
func contentDir(rootOpts *rootOptions, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := config.Load(rootOpts.configPath)
	if err != nil {
		return "", err
	}
	return cfg.Content, nil
}
