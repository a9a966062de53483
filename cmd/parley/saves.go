package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nathoo/parley/config"
	"github.com/nathoo/parley/engine/save"
)

func newSavesCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "saves",
		Short: "List save slots in the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.configPath)
			if err != nil {
				return err
			}
			backend, closeBackend, err := openBackend(cfg.Save)
			if err != nil {
				return err
			}
			defer closeBackend()

			if backend == nil {
				return errors.New("saving is disabled (save.backend is none)")
			}
			lister, ok := backend.(save.Lister)
			if !ok {
				return fmt.Errorf("backend %q cannot list slots", cfg.Save.Backend)
			}

			slots, err := lister.Slots(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(slots) == 0 {
				fmt.Fprintln(out, "no saves")
				return nil
			}
			for _, slot := range slots {
				marker := " "
				if slot == cfg.Save.Slot {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, slot)
			}
			return nil
		},
	}
}
