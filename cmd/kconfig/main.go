// Command kconfig edits a kernel build's .cargo/config.toml against a
// directory of named option presets: load a preset non-interactively,
// clean the config back to just its alias table, or launch an
// interactive picker when given no subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OsirisRTOS/osiris-sub000/internal/buildcfg"
)

func main() {
	var configPath, presetsDir string

	root := &cobra.Command{
		Use:   "kconfig",
		Short: "Edit .cargo/config.toml against a directory of option presets",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInteractive(configPath, presetsDir)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", ".cargo/config.toml", "path to the writeable config file")
	root.PersistentFlags().StringVar(&presetsDir, "presets", "options", "directory of preset *.toml files")

	var loadNoConfirm bool
	loadCmd := &cobra.Command{
		Use:   "load <preset>",
		Short: "Replace all non-alias tables in the config with a preset's",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runLoad(configPath, presetsDir, args[0], loadNoConfirm)
		},
	}
	loadCmd.Flags().BoolVar(&loadNoConfirm, "no-confirm", false, "apply without an interactive confirmation prompt")

	var cleanNoConfirm bool
	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove all top-level tables except alias",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runClean(configPath, cleanNoConfirm)
		},
	}
	cleanCmd.Flags().BoolVar(&cleanNoConfirm, "no-confirm", false, "apply without an interactive confirmation prompt")

	root.AddCommand(loadCmd, cleanCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "kconfig: %v\n", err)
		os.Exit(1)
	}
}

func loadConfigOrEmpty(path string) (buildcfg.Document, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return buildcfg.Document{}, nil
	}
	return buildcfg.Load(path)
}

func runLoad(configPath, presetsDir, name string, noConfirm bool) error {
	presets, err := buildcfg.ListPresets(presetsDir)
	if err != nil {
		return err
	}
	var chosen *buildcfg.Preset
	for i := range presets {
		if presets[i].Name == name {
			chosen = &presets[i]
			break
		}
	}
	if chosen == nil {
		return fmt.Errorf("no preset named %q in %s", name, presetsDir)
	}

	if !noConfirm {
		ok, err := confirm(fmt.Sprintf("replace all non-alias tables in %s with preset %q?", configPath, name))
		if err != nil {
			return err
		}
		if !ok {
			os.Exit(1)
		}
	}

	cfg, err := loadConfigOrEmpty(configPath)
	if err != nil {
		return err
	}
	preset, err := buildcfg.Load(chosen.Path)
	if err != nil {
		return err
	}
	return buildcfg.Save(configPath, buildcfg.ApplyPreset(cfg, preset))
}

func runClean(configPath string, noConfirm bool) error {
	if !noConfirm {
		ok, err := confirm(fmt.Sprintf("remove all top-level tables except alias from %s?", configPath))
		if err != nil {
			return err
		}
		if !ok {
			os.Exit(1)
		}
	}

	cfg, err := loadConfigOrEmpty(configPath)
	if err != nil {
		return err
	}
	return buildcfg.Save(configPath, buildcfg.Clean(cfg))
}
