package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/prettymuchbryce/kpicheck/internal/config"
	"github.com/prettymuchbryce/kpicheck/internal/pathutil"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or inspect the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigInit(defaultEnv(), configPath, configForce)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigShow(defaultEnv(), configPath, cmd.Flags().Changed("config"))
	},
}

func runConfigInit(e *env, path string, force bool) error {
	path = pathutil.ExpandTilde(path)
	st := newCmdStyles(e.out)

	if force {
		if exists, _ := afero.Exists(e.fs, path); exists {
			if err := e.fs.Remove(path); err != nil {
				return fmt.Errorf("failed to replace %s: %w", path, err)
			}
		}
	}

	written, created, err := config.EnsureDefaultConfig(e.fs, path)
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintf(e.out, "Config already exists at %s (use --force to overwrite)\n", st.bold.Render(written))
		return nil
	}
	fmt.Fprintf(e.out, "Wrote default config to %s\n", st.bold.Render(written))
	return nil
}

func runConfigShow(e *env, path string, explicit bool) error {
	st := newCmdStyles(e.out)
	expanded := pathutil.ExpandTilde(path)

	cfg, err := loadConfig(e, expanded, explicit)
	if err != nil {
		return err
	}

	exists, _ := afero.Exists(e.fs, expanded)
	switch {
	case !exists:
		welcome := "👋 Welcome to kpicheck\n\n" +
			"No config file found, built-in defaults are in use.\n" +
			"Create one with " + st.highlight.Render("kpicheck config init") + " to adjust patterns and the template."
		fmt.Fprintln(e.out, st.box.Render(welcome))
	case config.IsDefaultConfig(e.fs, expanded):
		fmt.Fprintln(e.out, st.dim.Render("The config file is unchanged from the defaults."))
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, st.label.Render("config")+st.dim.Render(expanded))
	fmt.Fprint(e.out, string(data))
	return nil
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
