package cmd

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/prettymuchbryce/kpicheck/internal/fs"
	"github.com/prettymuchbryce/kpicheck/internal/pathutil"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "kpicheck",
	Short: "kpicheck - Check Word documents for a quarterly KPI self-assessment score",
	Long: `kpicheck scans a directory of .docx files, checks the last paragraphs of
each document for a KPI self-assessment sentence such as
"2026年第四季度KPI考核自评85分", reports the results and can append a
templated sentence to documents that lack one.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		SetupLogging(logLevel(verbose, ""))
	},
}

// env is what a command touches outside its own flags.
type env struct {
	fs          fs.FileSystem
	out         io.Writer
	in          io.ReadCloser
	now         func() time.Time
	interactive bool
}

func defaultEnv() *env {
	return &env{
		fs:          fs.NewReal(),
		out:         os.Stdout,
		in:          os.Stdin,
		now:         time.Now,
		interactive: isInteractive(),
	}
}

func SetVersion(v string) {
	rootCmd.Version = v
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", pathutil.MustDefaultConfigPath(), "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and list compliant documents too")
}
