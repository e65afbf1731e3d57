package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/FranksOps/kwscout/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries state shared by subcommands once the root PersistentPreRunE
// has run.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), out: os.Stdout}
	var cfgFile string

	root := &cobra.Command{
		Use:           "kwscout",
		Short:         "Keyword analysis over the Serpstat API",
		Long:          "kwscout scores related keywords and surfaces low-hanging fruit for a domain using the Serpstat keyword API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(a.v, cfgFile); err != nil {
				return err
			}
			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(cmd.ErrOrStderr(), cfg.Log)
			slog.SetDefault(a.logger)
			a.out = cmd.OutOrStdout()
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./kwscout.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	_ = a.v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", pf.Lookup("log-format"))

	root.AddCommand(
		newServeCmd(a),
		newAnalyzeCmd(a),
		newRankCmd(a),
		newReportCmd(a),
	)
	return root
}

func newLogger(w io.Writer, cfg config.Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, flag string) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}
