/*
Copyright © 2024 Rémi Ferrand

Contributor(s): Rémi Ferrand <riton.github_at_gmail.com>, 2024

This software is governed by the CeCILL license under French law and
abiding by the rules of distribution of free software.  You can  use,
modify and/ or redistribute the software under the terms of the CeCILL
license as circulated by CEA, CNRS and INRIA at the following URL
"http://www.cecill.info".

As a counterpart to the access to the source code and  rights to copy,
modify and redistribute granted by the license, users are provided only
with a limited warranty  and the software's author,  the holder of the
economic rights,  and the successive licensors  have only  limited
liability.

In this respect, the user's attention is drawn to the risks associated
with loading,  using,  modifying and/or developing or reproducing the
software by the user in light of its specific status of free software,
that may mean  that it is complicated to manipulate,  and  that  also
therefore means  that it is reserved for developers  and  experienced
professionals having in-depth computer knowledge. Users are therefore
encouraged to load and test the software's suitability as regards their
requirements in conditions enabling the security of their systems and/or
data to be ensured and,  more generally, to use and operate it in the
same conditions as regards security.

The fact that you are presently reading this means that you have had
knowledge of the CeCILL license and that you accept its terms.
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	envFile string

	rootViper = newViper()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "envpage",
	Short: "Serve a page reporting the current runtime environment",
	Long: `envpage serves a single HTML page on GET / that reports the
runtime environment the process was started in.

The environment name is read from APP_ENV, then NODE_ENV, and defaults
to "development". Every other route answers 404.`,
	Args:         cobra.NoArgs,
	RunE:         rootCmdRunE,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration")

	rootCmd.Flags().BoolP("debug", "d", false, "Enable debug mode")
	_ = rootViper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))
}

func initLogger() {
	setupLogger(rootViper.GetBool("debug"))
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func setupSigHandlers(ctx context.Context) context.Context {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	nctx, nctxCancel := context.WithCancel(ctx)

	go func() {
		sig := <-sigs
		slog.Debug("received signal", "signal", sig.String(), "component", "main")
		nctxCancel()
	}()

	return nctx
}

func rootCmdRunE(cmd *cobra.Command, args []string) error {
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	cfg, err := resolveConfig(rootViper, cfgFile, envFile, cmd.Flags().Changed("env-file"))
	if err != nil {
		slog.Error("loading configuration", "error", err, "component", "main")
		return err
	}

	// the env file and config file may both flip debug on
	setupLogger(cfg.Debug)
	log := slog.With("component", "main")

	log.Debug("envpage configuration", "config", cfg)

	page, err := newPageHandler(cfg.Page.Environment)
	if err != nil {
		log.Error("preparing index page", "error", err)
		return err
	}

	sigCtx := setupSigHandlers(rootCtx)

	srv := newServer(sigCtx, cfg.Server, newRouter(page, slog.With("component", "access-log")))

	if err := srv.ListenAndServe(sigCtx); err != nil {
		log.Error("running HTTP server", "error", err)
		return err
	}

	return nil
}

// resolveConfig layers dotenv, config file and environment into a
// validated config.
func resolveConfig(v *viper.Viper, cfgPath, envPath string, envPathExplicit bool) (config, error) {
	if err := loadDotEnv(envPath, envPathExplicit); err != nil {
		return config{}, err
	}

	if err := readConfigFile(v, cfgPath); err != nil {
		return config{}, err
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return config{}, fmt.Errorf("resolving configuration: %w", err)
	}

	return cfg, nil
}
