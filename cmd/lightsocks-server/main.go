// lightsocks-server: the remote relay. Terminates the obfuscated tunnel,
// speaks SOCKS5, and dials destinations.
package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lightsocks/internal/cipher"
	"lightsocks/internal/cli"
	"lightsocks/internal/config"
	"lightsocks/internal/securestream"
	"lightsocks/internal/serverrelay"
)

const version = "1.0.0"

var (
	flagConfig string
	flagServer string
	flagPort   int
	flagKey    string
	flagSave   string
)

var rootCmd = &cobra.Command{
	Use:           "lightsocks-server",
	Short:         "Lightsocks server relay",
	Long: `lightsocks-server accepts obfuscated tunnel connections from
lightsocks-local instances, terminates SOCKS5, and relays traffic to the
requested destinations.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flagConfig, "config", "c", "", "JSON config file")
	f.StringVarP(&flagServer, "server", "s", "", "listen address (default 0.0.0.0)")
	f.IntVarP(&flagPort, "port", "p", 0, "listen port (default 8388)")
	f.StringVarP(&flagKey, "key", "k", "", "base64url key")
	f.StringVar(&flagSave, "save", "", "write the resolved config to this file before starting")

	rootCmd.AddCommand(cli.GenkeyCommand())
	rootCmd.AddCommand(cli.ServiceCommand("server"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	c, err := cipher.New(cfg.Key)
	if err != nil {
		return err
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	relay := &serverrelay.Relay{
		ListenAddr: net.JoinHostPort(cfg.ServerAddr, fmt.Sprintf("%d", cfg.ServerPort)),
		Stream:     securestream.New(c),
		Logger:     logger,
		DidListen: func(net.Addr) {
			// Print the ready-to-paste peer invocation.
			logger.Printf("connect with: lightsocks-local -u %q", config.DumpURL(cfg))
		},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- relay.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("received signal %s, shutting down", sig)
		relay.Close()
		return nil
	case err := <-errCh:
		return err
	}
}

func resolveConfig() (*config.Config, error) {
	d := &config.Draft{}
	if flagConfig != "" {
		if err := d.MergeFile(flagConfig); err != nil {
			return nil, err
		}
	}
	d.SetServerAddr(flagServer)
	d.SetServerPort(flagPort)
	if err := d.SetKey(flagKey); err != nil {
		return nil, err
	}

	cfg, err := d.Resolve(config.RoleServer)
	if err != nil {
		return nil, err
	}

	if flagSave != "" {
		if err := config.Save(flagSave, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
