// lightsocks-local: the user-side relay. Accepts SOCKS5 clients and
// tunnels their traffic, obfuscated, to a lightsocks-server.
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
	"lightsocks/internal/localrelay"
	"lightsocks/internal/securestream"
)

const version = "1.0.0"

var (
	flagConfig    string
	flagURL       string
	flagServer    string
	flagPort      int
	flagBind      string
	flagLocalPort int
	flagKey       string
	flagSave      string
)

var rootCmd = &cobra.Command{
	Use:   "lightsocks-local",
	Short: "Lightsocks local relay",
	Long: `lightsocks-local listens for SOCKS5 clients on a local address and
forwards their traffic through an obfuscated tunnel to a
lightsocks-server, which dials the real destinations.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flagConfig, "config", "c", "", "JSON config file")
	f.StringVarP(&flagURL, "url", "u", "", "config URL (http://host:port/#key)")
	f.StringVarP(&flagServer, "server", "s", "", "server relay address")
	f.IntVarP(&flagPort, "port", "p", 0, "server relay port (default 8388)")
	f.StringVarP(&flagBind, "bind", "b", "", "local listen address (default 127.0.0.1)")
	f.IntVarP(&flagLocalPort, "local-port", "l", 0, "local listen port (default 1080)")
	f.StringVarP(&flagKey, "key", "k", "", "base64url key")
	f.StringVar(&flagSave, "save", "", "write the resolved config to this file before starting")

	rootCmd.AddCommand(cli.GenkeyCommand())
	rootCmd.AddCommand(cli.ServiceCommand("local"))
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
	relay := &localrelay.Relay{
		ListenAddr: net.JoinHostPort(cfg.LocalAddr, fmt.Sprintf("%d", cfg.LocalPort)),
		ServerAddr: net.JoinHostPort(cfg.ServerAddr, fmt.Sprintf("%d", cfg.ServerPort)),
		Stream:     securestream.New(c),
		Logger:     logger,
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

// resolveConfig layers the config sources: file first, then URL, then
// individual flags, each overriding the last.
func resolveConfig() (*config.Config, error) {
	d := &config.Draft{}
	if flagConfig != "" {
		if err := d.MergeFile(flagConfig); err != nil {
			return nil, err
		}
	}
	if flagURL != "" {
		if err := d.MergeURL(flagURL); err != nil {
			return nil, err
		}
	}
	d.SetServerAddr(flagServer)
	d.SetServerPort(flagPort)
	d.SetLocalAddr(flagBind)
	d.SetLocalPort(flagLocalPort)
	if err := d.SetKey(flagKey); err != nil {
		return nil, err
	}

	cfg, err := d.Resolve(config.RoleLocal)
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
