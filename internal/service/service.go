// Package service registers lightsocks relays as systemd units, one unit
// per config file, so a host can run several relays side by side.
package service

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	binDir     = "/usr/local/bin"
	configsDir = "/etc/lightsocks/configs"
	unitsDir   = "/etc/systemd/system"
	prefix     = "lightsocks"
)

// Unit describes one relay instance to run under systemd. Role is
// "local" or "server" and selects the binary; the unit name is derived
// from the config file, so installing two configs yields two services.
type Unit struct {
	Role       string
	ConfigPath string
}

// Name returns the systemd service name, e.g.
// lightsocks-server-home for role "server" and config home.json.
func (u Unit) Name() string {
	base := filepath.Base(u.ConfigPath)
	return fmt.Sprintf("%s-%s-%s", prefix, u.Role, strings.TrimSuffix(base, filepath.Ext(base)))
}

func (u Unit) binary() string {
	return fmt.Sprintf("%s-%s", prefix, u.Role)
}

// Install copies the running binary and the config into place, writes
// the unit file, and enables the service. It must run as root.
func (u Unit) Install() error {
	if u.Role != "local" && u.Role != "server" {
		return fmt.Errorf("unknown role %q", u.Role)
	}
	if err := os.MkdirAll(configsDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", configsDir, err)
	}

	binPath := filepath.Join(binDir, u.binary())
	if err := installBinary(binPath); err != nil {
		return err
	}

	cfg, err := os.ReadFile(u.ConfigPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	// The config embeds the key; keep it out of other users' reach.
	cfgPath := filepath.Join(configsDir, filepath.Base(u.ConfigPath))
	if err := os.WriteFile(cfgPath, cfg, 0600); err != nil {
		return fmt.Errorf("install config: %w", err)
	}

	unitPath := filepath.Join(unitsDir, u.Name()+".service")
	if err := os.WriteFile(unitPath, []byte(u.unitText(binPath, cfgPath)), 0644); err != nil {
		return fmt.Errorf("write unit: %w", err)
	}

	if err := systemctl("daemon-reload"); err != nil {
		return err
	}
	if err := systemctl("enable", "--now", u.Name()); err != nil {
		return err
	}
	fmt.Printf("Service %s enabled and started (config %s)\n", u.Name(), cfgPath)
	return nil
}

func (u Unit) unitText(binPath, cfgPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Unit]\nDescription=Lightsocks %s relay (%s)\n", u.Role, u.Name())
	b.WriteString("After=network-online.target\nWants=network-online.target\n\n")
	b.WriteString("[Service]\nType=simple\n")
	fmt.Fprintf(&b, "ExecStart=%s -c %s\n", binPath, cfgPath)
	b.WriteString("Restart=on-failure\nRestartSec=5\n")
	if u.Role == "server" {
		// One file descriptor pair per session; raise the ceiling.
		b.WriteString("LimitNOFILE=65535\n")
	}
	b.WriteString("\n[Install]\nWantedBy=multi-user.target\n")
	return b.String()
}

// Remove stops, disables, and deletes a service installed by Install.
// name may be the short form (server-home) or the full unit name.
func Remove(name string) error {
	if !strings.HasPrefix(name, prefix) {
		name = prefix + "-" + name
	}
	_ = systemctl("disable", "--now", name)

	if err := os.Remove(filepath.Join(unitsDir, name+".service")); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no such service %s", name)
		}
		return fmt.Errorf("remove unit: %w", err)
	}
	_ = systemctl("daemon-reload")
	fmt.Printf("Service %s removed\n", name)
	return nil
}

// List prints every installed lightsocks unit with its active state.
func List() error {
	units, err := filepath.Glob(filepath.Join(unitsDir, prefix+"-*.service"))
	if err != nil {
		return err
	}
	if len(units) == 0 {
		fmt.Println("No lightsocks services registered.")
		return nil
	}
	for _, u := range units {
		name := strings.TrimSuffix(filepath.Base(u), ".service")
		state, err := exec.Command("systemctl", "is-active", name).Output()
		if err != nil {
			state = []byte("inactive")
		}
		fmt.Printf("%-40s  %s\n", name, strings.TrimSpace(string(state)))
	}
	return nil
}

// installBinary copies the currently running executable to dst, unless
// it is already running from there.
func installBinary(dst string) error {
	src, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	if src, err = filepath.EvalSymlinks(src); err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	if src == dst {
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read executable: %w", err)
	}
	if err := os.WriteFile(dst, data, 0755); err != nil {
		return fmt.Errorf("install binary: %w", err)
	}
	fmt.Printf("Installed %s\n", dst)
	return nil
}

func systemctl(args ...string) error {
	cmd := exec.Command("systemctl", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("systemctl %s: %w", strings.Join(args, " "), err)
	}
	return nil
}
