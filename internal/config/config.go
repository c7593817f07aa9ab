// Package config wires cobra flags to viper with UniClipboard's
// defaults → config file → UC_* env vars → flags precedence, adapted
// from the teacher's cmd/suffuse bindViper/configPaths helpers.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/uniclipboard/internal/logging"
)

// BindViper wires a command's flags into v with the standard config file
// search order and UC_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → UC_* env vars → flags
func BindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("uniclipboard")
		v.SetConfigType("toml")
		for _, p := range Paths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("UC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("config: binding flags: %w", err)
	}
	return nil
}

// Paths returns the ordered list of directories to search for
// uniclipboard.toml, system-wide first, then per-user. viper searches
// them in this order and uses the first one that holds the file.
func Paths() []string {
	var paths []string

	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, fmt.Sprintf(`%s\uniclipboard`, pd))
		}
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			paths = append(paths, fmt.Sprintf(`%s\uniclipboard`, appdata))
		}
	} else {
		paths = append(paths, "/etc/uniclipboard")
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, fmt.Sprintf("%s/.config/uniclipboard", home))
		}
	}

	return paths
}

// Dir returns the last entry of Paths (the per-user config directory
// when one is known), used by internal/keystore and internal/trust for their
// on-disk state.
func Dir() string {
	paths := Paths()
	return paths[len(paths)-1]
}

// AddLoggingFlags adds the standard logging flags to a command.
func AddLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info for daemon, debug for interactive)")
}

// AddConfigFlag adds the --config flag to a command.
func AddConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// SetupLogging reads logging flags from v and configures the global slog
// logger.
func SetupLogging(v *viper.Viper) {
	interactive := v.GetBool("no-background") || logging.IsTTY(os.Stderr)
	levelStr := v.GetString("log-level")
	format := logging.ParseFormat(v.GetString("log-format"))
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
