package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"shiftcast/internal/common"
	"shiftcast/internal/config"
	"shiftcast/internal/ui"
)

func newEncryptConfigCmd() *cobra.Command {
	var backup bool

	cmd := &cobra.Command{
		Use:   "encrypt-config",
		Short: "Encrypt passwords in configuration file",
		Long: `Encrypt plaintext passwords in the configuration file using AES-256-GCM encryption.

Only the password values change; comments and every other setting are kept.

The encryption key is derived from:
1. SHIFTCAST_ENCRYPTION_KEY environment variable (if set)
2. Machine-specific identifier (hostname + home directory)

To supply the password at runtime instead:
  export SHIFTCAST_SNOWFLAKE_PASSWORD="your-password"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncryptConfig(backup)
		},
	}
	cmd.Flags().BoolVar(&backup, "backup", true, "Create backup of original config")
	return cmd
}

func runEncryptConfig(backup bool) error {
	configFile := config.GetConfigFile()
	ui.ShowInfo(fmt.Sprintf("Reading configuration from: %s", configFile))

	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	changed, err := encryptPasswordNodes(&doc)
	if err != nil {
		return err
	}
	if changed == 0 {
		ui.ShowInfo("Passwords are already encrypted")
		return nil
	}

	if backup {
		backupFile := configFile + ".backup"
		if err := os.WriteFile(backupFile, data, common.FilePermissionSecure); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		ui.ShowSuccess(fmt.Sprintf("Created backup: %s", backupFile))
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configFile, out, common.FilePermissionSecure); err != nil {
		return fmt.Errorf("failed to save encrypted config: %w", err)
	}

	ui.ShowSuccess("Configuration passwords encrypted successfully")
	return nil
}

// encryptPasswordNodes encrypts every plaintext "password" value in the
// document and returns how many it changed.
func encryptPasswordNodes(node *yaml.Node) (int, error) {
	changed := 0
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			n, err := encryptPasswordNodes(child)
			if err != nil {
				return changed, err
			}
			changed += n
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if key.Value == "password" && value.Kind == yaml.ScalarNode {
				if value.Value == "" || config.IsEncrypted(value.Value) {
					continue
				}
				encrypted, err := config.EncryptPassword(value.Value)
				if err != nil {
					return changed, fmt.Errorf("failed to encrypt password: %w", err)
				}
				value.Value = encrypted
				value.Tag = "!!str"
				value.Style = 0
				changed++
				continue
			}
			n, err := encryptPasswordNodes(value)
			if err != nil {
				return changed, err
			}
			changed += n
		}
	}
	return changed, nil
}
