package cmd

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"shiftcast/internal/config"
	"shiftcast/internal/ui"
	"shiftcast/pkg/models"
)

// Interactive steps of setup, swapped in tests.
var (
	runWizard = func(base *models.Config) (*ui.WizardResult, error) {
		return ui.NewConfigWizard().Run(base)
	}
	confirmOverwrite = func() (bool, error) {
		overwrite := false
		err := survey.AskOne(&survey.Confirm{
			Message: "Configuration already exists. Do you want to overwrite it?",
			Default: false,
		}, &overwrite)
		return overwrite, err
	}
)

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Initial configuration setup",
		RunE:  runSetup,
	}
}

func runSetup(cmd *cobra.Command, args []string) error {
	base := config.Defaults()

	if config.Exists() {
		overwrite, err := confirmOverwrite()
		if err != nil {
			return err
		}
		if !overwrite {
			ui.ShowInfo("Setup cancelled.")
			return nil
		}
		// Start from the current values so the prompts show them as defaults.
		if existing, err := loadConfig(cmd); err == nil {
			base = existing
		}
	}

	result, err := runWizard(base)
	if err != nil {
		return err
	}
	cfg := result.Config

	if result.StorePassword {
		keyring := config.KeyringProvider{}
		if err := keyring.StorePassword(cfg.Snowflake.Username, cfg.Snowflake.Password); err != nil {
			ui.ShowWarning(fmt.Sprintf("Could not use the OS keyring, the password will be stored encrypted instead: %v", err))
			cfg.Credentials.UseKeyring = false
		} else {
			cfg.Snowflake.Password = ""
		}
	}

	if err := config.Save(cfg); err != nil {
		return err
	}

	ui.ShowSuccess(fmt.Sprintf("Configuration saved to %s", config.GetConfigFile()))
	ui.ShowInfo("Run 'shiftcast cities' to check the connection")
	return nil
}
