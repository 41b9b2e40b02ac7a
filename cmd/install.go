package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"nexus-mod-manager/dispatcher"
)

var installCmd = &cobra.Command{
	Use:   "install <mod>",
	Short: "Install a registered mod into its game",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		app := bootstrap()
		defer app.Shutdown()

		mod, err := app.resolveModArg(args[0])
		if err != nil {
			return err
		}
		if mod.Installed {
			return fmt.Errorf("%s is already installed, use 'update' to reinstall it", mod.Name)
		}

		watchOutcome(app.Bus,
			dispatcher.EventBroadcastModInstallSuccess,
			dispatcher.EventBroadcastModInstallFailed)

		if !app.Installer.Install(mod) {
			return fmt.Errorf("install of %s did not complete", mod.Name)
		}
		app.markInstalled(mod.ID, true)
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <mod>",
	Short: "Remove a mod's links from its game",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		app := bootstrap()
		defer app.Shutdown()

		mod, err := app.resolveModArg(args[0])
		if err != nil {
			return err
		}
		if !mod.Installed {
			return fmt.Errorf("%s is not installed", mod.Name)
		}

		watchOutcome(app.Bus, dispatcher.EventBroadcastModUninstalled)

		if !app.Installer.Uninstall(mod) {
			return fmt.Errorf("uninstall of %s did not complete", mod.Name)
		}
		app.markInstalled(mod.ID, false)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <mod>",
	Short: "Reinstall a mod from its current archive",
	Long: `Reinstall a mod by uninstalling it and installing it again from the
archive it is registered with. The two steps are independent: when
the install half fails the mod stays uninstalled.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		app := bootstrap()
		defer app.Shutdown()

		mod, err := app.resolveModArg(args[0])
		if err != nil {
			return err
		}
		if !mod.Installed {
			return fmt.Errorf("%s is not installed, use 'install' instead", mod.Name)
		}

		seen := watchOutcome(app.Bus,
			dispatcher.EventBroadcastModUninstalled,
			dispatcher.EventBroadcastModInstallSuccess,
			dispatcher.EventBroadcastModInstallFailed)

		if app.Installer.Update(mod) {
			app.markInstalled(mod.ID, true)
			return nil
		}

		// When the uninstall half went through, the links are off the
		// disk and the flag has to follow even though the rest failed.
		for _, name := range *seen {
			if name == dispatcher.EventBroadcastModUninstalled {
				app.markInstalled(mod.ID, false)
				break
			}
		}
		return fmt.Errorf("update of %s did not complete", mod.Name)
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(updateCmd)
}
