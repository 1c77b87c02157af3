package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/TedjaSatedji/iotUx/internal/profile"
	"github.com/spf13/cobra"
)

func newProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit the locally displayed profile",
	}
	cmd.AddCommand(newProfileShowCommand(), newProfileSetCommand())
	return cmd
}

func newProfileShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the cached profile with local edits applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(true)
			if err != nil {
				return err
			}
			defer app.close()

			merged, ok, err := app.profiles.View(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no cached profile, run `iotux login` first")
			}
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(merged)
		},
	}
}

func newProfileSetCommand() *cobra.Command {
	var name, avatarURL string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store local profile edits (never synced to the backend)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" && avatarURL == "" {
				return fmt.Errorf("nothing to change, pass --name or --avatar-url")
			}
			app, err := newApp(true)
			if err != nil {
				return err
			}
			defer app.close()

			edits := profile.Overrides{Name: name, AvatarURL: avatarURL}
			if err := app.profiles.Update(cmd.Context(), edits); err != nil {
				return err
			}
			fmt.Println("profile updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&avatarURL, "avatar-url", "", "Avatar image URL")
	return cmd
}
