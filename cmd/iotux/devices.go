package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/TedjaSatedji/iotUx/internal/api"
	"github.com/spf13/cobra"
)

func newDevicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Manage registered devices",
	}
	cmd.AddCommand(newDevicesListCommand(), newDevicesAddCommand(), newDevicesRemoveCommand())
	return cmd
}

func newDevicesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(true)
			if err != nil {
				return err
			}
			defer app.close()

			devices, err := app.client.ListDevices(cmd.Context())
			if err != nil {
				return describeAPIError(err)
			}
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(devices)
		},
	}
}

func newDevicesAddCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add <device-id>",
		Short: "Register a device to this account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevicesAdd(cmd.Context(), args[0], name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name for the device")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runDevicesAdd(ctx context.Context, deviceID, name string) error {
	app, err := newApp(true)
	if err != nil {
		return err
	}
	defer app.close()

	device, err := app.client.RegisterDevice(ctx, deviceID, name)
	if err != nil {
		return describeAPIError(err)
	}
	fmt.Printf("registered device %s (%s)\n", device.ID, device.Name)
	return nil
}

func newDevicesRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <device-id>",
		Short: "Remove a device from this account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(true)
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.client.RemoveDevice(cmd.Context(), args[0]); err != nil {
				return describeAPIError(err)
			}
			fmt.Printf("removed device %s\n", args[0])
			return nil
		},
	}
}

// describeAPIError keeps backend validation messages user-facing while
// leaving other errors untouched.
func describeAPIError(err error) error {
	var requestErr *api.RequestError
	if api.IsValidationError(err) && errors.As(err, &requestErr) && requestErr.Detail != "" {
		return fmt.Errorf("%s", requestErr.Detail)
	}
	return err
}
