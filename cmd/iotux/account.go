package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/TedjaSatedji/iotUx/internal/api"
	"github.com/TedjaSatedji/iotUx/internal/syncer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLoginCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the session locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), email, password)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runLogin(ctx context.Context, email, password string) error {
	app, err := newApp(true)
	if err != nil {
		return err
	}
	defer app.close()

	result, err := app.client.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, api.ErrInvalidCredentials) {
			return fmt.Errorf("invalid email or password")
		}
		return err
	}

	if err := app.store.SetAuthToken(ctx, result.AccessToken); err != nil {
		return err
	}
	if err := app.store.SetUserProfile(ctx, result.User); err != nil {
		app.logger.Warn("failed to cache user profile", zap.Error(err))
	}

	fmt.Printf("signed in as %s\n", result.User.Email)
	return nil
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and wipe local credentials and caches",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(true)
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.controller.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("signed out")
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Fetch the dashboard once and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context())
		},
	}
}

func runStatus(ctx context.Context) error {
	app, err := newApp(true)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.controller.Start(ctx); err != nil {
		return err
	}

	state, err := app.controller.RefreshNow(ctx)
	if errors.Is(err, syncer.ErrNotStarted) {
		state = app.controller.CurrentState()
	} else if err != nil {
		return err
	}

	if state.Kind == syncer.KindUnauthenticated {
		return fmt.Errorf("not signed in, run `iotux login` first")
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(state)
}
