// Command watch signs in and keeps a live mirror of the account's profile,
// logging every change as it arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"treebio-api/internal/client"
	"treebio-api/internal/logging"
)

func main() {
	if err := newWatchCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newWatchCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TREEBIO_WATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "watch",
		Short:         "Mirror a profile and print live updates",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Init(logging.Options{Level: v.GetString("log-level")})
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err := watch(ctx, v)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.String("server", "http://localhost:8008", "API base URL")
	flags.String("email", "", "account email")
	flags.String("password", "", "account password")
	flags.Bool("register", false, "create the account before signing in")
	flags.String("log-level", "info", "debug, info, warn or error")
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
	return cmd
}

func watch(ctx context.Context, v *viper.Viper) error {
	logger := logging.Sub("watch")
	email, password := v.GetString("email"), v.GetString("password")
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}

	api := client.NewAPIClient(v.GetString("server"), nil)
	signIn := api.Login
	if v.GetBool("register") {
		signIn = api.Register
	}
	sess, err := signIn(ctx, email, password)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	opts := client.Options{
		PushEnabled: client.DiscoverPush(ctx, api),
		Data:        api.WithToken(sess.Token),
		OnChange: func(m client.Mirror) {
			handle := ""
			if m.Profile != nil {
				handle = m.Profile.Handle()
			}
			logger.Info("mirror changed",
				"username", handle,
				"links", len(m.Links),
				"socialLinks", len(m.SocialLinks))
		},
		Logger: logger,
	}
	if opts.PushEnabled {
		tr, err := client.NewWSTransport(api.BaseURL(), client.WSTransportOptions{})
		if err != nil {
			return err
		}
		opts.Transport = tr
	}

	sync := client.New(opts)
	if err := sync.Start(ctx, sess.Identity()); err != nil {
		return fmt.Errorf("start sync: %w", err)
	}
	defer sync.Stop()
	logger.Info("watching", "userId", sess.UserID, "push", opts.PushEnabled)

	<-ctx.Done()
	return nil
}
