// Package cmd wires the trigger adapters: the interactive and flag-driven
// provision command, the remote dispatch command, and the validate command.
package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/platformeng/infrarepo/build"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func Main() error {
	var rootCmd = &cobra.Command{
		Use:     "infrarepo",
		Short:   "Provision and validate self-service infrastructure repositories",
		Version: build.Version(),
	}
	rootCmd.AddCommand(NewCmdProvision())
	rootCmd.AddCommand(NewCmdDispatch())
	rootCmd.AddCommand(NewCmdValidate())
	ctx := newSignalContext()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return err
	}
	return nil
}

func newSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		cancel()
	}()

	return ctx
}

func runE(fn func(context.Context) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd.Context()); err != nil {
			logrus.Error(err)
			return err
		}

		return nil
	}
}
