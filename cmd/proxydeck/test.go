package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/proxydeck/internal/model"
)

var testUsername string

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test the provider credentials",
	Long: `Send one request through the provider gateway with the bare credentials
and print the observed IP and location.

Uses the stored credentials unless --username is given, in which case the
password is prompted for and nothing is stored.

Examples:
  proxydeck test
  proxydeck test -u alice123`,
	RunE: runTest,
}

func init() {
	testCmd.Flags().StringVarP(&testUsername, "username", "u", "", "Provider username (prompts for password)")
}

func runTest(cmd *cobra.Command, args []string) error {
	ws, closeDB, err := workspaceFor(testUsername)
	if err != nil {
		return err
	}
	defer closeDB()

	status := ws.TestConnection(context.Background())
	printConnection(status)

	if status.State != model.ConnectionOK {
		return fmt.Errorf("connection test failed")
	}
	return nil
}
