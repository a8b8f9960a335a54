package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/proxydeck/internal/model"
)

var credsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Manage stored provider credentials",
	Long: `Show, set, or clear the provider credentials kept in the local database.

The password is never printed.`,
}

var credsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored username",
	RunE:  runCredsShow,
}

var credsSetCmd = &cobra.Command{
	Use:   "set <username>",
	Short: "Store credentials (prompts for the password)",
	Long: `Store provider credentials in the local database so the dashboard,
the daemon and other commands can use them.

The password is prompted for on a terminal, or read from the first line
of stdin when piped:

  echo "$PASSWORD" | proxydeck creds set alice123`,
	Args: cobra.ExactArgs(1),
	RunE: runCredsSet,
}

var credsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove stored credentials",
	RunE:  runCredsClear,
}

func init() {
	credsCmd.AddCommand(credsShowCmd)
	credsCmd.AddCommand(credsSetCmd)
	credsCmd.AddCommand(credsClearCmd)
}

func runCredsShow(cmd *cobra.Command, args []string) error {
	ws, closeDB, err := openWorkspace()
	if err != nil {
		return err
	}
	defer closeDB()

	creds := ws.Credentials()

	fmt.Println(titleStyle.Render("Credentials"))
	if creds.Username == "" {
		fmt.Println(labelStyle.Render("No credentials stored"))
		return nil
	}

	password := "not set"
	if creds.Password != "" {
		password = "stored"
	}
	fmt.Printf("%s %s\n", labelStyle.Render("Username:"), valueStyle.Render(creds.Username))
	fmt.Printf("%s %s\n", labelStyle.Render("Password:"), valueStyle.Render(password))
	return nil
}

func runCredsSet(cmd *cobra.Command, args []string) error {
	password, err := readPassword()
	if err != nil {
		return err
	}

	creds := model.Credentials{Username: args[0], Password: password, Persist: true}
	if !creds.Complete() {
		return &model.ValidationError{Message: "username and password are required"}
	}

	ws, closeDB, err := openWorkspace()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := ws.SaveCredentials(creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Printf("Credentials stored for %s\n", valueStyle.Render(creds.Username))
	return nil
}

func runCredsClear(cmd *cobra.Command, args []string) error {
	ws, closeDB, err := openWorkspace()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := ws.ClearCredentials(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	fmt.Println("Credentials cleared")
	return nil
}
