package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/user/proxydeck/internal/credentials"
	"github.com/user/proxydeck/internal/model"
	"github.com/user/proxydeck/internal/probes"
	"github.com/user/proxydeck/internal/provision"
	"github.com/user/proxydeck/internal/storage"
)

// Shared CLI output styles.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("46")).
		Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

func acquisitionOptions() provision.Options {
	return provision.Options{
		StopOnFirstFailure: cfg.Acquisition.StopOnFirstFailure,
		Concurrency:        cfg.Acquisition.Concurrency,
		MaxEndpoints:       cfg.Acquisition.MaxEndpoints,
	}
}

// openWorkspace builds a workspace over the sqlite credential store.
// The returned func closes the database.
func openWorkspace() (*provision.Workspace, func(), error) {
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store := credentials.NewStore(storage.NewKVStorage(db), credentials.NewMemoryKV())
	if _, err := store.Load(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	ws := provision.NewWorkspace(store, probes.NewProxyProbe(cfg.Provider), acquisitionOptions())
	return ws, func() { db.Close() }, nil
}

// openEphemeralWorkspace holds creds in memory only; durable storage is untouched.
func openEphemeralWorkspace(creds model.Credentials) (*provision.Workspace, error) {
	store := credentials.NewStore(credentials.NewMemoryKV(), credentials.NewMemoryKV())
	ws := provision.NewWorkspace(store, probes.NewProxyProbe(cfg.Provider), acquisitionOptions())
	creds.Persist = false
	if err := ws.SaveCredentials(creds); err != nil {
		return nil, fmt.Errorf("failed to set credentials: %w", err)
	}
	return ws, nil
}

// workspaceFor opens the stored workspace, or an ephemeral one when a
// username was given on the command line.
func workspaceFor(username string) (*provision.Workspace, func(), error) {
	if username == "" {
		return openWorkspace()
	}
	password, err := readPassword()
	if err != nil {
		return nil, nil, err
	}
	ws, err := openEphemeralWorkspace(model.Credentials{Username: username, Password: password})
	if err != nil {
		return nil, nil, err
	}
	return ws, func() {}, nil
}

// readPassword prompts without echo on a terminal, otherwise reads one line from stdin.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printConnection(s model.ConnectionStatus) {
	switch s.State {
	case model.ConnectionOK:
		fmt.Println(okStyle.Render("✓ " + s.Message))
	case model.ConnectionFailed:
		fmt.Println(failStyle.Render("✗ " + s.Message))
	default:
		fmt.Println(labelStyle.Render("not tested"))
	}
}
