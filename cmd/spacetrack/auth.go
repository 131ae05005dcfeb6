package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"spacetrack/pkg/auth"
	"spacetrack/pkg/logger"
	"spacetrack/pkg/ui"
)

var (
	verifyLogin bool
	logoutAll   bool
)

// stdin is shared by every prompt so buffered input is not lost between them
var stdin = bufio.NewReader(os.Stdin)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage catalog credentials",
	Long: `Manage stored Space-Track credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - SPACETRACK_IDENTITY and SPACETRACK_PASSWORD environment variables

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [identity]",
	Short: "Store catalog credentials securely",
	Long: `Store a Space-Track login in the system keychain or encrypted file.

You will be prompted for the account identity (your e-mail) if not given,
then for the password. With --verify the login is tried against the
catalog before it is saved.`,
	Example: `  # Interactive login
  spacetrack auth login

  # Login with identity and check it works
  spacetrack auth login you@example.com --verify`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [identity]",
	Short: "Remove stored credentials",
	Long: `Remove stored credentials.

If no identity is provided, you will be shown a list of stored accounts
to choose from.`,
	Example: `  spacetrack auth logout you@example.com
  spacetrack auth logout --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// switchCmd represents the auth switch command
var switchCmd = &cobra.Command{
	Use:   "switch [identity]",
	Short: "Make a stored account the default",
	Long: `Make a stored account the one used when no --identity is given.

The most recently saved account is the default, so switching re-saves the
chosen account.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSwitch,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(switchCmd)

	loginCmd.Flags().BoolVar(&verifyLogin, "verify", false, "log in to the catalog before saving")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored account")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if !quiet {
		auth.ShowLoginGuide(os.Stderr)
		fmt.Fprintln(os.Stderr)
	}

	var id string
	if len(args) > 0 {
		id = strings.TrimSpace(args[0])
	}
	if id == "" {
		id, err = prompt("🛰  Identity (e-mail): ")
		if err != nil {
			return fmt.Errorf("failed to read identity: %w", err)
		}
	}
	if id == "" {
		return errors.New("identity is required")
	}

	if existing, _ := manager.Retrieve(id); existing != nil {
		if !confirm(fmt.Sprintf("⚠️  Account '%s' already exists. Update password? (y/N): ", id)) {
			return nil
		}
	}

	fmt.Fprint(os.Stderr, "🔐 Password: ")
	password, err := readPassword()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return errors.New("password is required")
	}

	account := &auth.Account{
		Identity:     id,
		Password:     password,
		LastModified: time.Now(),
	}

	if verifyLogin {
		if err := testCredentials(account); err != nil {
			return fmt.Errorf("login rejected, nothing saved: %w", err)
		}
		ui.PrintSuccess("Login verified")
	}

	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	ui.PrintSuccess("Account saved: " + id)
	fmt.Fprintln(os.Stderr, "\n📖 Try it:")
	fmt.Fprintln(os.Stderr, "   $ spacetrack query gp --where NORAD_CAT_ID=25544 --format 3le")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if logoutAll {
		if !confirm("Remove ALL accounts? This cannot be undone! (y/N): ") {
			return nil
		}
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("failed to remove all accounts: %w", err)
		}
		ui.PrintSuccess("All accounts removed")
		return nil
	}

	var id string
	if len(args) > 0 {
		id = args[0]
	} else {
		id, err = chooseAccount(manager, "Select account to remove:")
		if err != nil || id == "" {
			return err
		}
	}

	if err := manager.Delete(id); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}
	ui.PrintSuccess("Account removed: " + id)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'spacetrack auth login' to add one")
		return nil
	}

	fmt.Println(renderAccounts(accounts))
	return nil
}

func runSwitch(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var id string
	if len(args) > 0 {
		id = args[0]
	} else {
		id, err = chooseAccount(manager, "Select account:")
		if err != nil || id == "" {
			return err
		}
	}

	account, err := manager.Retrieve(id)
	if err != nil {
		return fmt.Errorf("account not found: %s", id)
	}
	account.LastModified = time.Now()
	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	ui.PrintSuccess("Default account: " + id)
	return nil
}

// renderAccounts lists accounts with masked passwords, default first.
func renderAccounts(accounts []*auth.Account) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"", "Identity", "Password", "Last Modified"})
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		mark := ""
		if i == 0 {
			mark = "*"
		}
		t.AppendRow(table.Row{
			mark,
			sanitized.Identity,
			sanitized.Password,
			sanitized.LastModified.Format("2006-01-02 15:04:05"),
		})
	}
	return t.Render()
}

// chooseAccount shows a numbered menu of stored accounts. An empty identity
// means the user cancelled.
func chooseAccount(manager *auth.Manager, title string) (string, error) {
	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		return "", errors.New("no stored accounts found")
	}

	fmt.Fprintln(os.Stderr, title)
	for i, account := range accounts {
		fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, account.Identity)
	}
	fmt.Fprintf(os.Stderr, "  0. Cancel\n\n")

	input, err := prompt("Choice: ")
	if err != nil {
		return "", err
	}

	var choice int
	fmt.Sscanf(input, "%d", &choice)
	if choice == 0 {
		return "", nil
	}
	if choice < 0 || choice > len(accounts) {
		return "", errors.New("invalid choice")
	}
	return accounts[choice-1].Identity, nil
}

func prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	input, err := stdin.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func confirm(label string) bool {
	input, _ := prompt(label)
	return strings.HasPrefix(strings.ToLower(input), "y")
}

// readPassword reads a password from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err == nil {
			return string(password), nil
		}
	}

	// Fallback to regular input
	return prompt("")
}

// testCredentials logs in and out once with the account.
func testCredentials(account *auth.Account) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	cfg.SpaceTrack.Identity = account.Identity
	cfg.SpaceTrack.Password = account.Password

	s, err := newSession(cfg, logger.GetLogger())
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SpaceTrack.Timeout+5*time.Second)
	defer cancel()
	return s.client.Login(ctx)
}
