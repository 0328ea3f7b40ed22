package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"chaincrawl/pkg/auth"
	"chaincrawl/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// Auth command flags
	authUserAgent string
	skipGuide     bool

	stdin = bufio.NewReader(os.Stdin)
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage per-host cookies",
	Long: `Manage cookies sent with requests to sites that need a signed-in visitor.

Cookies are stored per host and also apply to its subdomains. They are kept in:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation (` + auth.PassphraseEnv + `)
  - Environment variables CHAINCRAWL_COOKIE_<HOST>, read only

Never share your cookies or credential files!`,
}

// authSetCmd represents the auth set command
var authSetCmd = &cobra.Command{
	Use:   "set <host>",
	Short: "Store the Cookie header for a host",
	Long: `Store the Cookie header value for a host. You will be prompted for the value,
which is not echoed. Requests to the host and its subdomains carry it from then on.`,
	Example: `  # Interactive
  chaincrawl auth set example.com

  # Also override the User-Agent for this host
  chaincrawl auth set example.com --user-agent "Mozilla/5.0 ..."`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthSet,
}

// authListCmd represents the auth list command
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hosts with stored cookies",
	Long:  `List the hosts with stored cookies. Cookie values are masked.`,
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

// authRemoveCmd represents the auth remove command
var authRemoveCmd = &cobra.Command{
	Use:     "remove <host>",
	Aliases: []string{"rm"},
	Short:   "Remove the stored cookie for a host",
	Args:    cobra.ExactArgs(1),
	RunE:    runAuthRemove,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(authRemoveCmd)

	authSetCmd.Flags().StringVar(&authUserAgent, "user-agent", "", "User-Agent to send to this host instead of the configured one")
	authSetCmd.Flags().BoolVar(&skipGuide, "no-guide", false, "do not print the cookie extraction guide")
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return err
	}

	host := auth.NormalizeHost(args[0])
	if host == "" {
		ui.PrintError("Host is required")
		return errors.New("empty host")
	}

	if !skipGuide {
		auth.ShowCookieGuide(os.Stdout, host)
	}

	if existing, _ := manager.Retrieve(host); existing != nil {
		fmt.Printf("\n⚠️  A cookie for '%s' is already stored. Replace it? (y/N): ", host)
		input, _ := stdin.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("\n🔐 Cookie header value (hidden): ")
	cookie, err := readPassword()
	if err != nil {
		ui.PrintError("Failed to read cookie", err.Error())
		return err
	}
	cookie = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cookie), "Cookie:"))
	if cookie == "" || !strings.Contains(cookie, "=") {
		ui.PrintError("That doesn't look like a Cookie header", "expected name=value pairs")
		return auth.ErrInvalidCredentials
	}

	cred := &auth.Credential{
		Host:      host,
		Cookie:    cookie,
		UserAgent: authUserAgent,
	}
	if err := manager.Store(cred); err != nil {
		ui.PrintError("Failed to store cookie", err.Error())
		return err
	}

	masked := auth.SanitizeCredential(cred)
	ui.PrintSuccess(fmt.Sprintf("Cookie stored for %s", host))
	ui.PrintInfo("Cookie", masked.Cookie)
	if cred.UserAgent != "" {
		ui.PrintInfo("User-Agent", cred.UserAgent)
	}
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return err
	}

	creds, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list credentials", err.Error())
		return err
	}
	if len(creds) == 0 {
		fmt.Println("No stored cookies.")
		fmt.Println("\nTo add one, run:")
		fmt.Println("  chaincrawl auth set <host>")
		return nil
	}

	fmt.Printf("\n📋 Stored cookies (%d):\n\n", len(creds))
	for _, cred := range creds {
		masked := auth.SanitizeCredential(cred)
		fmt.Printf("  %s\n", ui.Cyan(masked.Host))
		fmt.Printf("     Cookie: %s\n", masked.Cookie)
		if masked.UserAgent != "" {
			fmt.Printf("     User-Agent: %s\n", masked.UserAgent)
		}
		if !masked.LastModified.IsZero() {
			fmt.Printf("     Updated: %s\n", masked.LastModified.Format("2006-01-02 15:04"))
		}
	}
	return nil
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return err
	}

	host := auth.NormalizeHost(args[0])
	if err := manager.Delete(host); err != nil {
		ui.PrintError("Failed to remove cookie", err.Error())
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Cookie removed for %s", host))
	return nil
}

// readPassword reads a secret from stdin without echoing
func readPassword() (string, error) {
	// Try to read without echo
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // New line after password
		if err == nil {
			return string(password), nil
		}
	}

	// Fallback to regular input
	input, err := stdin.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
