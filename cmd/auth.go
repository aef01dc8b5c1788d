package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-picker/internal/credential"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Google Photos authorization",
}

var authURLCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the Google consent URL",
	Long: `Print the Google consent URL. After granting access, Google redirects to
GOOGLE_REDIRECT_URL with a code; pass it to "photo-picker auth exchange".`,
	Args: cobra.NoArgs,
	RunE: runAuthURL,
}

var authExchangeCmd = &cobra.Command{
	Use:   "exchange <code>",
	Short: "Exchange an authorization code for a stored credential",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthExchange,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored credential",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the access token with the stored refresh token",
	Args:  cobra.NoArgs,
	RunE:  runAuthRefresh,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credential",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authURLCmd, authExchangeCmd, authStatusCmd, authRefreshCmd, authLogoutCmd)

	authURLCmd.Flags().String("state", "", "State value to embed in the URL (random when empty)")
	authStatusCmd.Flags().Bool("json", false, "Output as JSON")
}

func runAuthURL(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	state := mustGetString(cmd, "state")
	if state == "" {
		state = uuid.New().String()
	}

	fmt.Println("Open this URL in a browser and grant access:")
	fmt.Println()
	fmt.Println(a.oauth.BuildAuthorizationURL(state, ""))
	fmt.Println()
	fmt.Printf("State:        %s\n", state)
	fmt.Printf("Redirect URI: %s\n", a.oauth.RedirectURL(""))
	return nil
}

func runAuthExchange(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	cred, err := a.oauth.ExchangeCode(cmd.Context(), args[0], a.oauth.RedirectURL(""))
	if err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}

	fmt.Println("Authorization successful")
	printCredential(cred, true)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	cred := a.creds.Get()
	valid := a.creds.IsValid()

	if mustGetBool(cmd, "json") {
		status := map[string]any{"authenticated": valid}
		if cred != nil {
			status["expires_at"] = cred.ExpiresAt
			status["scope"] = cred.Scope
			status["has_refresh_token"] = cred.RefreshToken != ""
		}
		return outputJSON(status)
	}

	if cred == nil {
		fmt.Println("Not authenticated. Run \"photo-picker auth url\" to start.")
		return nil
	}
	printCredential(cred, valid)
	return nil
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	cred, err := a.oauth.Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	fmt.Println("Access token refreshed")
	printCredential(cred, true)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.oauth.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	fmt.Println("Credential removed")
	return nil
}

func printCredential(cred *credential.Credential, valid bool) {
	state := "valid"
	if !valid {
		state = "expired"
	}
	fmt.Printf("  Status:        %s\n", state)
	fmt.Printf("  Expires:       %s (%s)\n", cred.ExpiresAt.Local().Format(time.RFC1123), time.Until(cred.ExpiresAt).Round(time.Second))
	fmt.Printf("  Scope:         %s\n", cred.Scope)
	fmt.Printf("  Refresh token: %t\n", cred.RefreshToken != "")
}

// outputJSON writes data as indented JSON to stdout.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
