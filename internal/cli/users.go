package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List marketplace users",
	RunE:  runUsers,
}

var (
	signupName  string
	signupEmail string
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Register a marketplace account",
	Long: `Register a new account with the UniSale backend.

Examples:
  unichat signup --name "Alice" --email alice@stu.upes.ac.in`,
	RunE: runSignup,
}

func init() {
	signupCmd.Flags().StringVar(&signupName, "name", "", "display name (required)")
	signupCmd.Flags().StringVar(&signupEmail, "email", "", "university email (required)")
	_ = signupCmd.MarkFlagRequired("name")
	_ = signupCmd.MarkFlagRequired("email")
}

func runUsers(cmd *cobra.Command, args []string) error {
	users, err := marketClient().Users(context.Background())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users found.")
		return nil
	}

	fmt.Printf("Users (%d):\n\n", len(users))
	for _, u := range users {
		verifiedMark := ""
		if u.Verified != 0 {
			verifiedMark = " [verified]"
		}
		fmt.Printf("- %s <%s>%s\n", u.Name, u.Email, verifiedMark)
	}

	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	if err := marketClient().Signup(context.Background(), signupName, signupEmail); err != nil {
		return fmt.Errorf("signup: %w", err)
	}

	fmt.Printf("Signed up %s <%s>\n", signupName, signupEmail)
	return nil
}
