package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/itmstools/itms_console/pkg/api"
	"github.com/itmstools/itms_console/pkg/session"
)

func LoginCmd() *cobra.Command {
	var (
		email         string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session for later commands",
		Example: heredoc.Doc(`
			$ itms login
			$ itms login --email admin@example.com
			$ echo "$ITMS_PASSWORD" | itms login --email admin@example.com --password-stdin
		`),
		Args: cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			creds := credentials{Email: strings.TrimSpace(email)}
			if passwordStdin {
				if creds.Email == "" {
					return errors.New("--password-stdin needs --email")
				}
				pw, err := readPasswordFrom(cmd.InOrStdin())
				if err != nil {
					return err
				}
				creds.Password = pw
			} else {
				if !stdinIsTerminal() {
					return errors.New("no terminal to prompt on; use --email with --password-stdin")
				}
				if err := creds.prompt(cmd.Context()); err != nil {
					return err
				}
			}
			if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
				return errors.New("email and password are required")
			}

			sess, err := session.Login(cmd.Context(), e.client, e.sessions, creds.Email, creds.Password)
			if err != nil {
				e.log.WithError(err).Warn("login failed")
				return fmt.Errorf("login failed: %s", api.UserMessage(err))
			}
			e.log.WithField("user", sess.Username).Info("signed in")
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", sess.Username, sess.Role)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func LogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			if err := e.sessions.End(cmd.Context()); err != nil {
				return fmt.Errorf("signing out: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		}),
	}
}

func WhoamiCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			sess, err := e.requireSession()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sess)
			}
			expires := "never"
			if !sess.ExpiresAt.IsZero() {
				expires = sess.ExpiresAt.Local().Format(timeLayout)
			}
			fmt.Fprintf(out, "%s <%s>\nrole:    %s\nsince:   %s\nexpires: %s\nserver:  %s\n",
				sess.Username, orDash(sess.Email), sess.Role,
				sess.StartedAt.Local().Format(timeLayout), expires, e.client.BaseURL())
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
