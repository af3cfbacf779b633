package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/upb/jaffa-explorer/apierrors"
	"github.com/upb/jaffa-explorer/client"
	"github.com/upb/jaffa-explorer/session"
)

// passwordEnv is read when --password is not given.
const passwordEnv = "JAFFA_PASSWORD"

// slotStatus is one role's line in whoami.
type slotStatus struct {
	Role      session.Role  `json:"role"`
	State     session.State `json:"state"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	UpdatedAt *time.Time    `json:"updated_at,omitempty"`
}

type whoami struct {
	Session  session.Session `json:"session"`
	RoleHint session.Role    `json:"role_hint"`
	Slots    []slotStatus    `json:"slots"`
}

func (c *cli) newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login <visitor|business|admin>",
		Short: "Sign in as a role",
		Long: `Sign in as a role and keep its tokens in the session store. Other roles'
slots are left alone. The password is taken from --password, then from
$JAFFA_PASSWORD, then from the first line of standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := session.ParseRole(args[0])
			if err != nil {
				return err
			}
			if email == "" {
				return errors.New("--email is required")
			}
			if password == "" {
				password = os.Getenv(passwordEnv)
			}
			if password == "" {
				password, err = readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}

			cred, err := c.deps.Client.Login(cmd.Context(), role, client.LoginCredentials{Email: email, Password: password})
			if err != nil {
				return err
			}
			sess, err := c.deps.Client.CurrentSession(cmd.Context())
			if err != nil {
				return err
			}
			out := struct {
				Role      session.Role    `json:"role"`
				ExpiresAt time.Time       `json:"expires_at"`
				Session   session.Session `json:"session"`
			}{role, cred.ExpiresAt(), sess}
			return c.print(cmd.OutOrStdout(), out, func(w io.Writer) error {
				fmt.Fprintf(w, "Signed in as %s.\n", role)
				if sess.Role != role {
					fmt.Fprintf(w, "Requests still act as %s (precedence).\n", sess.Role)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func (c *cli) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of every role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.deps.Client.Logout(cmd.Context()); err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), session.Anonymous, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, "Signed out.")
				return err
			})
		},
	}
}

func (c *cli) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the resolved session and every role slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store := c.deps.Store

			sess, err := c.deps.Client.CurrentSession(ctx)
			if err != nil {
				return err
			}
			hint, err := store.RoleHint(ctx)
			if err != nil {
				return err
			}

			out := whoami{Session: sess, RoleHint: hint}
			for _, role := range session.Roles {
				st, err := session.StateOf(ctx, store, role)
				if err != nil {
					return err
				}
				status := slotStatus{Role: role, State: st}
				if st == session.StateActive {
					cred, err := store.Get(ctx, role)
					if err != nil {
						return err
					}
					if exp := cred.ExpiresAt(); !exp.IsZero() {
						status.ExpiresAt = &exp
					}
					if !cred.UpdatedAt.IsZero() {
						updated := cred.UpdatedAt
						status.UpdatedAt = &updated
					}
				}
				out.Slots = append(out.Slots, status)
			}

			return c.print(cmd.OutOrStdout(), out, func(w io.Writer) error {
				if sess.Authenticated {
					fmt.Fprintf(w, "Signed in as %s.\n\n", sess.Role)
				} else {
					fmt.Fprint(w, "Not signed in.\n\n")
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ROLE\tSTATE\tACCESS EXPIRES")
				for _, s := range out.Slots {
					exp := "-"
					if s.ExpiresAt != nil {
						exp = s.ExpiresAt.Local().Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Role, s.State, exp)
				}
				return tw.Flush()
			})
		},
	}
}

func (c *cli) newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [role]",
		Short: "Exchange a role's refresh token for a new access token",
		Long:  "Refresh the given role, or the role of the current session when none is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			role, err := parseRoleArg(args, 0)
			if err != nil {
				return err
			}
			if role == session.RoleNone {
				sess, err := c.deps.Client.CurrentSession(ctx)
				if err != nil {
					return err
				}
				if !sess.Authenticated {
					return apierrors.SessionExpired(session.RoleNone, session.ErrCredentialNotFound)
				}
				role = sess.Role
			}

			cred, err := c.deps.Client.Refresh(ctx, role)
			if err != nil {
				return err
			}
			out := struct {
				Role      session.Role `json:"role"`
				ExpiresAt time.Time    `json:"expires_at"`
			}{role, cred.ExpiresAt()}
			return c.print(cmd.OutOrStdout(), out, func(w io.Writer) error {
				if out.ExpiresAt.IsZero() {
					_, err := fmt.Fprintf(w, "Refreshed %s.\n", role)
					return err
				}
				_, err := fmt.Fprintf(w, "Refreshed %s, access token expires %s.\n", role, out.ExpiresAt.Local().Format(time.RFC3339))
				return err
			})
		},
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no password given")
	}
	return line, nil
}
