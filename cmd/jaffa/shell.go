package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/jaffa-explorer/session"
	"github.com/upb/jaffa-explorer/shell"
)

type routeInfo struct {
	Pattern string       `json:"pattern"`
	Page    string       `json:"page"`
	Access  string       `json:"access"`
	Role    session.Role `json:"role,omitempty"`
	Login   string       `json:"login,omitempty"`
}

type navigationInfo struct {
	Kind      shell.NavigationKind `json:"kind"`
	Requested string               `json:"requested"`
	Path      string               `json:"path"`
	Page      string               `json:"page,omitempty"`
	Params    map[string]string    `json:"params,omitempty"`
	Session   session.Session      `json:"session"`
}

type sessionChange struct {
	Event   session.EventKind `json:"event"`
	Role    session.Role      `json:"role,omitempty"`
	Session session.Session   `json:"session"`
}

func (c *cli) newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the front-end pages and who may open them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out []routeInfo
			for _, r := range c.deps.Shell.Routes().Routes() {
				info := routeInfo{Pattern: r.Pattern, Page: r.Page, Access: r.Access.String()}
				if r.Access == shell.AccessRole {
					info.Role = r.Role
				}
				if r.Access != shell.AccessPublic {
					info.Login = r.LoginPath()
				}
				out = append(out, info)
			}
			return c.print(cmd.OutOrStdout(), out, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PATH\tPAGE\tACCESS\tLOGIN")
				for _, r := range out {
					access := r.Access
					if r.Role != "" {
						access = string(r.Role)
					}
					login := r.Login
					if login == "" {
						login = "-"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Pattern, r.Page, access, login)
				}
				return tw.Flush()
			})
		},
	}
}

func (c *cli) newNavigateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "navigate <path>",
		Short: "Resolve a front-end path against the current session",
		Long: `Open a front-end path the way the shell would: the session is recomputed and
a page the session may not open redirects to the matching login page.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nav, err := c.deps.Shell.Navigate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := navigationInfo{
				Kind:      nav.Kind,
				Requested: nav.Requested,
				Path:      nav.Path,
				Page:      nav.Route.Page,
				Params:    nav.Params,
				Session:   nav.Session,
			}
			return c.print(cmd.OutOrStdout(), out, func(w io.Writer) error {
				switch nav.Kind {
				case shell.NavigationNotFound:
					fmt.Fprintf(w, "%s: page not found\n", nav.Requested)
				case shell.NavigationRedirect:
					fmt.Fprintf(w, "%s: sign-in required, redirected to %s (%s)\n", nav.Requested, nav.Path, nav.Route.Page)
				default:
					fmt.Fprintf(w, "%s: %s\n", nav.Path, nav.Route.Page)
				}
				if len(nav.Params) > 0 {
					keys := make([]string, 0, len(nav.Params))
					for k := range nav.Params {
						keys = append(keys, k)
					}
					sort.Strings(keys)
					parts := make([]string, 0, len(keys))
					for _, k := range keys {
						parts = append(parts, k+"="+nav.Params[k])
					}
					fmt.Fprintf(w, "params: %s\n", strings.Join(parts, " "))
				}
				_, err := fmt.Fprintf(w, "session: %s\n", describeSession(nav.Session))
				return err
			})
		},
	}
}

func (c *cli) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the resolved session whenever the store changes",
		Long: `Follow the session store and print the resolved session after every change,
including logins, logouts and refreshes made by other jaffa processes sharing
the store. Stops on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			var mu sync.Mutex
			emit := func(change sessionChange) {
				mu.Lock()
				defer mu.Unlock()
				_ = c.print(w, change, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s: %s\n", change.Event, describeSession(change.Session))
					return err
				})
			}

			cancel := c.deps.Store.Subscribe(func(ev session.Event) {
				sess, err := c.deps.Client.CurrentSession(ctx)
				if err != nil {
					c.deps.Logger.Warn("failed to resolve session", zap.Error(err))
					return
				}
				emit(sessionChange{Event: ev.Kind, Role: ev.Role, Session: sess})
			})
			defer cancel()

			if err := c.deps.Start(ctx); err != nil {
				return err
			}

			sess, err := c.deps.Client.CurrentSession(ctx)
			if err != nil {
				return err
			}
			emit(sessionChange{Event: "current", Session: sess})

			<-ctx.Done()
			return nil
		},
	}
}

func describeSession(s session.Session) string {
	if !s.Authenticated {
		return "not signed in"
	}
	return "signed in as " + string(s.Role)
}
