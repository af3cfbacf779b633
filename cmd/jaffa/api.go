package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/upb/jaffa-explorer/apierrors"
	"github.com/upb/jaffa-explorer/client"
	"github.com/upb/jaffa-explorer/session"
)

func (c *cli) newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile [role]",
		Short: "Show the profile of a signed-in role",
		Long: `Show the visitor or business profile, or the admin dashboard, for the given
role or the role of the current session.`,
		Args: cobra.MaximumNArgs(1),
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

			svc := c.deps.Services
			switch role {
			case session.RoleVisitor:
				p, err := svc.Visitors.Profile(ctx)
				if err != nil {
					return err
				}
				return c.print(cmd.OutOrStdout(), p, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s <%s>\nTokens: %d\n", p.Username, p.Email, p.Tokens)
					return err
				})
			case session.RoleBusiness:
				p, err := svc.Businesses.Profile(ctx)
				if err != nil {
					return err
				}
				return c.print(cmd.OutOrStdout(), p, nil)
			default:
				stats, err := svc.Admin.Dashboard(ctx)
				if err != nil {
					return err
				}
				return c.print(cmd.OutOrStdout(), stats, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Users: %d (visitors %d, businesses %d)\nPosts: %d\n",
						stats.TotalUsers, stats.TotalVisitors, stats.TotalBusinesses, stats.TotalPosts)
					return err
				})
			}
		},
	}
}

func (c *cli) newRequestCmd() *cobra.Command {
	var (
		data      string
		as        string
		anonymous bool
		query     []string
		fields    []string
	)

	cmd := &cobra.Command{
		Use:   "request <method> <path>",
		Short: "Send a raw request to the backend",
		Long: `Send a request relative to the API base URL and print the response body.

Without --as the token is chosen by precedence and a 401 is reported as is.
With --as the role's token is attached, and a 401 triggers one refresh and
one retry before the role's session is dropped.`,
		Example: `  jaffa request GET posts/
  jaffa request POST posts/ --as visitor -F content="Hello from the port" -F image=@port.jpg
  jaffa request PUT profile/visitor/ --as visitor --data '{"phone_number":"0500000000"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &client.Request{
				Method:    strings.ToUpper(args[0]),
				Path:      args[1],
				Anonymous: anonymous,
			}

			if len(query) > 0 {
				req.Query = url.Values{}
				for _, kv := range query {
					k, v, err := splitPair(kv)
					if err != nil {
						return err
					}
					req.Query.Add(k, v)
				}
			}
			switch {
			case data != "" && len(fields) > 0:
				return fmt.Errorf("--data and --field cannot be combined")
			case data != "":
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("--data is not valid JSON")
				}
				req.Body = json.RawMessage(data)
			case len(fields) > 0:
				form := client.NewForm()
				for _, kv := range fields {
					k, v, err := splitPair(kv)
					if err != nil {
						return err
					}
					if path, ok := strings.CutPrefix(v, "@"); ok {
						if err := form.AddFilePath(k, path); err != nil {
							return err
						}
						continue
					}
					form.Set(k, v)
				}
				req.Form = form
			}

			var (
				resp *client.Response
				err  error
			)
			if as != "" {
				if anonymous {
					return fmt.Errorf("--as and --anonymous cannot be combined")
				}
				role, perr := session.ParseRole(as)
				if perr != nil {
					return perr
				}
				resp, err = c.deps.Client.Authenticated(cmd.Context(), role, req, nil)
			} else {
				resp, err = c.deps.Client.Do(cmd.Context(), req, nil)
			}
			if err != nil {
				return err
			}
			return writeBody(cmd.OutOrStdout(), resp)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&data, "data", "d", "", "JSON request body")
	flags.StringArrayVarP(&fields, "field", "F", nil, "multipart form field key=value, or key=@path for a file (repeatable)")
	flags.StringArrayVarP(&query, "query", "q", nil, "query parameter key=value (repeatable)")
	flags.StringVar(&as, "as", "", "send as this role, refreshing once on 401")
	flags.BoolVar(&anonymous, "anonymous", false, "send without a token")
	return cmd
}

// writeBody prints a JSON body indented and anything else verbatim.
func writeBody(w io.Writer, resp *client.Response) error {
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		_, err := fmt.Fprintf(w, "%d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, resp.Body, "", "  "); err != nil {
		_, err := w.Write(resp.Body)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func splitPair(kv string) (string, string, error) {
	k, v, ok := strings.Cut(kv, "=")
	if !ok || k == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", kv)
	}
	return k, v, nil
}
