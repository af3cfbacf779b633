package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/upb/jaffa-explorer/apierrors"
	"github.com/upb/jaffa-explorer/app"
	"github.com/upb/jaffa-explorer/config"
	"github.com/upb/jaffa-explorer/session"
)

// Output formats.
const (
	outputText = "text"
	outputJSON = "json"
)

// globalOptions are the persistent flags. Empty values keep the environment's
// configuration.
type globalOptions struct {
	baseURL     string
	store       string
	sessionFile string
	precedence  string
	logLevel    string
	output      string
}

func (o globalOptions) apply(cfg *config.Config) {
	if o.baseURL != "" {
		cfg.API.BaseURL = o.baseURL
	}
	if o.store != "" {
		cfg.Session.Store = strings.ToLower(o.store)
	}
	if o.sessionFile != "" {
		cfg.Session.File = o.sessionFile
	}
	if o.logLevel != "" {
		cfg.Observability.LogLevel = o.logLevel
	}
	if o.precedence != "" {
		if p, err := session.ParsePrecedence(o.precedence); err == nil {
			cfg.API.Precedence = p
		}
	}
}

// opener builds the dependencies a command runs against.
type opener func(ctx context.Context, opts globalOptions) (*app.Dependencies, error)

// cli is the state shared by every command of one invocation.
type cli struct {
	open opener
	opts globalOptions
	deps *app.Dependencies
}

func newCLI(open opener) *cli {
	return &cli{open: open}
}

// execute runs one invocation and always releases the dependencies it
// opened, including when the command fails.
func (c *cli) execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := c.close(context.Background()); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "jaffa",
		Short: "Jaffa Explorer session and API client",
		Long: `jaffa signs in to the Jaffa Explorer backend as a visitor, a business or an
admin, keeps each role's tokens in the configured session store, and sends
authenticated requests with automatic token refresh.

Configuration comes from the environment (and .env): API_BASE_URL,
SESSION_STORE, SESSION_FILE, SESSION_PRECEDENCE, LOG_LEVEL, LOG_FORMAT.
Flags override it for one invocation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.opts.output != outputText && c.opts.output != outputJSON {
				return fmt.Errorf("unknown output format %q", c.opts.output)
			}
			if c.opts.precedence != "" {
				if _, err := session.ParsePrecedence(c.opts.precedence); err != nil {
					return err
				}
			}
			deps, err := c.open(cmd.Context(), c.opts)
			if err != nil {
				return err
			}
			c.deps = deps
			return nil
		},
	}

	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.baseURL, "base-url", "", "backend API base URL (default from API_BASE_URL)")
	flags.StringVar(&c.opts.store, "store", "", "session store: memory, file, sql or redis")
	flags.StringVar(&c.opts.sessionFile, "session-file", "", "session file for the file store")
	flags.StringVar(&c.opts.precedence, "precedence", "", "role precedence: visitor-first, admin-first or a comma list")
	flags.StringVar(&c.opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVarP(&c.opts.output, "output", "o", outputText, "output format: text or json")

	root.AddCommand(
		c.newLoginCmd(),
		c.newLogoutCmd(),
		c.newWhoamiCmd(),
		c.newRefreshCmd(),
		c.newProfileCmd(),
		c.newRequestCmd(),
		c.newRoutesCmd(),
		c.newNavigateCmd(),
		c.newWatchCmd(),
	)
	return root
}

func (c *cli) close(ctx context.Context) error {
	if c.deps == nil {
		return nil
	}
	deps := c.deps
	c.deps = nil
	return deps.Close(ctx)
}

// print writes v as indented JSON or, in text mode, calls text.
func (c *cli) print(w io.Writer, v any, text func(io.Writer) error) error {
	if c.opts.output == outputJSON || text == nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}

// describeError turns a failed command into one line for stderr.
func describeError(err error) string {
	apiErr, ok := apierrors.As(err)
	if !ok {
		return "error: " + err.Error()
	}

	var b strings.Builder
	b.WriteString(apierrors.UserMessage(err))
	fields := make([]string, 0, len(apiErr.Fields))
	for field := range apiErr.Fields {
		if field != "detail" && field != "message" {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Fprintf(&b, "\n  %s: %s", field, strings.Join(apiErr.Fields[field], " "))
	}
	if errors.Is(err, apierrors.ErrSessionExpired) && apiErr.Role.Valid() {
		fmt.Fprintf(&b, "\nsign in again with: jaffa login %s", apiErr.Role)
	}
	return b.String()
}

func parseRoleArg(args []string, i int) (session.Role, error) {
	if len(args) <= i {
		return session.RoleNone, nil
	}
	return session.ParseRole(args[i])
}
