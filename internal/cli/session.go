package cli

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"learnsync/internal/engine"
	"learnsync/internal/model"
	"learnsync/internal/store"

	"github.com/spf13/cobra"
)

type credentialFlags struct {
	username      string
	password      string
	passwordStdin bool
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.username, "username", "", "Portal username (default: the saved one)")
	cmd.Flags().StringVar(&f.password, "password", envOr("LEARNSYNC_PASSWORD", ""), "Portal password")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "Read the password from the first line of stdin")
}

func (f *credentialFlags) resolve(in io.Reader) (string, string, error) {
	password := f.password
	if f.passwordStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", err
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if (f.username == "") != (password == "") {
		return "", "", errors.New("--username and a password must be given together")
	}
	return f.username, password, nil
}

type loginResult struct {
	Username string         `json:"username"`
	User     model.UserInfo `json:"user"`
}

func newLoginCmd(app *App) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a username and password (or the saved credential)",
		Args:  cobra.NoArgs,
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			username, password, err := creds.resolve(cmd.InOrStdin())
			if err != nil {
				return err
			}
			cred, err := e.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			return writeOut(cmd, app, loginResult{Username: cred.Username, User: e.Snapshot().User.Info})
		}),
	}
	creds.register(cmd)
	return cmd
}

func newSSOCmd(app *App) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "sso",
		Short: "Sign in through the identity provider's page in a browser",
		Long: strings.TrimSpace(`
Opens the identity provider's login page in Chrome, fills in the credential
and completes the sign-on once the page hands over to the portal. Use this when
"login" reports that the portal wants a browser sign-on.

The captured fields are not saved, so the sign-on lasts for this command only.
Pass --sso to sync or submit to sign on again when they need a session.
`),
		Args: cobra.NoArgs,
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			username, password, err := creds.resolve(cmd.InOrStdin())
			if err != nil {
				return err
			}
			cred, err := e.LoginSSO(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			return writeOut(cmd, app, loginResult{Username: cred.Username, User: e.Snapshot().User.Info})
		}),
	}
	creds.register(cmd)
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the credential and all synced content (settings are kept)",
		Args:  cobra.NoArgs,
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			if err := e.Logout(cmd.Context()); err != nil {
				return err
			}
			return writeOut(cmd, app, map[string]any{"loggedOut": true})
		}),
	}
}

type kindStatus struct {
	Items  int    `json:"items"`
	Unread int    `json:"unread"`
	Error  string `json:"error,omitempty"`
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved account and what has been synced",
		Args:  cobra.NoArgs,
		RunE: withEngine(app, func(cmd *cobra.Command, args []string, e *engine.Engine) error {
			st := e.Snapshot()
			return writeOut(cmd, app, map[string]any{
				"dataDir":       app.cfg.DataDir,
				"username":      st.Auth.Username,
				"hasCredential": !st.Auth.Credential().Empty(),
				"user":          st.User.Info,
				"semester":      st.Semesters.Active(),
				"courses":       len(st.Courses.Items),
				"hiddenCourses": st.Courses.Hidden.Len(),
				"notices":       statusOf(st, model.KindNotice, len(st.Notices.Items)),
				"assignments":   statusOf(st, model.KindAssignment, len(st.Assignments.Items)),
				"files":         statusOf(st, model.KindFile, len(st.Files.Items)),
			})
		}),
	}
}

func statusOf(st store.State, kind model.Kind, n int) kindStatus {
	return kindStatus{Items: n, Unread: st.Sets(kind).Unread.Len(), Error: st.ContentError(kind)}
}
