package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/synapticlabs/synaptic/internal/api"
	"github.com/synapticlabs/synaptic/internal/config"
	"github.com/synapticlabs/synaptic/internal/gateway"
	"github.com/synapticlabs/synaptic/internal/insights"
	"github.com/synapticlabs/synaptic/internal/profile"
	"github.com/synapticlabs/synaptic/internal/render"
	"github.com/synapticlabs/synaptic/internal/session"
	"github.com/synapticlabs/synaptic/internal/supabase"
)

// app bundles the clients a command needs. Supabase pieces are nil when
// the managed service is not configured; commands that need auth check.
type app struct {
	cfg     *config.Config
	backend *api.Client
	sb      *supabase.Client
	session *session.Manager
	out     io.Writer
	r       *render.Renderer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{
		cfg:     cfg,
		backend: api.NewClient(cfg.Backend.URL),
		out:     cmd.OutOrStdout(),
	}
	a.r = render.New(a.out)

	if cfg.Supabase.URL != "" && cfg.Supabase.AnonKey != "" {
		sb, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.AnonKey)
		if err != nil {
			return nil, err
		}
		a.sb = sb
		a.session = session.NewManager(session.NewStore(config.SessionPath()), sb)
	}

	return a, nil
}

func (a *app) requireAuth(ctx context.Context) (*session.Session, error) {
	if a.session == nil {
		return nil, fmt.Errorf("auth service not configured; set supabase.url and supabase.anonKey in %s", config.ConfigPath())
	}
	s, err := a.session.Current(ctx)
	if err == session.ErrNotSignedIn {
		return nil, fmt.Errorf("not signed in; run 'synaptic login'")
	}
	return s, err
}

var rootCmd = &cobra.Command{
	Use:           "synaptic",
	Short:         "synaptic - personal AI knowledge assistant",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize the config file",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and sign-in state",
	RunE:  runStatus,
}

var (
	emailFlag    string
	passwordFlag string
	nameFlag     string
	codeFlag     string
	resendFlag   bool
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	RunE:  runSignup,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Confirm a signup with the emailed code",
	RunE:  runVerify,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store a session",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the session and clear local state",
	RunE:  runLogout,
}

var (
	messageFlag      string
	conversationFlag string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant (single message or REPL)",
	RunE:  runChat,
}

var categoryFlag string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show what the assistant has learned about you",
	RunE:  runDashboard,
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and prune stored memory facts",
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List raw memory facts",
	RunE:  runMemoryList,
}

var memoryDeleteCmd = &cobra.Command{
	Use:   "delete <fact-id>",
	Short: "Delete one memory fact",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryDelete,
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	RunE:  runConversationsList,
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a conversation transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsShow,
}

var conversationsRenameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Rename a conversation",
	Args:  cobra.ExactArgs(2),
	RunE:  runConversationsRename,
}

var unsetFlag bool

var conversationsFavouriteCmd = &cobra.Command{
	Use:   "favourite <id>",
	Short: "Mark a conversation as favourite",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsFavourite,
}

var conversationsArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsArchive,
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation and its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsDelete,
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the account profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the profile",
	RunE:  runProfileShow,
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update name, email, or password",
	RunE:  runProfileUpdate,
}

var avatarCmd = &cobra.Command{
	Use:   "avatar",
	Short: "Manage the profile picture",
}

var avatarUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a profile picture",
	Args:  cobra.ExactArgs(1),
	RunE:  runAvatarUpload,
}

var avatarRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the profile picture",
	RunE:  runAvatarRemove,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway (channels + scheduled digest)",
	RunE:  runServe,
}

func init() {
	signupCmd.Flags().StringVar(&emailFlag, "email", "", "Account email")
	signupCmd.Flags().StringVar(&passwordFlag, "password", "", "Account password")
	signupCmd.Flags().StringVar(&nameFlag, "name", "", "Display name")

	verifyCmd.Flags().StringVar(&emailFlag, "email", "", "Account email")
	verifyCmd.Flags().StringVar(&codeFlag, "code", "", "Verification code from the email")
	verifyCmd.Flags().BoolVar(&resendFlag, "resend", false, "Resend the verification code")

	loginCmd.Flags().StringVar(&emailFlag, "email", "", "Account email")
	loginCmd.Flags().StringVar(&passwordFlag, "password", "", "Account password")

	chatCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single message to send")
	chatCmd.Flags().StringVarP(&conversationFlag, "conversation", "c", "", "Conversation id to continue")

	dashboardCmd.Flags().StringVar(&categoryFlag, "category", "", "Only classify facts in this category")
	memoryListCmd.Flags().StringVar(&categoryFlag, "category", "", "Filter by category")

	conversationsFavouriteCmd.Flags().BoolVar(&unsetFlag, "unset", false, "Remove the favourite mark")
	conversationsArchiveCmd.Flags().BoolVar(&unsetFlag, "unset", false, "Restore from the archive")

	profileUpdateCmd.Flags().StringVar(&nameFlag, "name", "", "New display name")
	profileUpdateCmd.Flags().StringVar(&emailFlag, "email", "", "New email (sends a confirmation)")
	profileUpdateCmd.Flags().StringVar(&passwordFlag, "password", "", "New password")

	memoryCmd.AddCommand(memoryListCmd, memoryDeleteCmd)
	conversationsCmd.AddCommand(conversationsListCmd, conversationsShowCmd, conversationsRenameCmd,
		conversationsFavouriteCmd, conversationsArchiveCmd, conversationsDeleteCmd)
	avatarCmd.AddCommand(avatarUploadCmd, avatarRemoveCmd)
	profileCmd.AddCommand(profileShowCmd, profileUpdateCmd, avatarCmd)

	rootCmd.AddCommand(onboardCmd, statusCmd, signupCmd, verifyCmd, loginCmd, logoutCmd,
		chatCmd, dashboardCmd, memoryCmd, conversationsCmd, profileCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runOnboard(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "Config already exists: %s\n", cfgPath)
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s: set backend.url, supabase.url and supabase.anonKey\n", cfgPath)
	fmt.Fprintln(out, "  2. Run 'synaptic signup' or 'synaptic login'")
	fmt.Fprintln(out, "  3. Run 'synaptic chat -m \"Hello\"' to test")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	a, err := newApp(cmd)
	if err != nil {
		fmt.Fprintf(out, "Config: error (%v)\n", err)
		return nil
	}

	fmt.Fprintf(out, "Config: %s\n", config.ConfigPath())
	fmt.Fprintf(out, "Backend: %s\n", a.cfg.Backend.URL)
	if a.sb != nil {
		fmt.Fprintf(out, "Auth service: %s\n", a.cfg.Supabase.URL)
	} else {
		fmt.Fprintln(out, "Auth service: not configured")
	}
	fmt.Fprintf(out, "Telegram: enabled=%v\n", a.cfg.Channels.Telegram.Enabled)
	fmt.Fprintf(out, "WebUI: enabled=%v\n", a.cfg.Channels.WebUI.Enabled)
	fmt.Fprintf(out, "Digest: enabled=%v\n", a.cfg.Digest.Enabled)

	if a.session == nil {
		return nil
	}
	s, err := a.session.Current(cmd.Context())
	switch {
	case err == session.ErrNotSignedIn:
		fmt.Fprintln(out, "Signed in: no")
	case err != nil:
		fmt.Fprintf(out, "Signed in: session error (%v)\n", err)
	default:
		fmt.Fprintf(out, "Signed in: %s (%s)\n", s.Email, s.UserID)
	}
	return nil
}

// promptIfEmpty reads a value from stdin when the flag was not given.
func promptIfEmpty(cmd *cobra.Command, value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ", label)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		return "", fmt.Errorf("%s is required", strings.ToLower(label))
	}
	v := strings.TrimSpace(scanner.Text())
	if v == "" {
		return "", fmt.Errorf("%s is required", strings.ToLower(label))
	}
	return v, nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if a.sb == nil {
		return fmt.Errorf("auth service not configured; run 'synaptic onboard' first")
	}

	email, err := promptIfEmpty(cmd, emailFlag, "Email")
	if err != nil {
		return err
	}
	name, err := promptIfEmpty(cmd, nameFlag, "Name")
	if err != nil {
		return err
	}
	password, err := promptIfEmpty(cmd, passwordFlag, "Password")
	if err != nil {
		return err
	}

	if err := a.sb.SignUp(cmd.Context(), email, password, name); err != nil {
		return fmt.Errorf("sign up: %w", err)
	}
	fmt.Fprintf(a.out, "Account created. Check %s for a verification code, then run:\n", email)
	fmt.Fprintf(a.out, "  synaptic verify --email %s --code <code>\n", email)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if a.sb == nil {
		return fmt.Errorf("auth service not configured; run 'synaptic onboard' first")
	}

	email, err := promptIfEmpty(cmd, emailFlag, "Email")
	if err != nil {
		return err
	}

	if resendFlag {
		if err := a.sb.ResendOTP(cmd.Context(), email); err != nil {
			return fmt.Errorf("resend code: %w", err)
		}
		fmt.Fprintf(a.out, "Verification code resent to %s\n", email)
		return nil
	}

	code, err := promptIfEmpty(cmd, codeFlag, "Code")
	if err != nil {
		return err
	}

	auth, err := a.sb.VerifyOTP(cmd.Context(), email, code)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	if err := session.NewStore(config.SessionPath()).Save(session.FromAuth(auth)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Verified and signed in as %s\n", auth.User.Email)
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if a.sb == nil {
		return fmt.Errorf("auth service not configured; run 'synaptic onboard' first")
	}

	email, err := promptIfEmpty(cmd, emailFlag, "Email")
	if err != nil {
		return err
	}
	password, err := promptIfEmpty(cmd, passwordFlag, "Password")
	if err != nil {
		return err
	}

	auth, err := a.sb.SignIn(cmd.Context(), email, password)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	if err := session.NewStore(config.SessionPath()).Save(session.FromAuth(auth)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", auth.User.Email)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if a.session == nil {
		return fmt.Errorf("auth service not configured")
	}
	if err := a.session.SignOut(cmd.Context()); err != nil {
		fmt.Fprintf(a.out, "Signed out locally (revoke failed: %v)\n", err)
		return nil
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	sess, err := a.requireAuth(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	convID := conversationFlag

	ask := func(text string) (string, error) {
		resp, err := a.backend.Ask(ctx, api.AskRequest{
			UserID:         sess.UserID,
			Message:        text,
			ConversationID: convID,
		})
		if err != nil {
			return "", err
		}
		if resp.ConversationID != "" {
			convID = resp.ConversationID
		}
		return resp.Answer, nil
	}

	// Single message mode
	if messageFlag != "" {
		answer, err := ask(messageFlag)
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}
		fmt.Fprintln(a.out, answer)
		return nil
	}

	// REPL mode
	fmt.Fprintln(a.out, "synaptic chat (type 'exit' to quit)")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(a.out, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		answer, err := ask(input)
		if err != nil {
			a.r.Error(err)
			continue
		}
		a.r.Answer(answer)
	}
	return nil
}

func runDashboard(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	sess, err := a.requireAuth(cmd.Context())
	if err != nil {
		return err
	}

	facts, err := a.backend.Memories(cmd.Context(), sess.UserID, categoryFlag)
	if err != nil {
		return fmt.Errorf("fetch memories: %w", err)
	}

	sections := insights.Classify(facts, insights.DefaultRules())
	a.r.Dashboard(&sections)
	return nil
}

func runMemoryList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	sess, err := a.requireAuth(cmd.Context())
	if err != nil {
		return err
	}

	facts, err := a.backend.Memories(cmd.Context(), sess.UserID, categoryFlag)
	if err != nil {
		return fmt.Errorf("fetch memories: %w", err)
	}
	a.r.Memories(facts)
	return nil
}

func runMemoryDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	sess, err := a.requireAuth(cmd.Context())
	if err != nil {
		return err
	}

	if err := a.backend.DeleteMemory(cmd.Context(), args[0], sess.UserID); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	fmt.Fprintf(a.out, "Deleted memory %s\n", args[0])
	return nil
}

func runConversationsList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	sess, err := a.requireAuth(cmd.Context())
	if err != nil {
		return err
	}

	convs, err := a.backend.Conversations(cmd.Context(), sess.UserID)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	a.r.Conversations(convs)
	return nil
}

func runConversationsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if _, err := a.requireAuth(cmd.Context()); err != nil {
		return err
	}

	conv, err := a.backend.Conversation(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("fetch conversation: %w", err)
	}
	msgs, err := a.backend.Messages(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}
	a.r.Transcript(conv.Title, msgs)
	return nil
}

func runConversationsRename(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if _, err := a.requireAuth(cmd.Context()); err != nil {
		return err
	}

	title := args[1]
	if err := a.backend.UpdateConversation(cmd.Context(), args[0], api.ConversationPatch{Title: &title}); err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}
	fmt.Fprintf(a.out, "Renamed %s to %q\n", args[0], title)
	return nil
}

func runConversationsFavourite(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if _, err := a.requireAuth(cmd.Context()); err != nil {
		return err
	}

	fav := !unsetFlag
	if err := a.backend.UpdateConversation(cmd.Context(), args[0], api.ConversationPatch{IsFavourite: &fav}); err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if fav {
		fmt.Fprintf(a.out, "Favourited %s\n", args[0])
	} else {
		fmt.Fprintf(a.out, "Unfavourited %s\n", args[0])
	}
	return nil
}

func runConversationsArchive(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if _, err := a.requireAuth(cmd.Context()); err != nil {
		return err
	}

	archived := !unsetFlag
	if err := a.backend.UpdateConversation(cmd.Context(), args[0], api.ConversationPatch{IsArchived: &archived}); err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if archived {
		fmt.Fprintf(a.out, "Archived %s\n", args[0])
	} else {
		fmt.Fprintf(a.out, "Restored %s\n", args[0])
	}
	return nil
}

func runConversationsDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if _, err := a.requireAuth(cmd.Context()); err != nil {
		return err
	}

	if err := a.backend.DeleteConversation(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	fmt.Fprintf(a.out, "Deleted conversation %s\n", args[0])
	return nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	sess, err := a.requireAuth(cmd.Context())
	if err != nil {
		return err
	}

	p, err := profile.NewService(a.sb).Get(cmd.Context(), sess)
	if err != nil {
		return err
	}
	a.r.Profile(p)
	return nil
}

func runProfileUpdate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	sess, err := a.requireAuth(cmd.Context())
	if err != nil {
		return err
	}
	if nameFlag == "" && emailFlag == "" && passwordFlag == "" {
		return fmt.Errorf("nothing to update; pass --name, --email, or --password")
	}

	svc := profile.NewService(a.sb)
	ctx := cmd.Context()

	if nameFlag != "" {
		if err := svc.UpdateName(ctx, sess, nameFlag); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Name updated to %s\n", nameFlag)
	}
	if emailFlag != "" {
		if err := svc.UpdateEmail(ctx, sess, emailFlag); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Confirmation sent to %s\n", emailFlag)
	}
	if passwordFlag != "" {
		if err := svc.UpdatePassword(ctx, sess, passwordFlag); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Password updated")
	}
	return nil
}

func runAvatarUpload(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	sess, err := a.requireAuth(cmd.Context())
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read avatar file: %w", err)
	}

	url, err := profile.NewService(a.sb).UploadAvatar(cmd.Context(), sess, filepath.Base(args[0]), data)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Avatar uploaded: %s\n", url)
	return nil
}

func runAvatarRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	sess, err := a.requireAuth(cmd.Context())
	if err != nil {
		return err
	}

	if err := profile.NewService(a.sb).RemoveAvatar(cmd.Context(), sess); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Avatar removed")
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	sess, err := a.requireAuth(cmd.Context())
	if err != nil {
		return err
	}

	gw, err := gateway.New(a.cfg, sess)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	return gw.Run(cmd.Context())
}
