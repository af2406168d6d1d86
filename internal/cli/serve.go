package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/runoshun/boardsync/internal/server"
)

func newServeCommand(rt *runtime) *cobra.Command {
	var opts struct {
		Addr  string
		Root  string
		Repos []string
		Auth  server.AuthConfig
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local contents API backed by git repositories",
		Long: `Run a development contents API that stores board documents in bare git
repositories under --root (one per owner/repo). Point a client at it with
[remote] api_url = "http://<addr>" in config.toml.

Requests must carry a bearer token from --token or a JWT signed with
--jwt-secret (see 'boardsync serve token'). With neither set, every request
is accepted.

Examples:
  boardsync serve --repo acme/board --token dev-token
  boardsync serve --addr 127.0.0.1:9000 --repo acme/board --jwt-secret s3cret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root := opts.Root
			if root == "" {
				root = filepath.Join(rt.c.Config.DataDir, "repos")
			}
			handler, err := server.New(server.Config{
				Root:   root,
				Repos:  opts.Repos,
				Auth:   opts.Auth,
				Logger: rt.c.Logger,
			})
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", opts.Addr)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", root, ln.Addr())
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8080", "Listen address")
	cmd.Flags().StringVar(&opts.Root, "root", "", "Repository root (default <data-dir>/repos)")
	cmd.Flags().StringArrayVar(&opts.Repos, "repo", nil, "Create owner/repo at startup (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Auth.Tokens, "token", nil, "Accepted bearer token (repeatable)")
	cmd.Flags().StringVar(&opts.Auth.JWTSecret, "jwt-secret", "", "Accept HS256 JWTs signed with this secret")

	cmd.AddCommand(newServeTokenCommand(rt))
	return cmd
}

func newServeTokenCommand(rt *runtime) *cobra.Command {
	var secret, subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a JWT credential for a server started with --jwt-secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if subject == "" {
				subject = rt.actor()
			}
			if subject == "" {
				return errors.New("--subject or --actor is required")
			}
			token, err := server.MintToken(secret, subject, ttl, rt.c.Clock.Now())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "jwt-secret", "", "Signing secret")
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject (default --actor)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Lifetime (0 = no expiry)")
	return cmd
}
