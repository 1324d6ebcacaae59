package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/repogate/repogate/config"
	"github.com/repogate/repogate/github"
	"github.com/repogate/repogate/internal/http/chi"
	"github.com/repogate/repogate/metrics"
	"github.com/repogate/repogate/provision"
	"github.com/repogate/repogate/provision/signature"
)

const TIMEOUT = 30 * time.Second

/* main wires the packages together: config, metrics, the GitHub adapter
 * behind the provisioning service, and the HTTP layer. Imports point only
 * downward: the entrypoint imports the business layer, which imports
 * nothing above it.
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	recorder, err := metrics.NewRecorder()
	if err != nil {
		fmt.Println(err)
		return
	}

	var secret *signature.Secret
	if cfg.DodoWebhookSecret != "" {
		parsed, err := signature.ParseSecret(cfg.DodoWebhookSecret)
		if err != nil {
			fmt.Println(err)
			return
		}
		secret = &parsed
	} else {
		fmt.Println("WARNING: DODO_WEBHOOK_SECRET not set; webhook deliveries will be accepted unverified")
	}

	var provisioner provision.UseCase
	if cfg.GithubConfigured() {
		var opts []github.Option
		if cfg.GithubAPIURL != "" {
			opts = append(opts, github.WithBaseURL(cfg.GithubAPIURL))
		}
		client := github.NewClient(cfg.GithubToken, cfg.GithubOwner, cfg.GithubRepo, opts...)
		provisioner = provision.NewService(client, client)
	} else {
		fmt.Println("WARNING: GitHub credentials not fully configured; deliveries will be acknowledged with a misconfiguration warning")
	}

	r := chi.Handlers(ctx, provisioner, secret, recorder)
	http.Handle("/", r)
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      http.DefaultServeMux,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	fmt.Printf("Listening on port %s\n", cfg.Port)
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		fmt.Println(err)
		return
	}
	err = <-errShutdown
	if err != nil {
		fmt.Println(err)
	}
	if err := recorder.Shutdown(context.Background()); err != nil {
		fmt.Println(err)
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("forcing closing the server")
	}
}
