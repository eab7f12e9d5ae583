// Command relay-server runs the server side of the secure remote-access
// protocol: it accepts connections, drives each through HANDSHAKE, AUTH,
// and SERVICE, and serves shell, file-transfer, and port-forward requests
// until terminated.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/T1lman/ssh-sub001/lib/defaults"
	"github.com/T1lman/ssh-sub001/lib/logging"
	"github.com/T1lman/ssh-sub001/lib/server"
	"github.com/T1lman/ssh-sub001/lib/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	app := kingpin.New("relay-server", "Secure remote-access server.")
	port := app.Flag("port", "TCP port to listen on.").Default(fmt.Sprint(defaults.ServerPort)).Int()
	host := app.Flag("host", "Address to bind.").Default("0.0.0.0").String()
	keyDir := app.Flag("key-dir", "Directory holding the server's identity keypair.").Default("data/server/keys").String()
	usersFile := app.Flag("users", "Path to users.properties.").Default("data/server/users.properties").String()
	authKeysDir := app.Flag("auth-keys", "Directory of per-user authorized_keys.").Default("data/server/authorized_keys").String()
	filesRoot := app.Flag("files-root", "Root directory for per-user file transfer storage.").Default(defaults.FilesRootDir).String()
	maxConnections := app.Flag("max-connections", "Maximum concurrent sessions.").Default(fmt.Sprint(defaults.MaxConnections)).Int()
	timeoutMinutes := app.Flag("timeout", "HANDSHAKE/AUTH phase timeout, in minutes.").Default("1").Int()
	logLevel := app.Flag("log-level", "Log level (debug, info, warn, error).").Default("info").String()

	if _, err := app.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := logging.Init(logging.ForDaemon, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log := logging.NewEntry("relay-server")

	identity := store.NewFileIdentity(*keyDir, "server_rsa_key")
	userStore, err := store.NewPropertiesUserStore(*usersFile, *authKeysDir)
	if err != nil {
		log.WithError(err).Error("failed to load user store")
		return 1
	}

	srv := server.New(server.Config{
		ListenAddr:     fmt.Sprintf("%s:%d", *host, *port),
		Identity:       identity,
		Store:          userStore,
		FilesRoot:      *filesRoot,
		MaxConnections: *maxConnections,
		Timeout:        time.Duration(*timeoutMinutes) * time.Minute,
		Log:            log,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.WithField("addr", fmt.Sprintf("%s:%d", *host, *port)).Info("listening")
	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		var bindErr *server.BindError
		if errors.As(err, &bindErr) {
			log.WithError(err).Error("failed to bind")
			return 2
		}
		log.WithError(err).Error("server stopped")
		return 1
	}
	return 0
}
