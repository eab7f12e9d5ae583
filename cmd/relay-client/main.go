// Command relay-client connects to a relay-server, authenticates, and runs
// a single shell command (the "run" subcommand, its only subcommand).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/T1lman/ssh-sub001/lib/client"
	"github.com/T1lman/ssh-sub001/lib/cryptosuite"
	"github.com/T1lman/ssh-sub001/lib/logging"
	"github.com/T1lman/ssh-sub001/lib/protocol"
	"github.com/T1lman/ssh-sub001/lib/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	app := kingpin.New("relay-client", "Secure remote-access client.")
	host := app.Flag("host", "Server address.").Default("127.0.0.1").String()
	port := app.Flag("port", "Server port.").Default("2222").Int()
	username := app.Flag("username", "Username to authenticate as.").Required().String()
	password := app.Flag("password", "Password for password/dual authentication.").String()
	keyFile := app.Flag("identity", "Path to an RSA private key for public-key/dual authentication.").String()
	authType := app.Flag("auth-type", "Authentication type (password, publickey, dual).").Default("password").String()
	knownHostsFile := app.Flag("known-hosts", "Path to the known-hosts pin file.").Default("known_hosts").String()
	insecureTrustNewKey := app.Flag("insecure-trust-new-key", "Accept and re-pin a server key that differs from the one on file, instead of rejecting the connection.").Bool()
	logLevel := app.Flag("log-level", "Log level (debug, info, warn, error).").Default("info").String()

	runCmd := app.Command("run", "Run a single shell command.")
	command := runCmd.Arg("command", "Command to execute.").Required().String()

	if _, err := app.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if err := logging.Init(logging.ForCLI, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	log := logging.NewEntry("relay-client")

	knownHosts, err := client.LoadKnownHosts(*knownHostsFile)
	if err != nil {
		log.WithError(err).Error("failed to load known hosts")
		return 1
	}
	if *insecureTrustNewKey {
		knownHosts.AllowKeyUpdate()
	}

	creds := session.ClientCredentials{
		Username: *username,
		AuthType: protocol.AuthType(*authType),
		Password: *password,
	}
	if *keyFile != "" {
		priv, err := cryptosuite.LoadPrivateKey(*keyFile)
		if err != nil {
			log.WithError(err).Error("failed to load identity key")
			return 1
		}
		creds.SignKey = priv
		creds.PublicKey = &priv.PublicKey
	}

	c, err := client.Dial(context.Background(), fmt.Sprintf("%s:%d", *host, *port), client.Config{
		ClientID:    "relay-client",
		Credentials: creds,
		KnownHosts:  knownHosts,
		Log:         log,
	})
	if err != nil {
		log.WithError(err).Error("connection failed")
		return 1
	}
	defer c.Disconnect()

	result, err := c.RunCommand(*command, "")
	if err != nil {
		log.WithError(err).Error("command failed")
		return 1
	}
	fmt.Fprint(os.Stdout, result.Stdout)
	fmt.Fprint(os.Stderr, result.Stderr)
	return result.ExitCode
}
