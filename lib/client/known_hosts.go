package client

import (
	"bufio"
	"crypto/rsa"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/T1lman/ssh-sub001/lib/cryptosuite"
	"github.com/T1lman/ssh-sub001/lib/protoerr"
)

// KnownHosts implements trust-on-first-use server key pinning: the first
// time a client connects to a given address it records the server's
// public key, and every subsequent connection must present the same key
// or be rejected.
type KnownHosts struct {
	path string

	mu             sync.Mutex
	entries        map[string]string // address -> Base64 public key text
	allowKeyUpdate bool
}

// AllowKeyUpdate makes subsequent Verify calls accept and re-pin a server
// key that no longer matches the one already on file for an address,
// instead of rejecting the connection outright. This backs the client's
// --insecure-trust-new-key override for a server that has legitimately
// rotated its identity key.
func (kh *KnownHosts) AllowKeyUpdate() {
	kh.mu.Lock()
	kh.allowKeyUpdate = true
	kh.mu.Unlock()
}

// LoadKnownHosts reads path if it exists, or starts empty if it does not;
// entries are appended back to disk as new hosts are trusted.
func LoadKnownHosts(path string) (*KnownHosts, error) {
	kh := &KnownHosts{path: path, entries: make(map[string]string)}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return kh, nil
		}
		return nil, protoerr.Executor(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		kh.entries[parts[0]] = parts[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, protoerr.Executor(err)
	}
	return kh, nil
}

// Verify checks pub against the pinned key for address, trusting and
// persisting it on first contact.
func (kh *KnownHosts) Verify(address string, pub *rsa.PublicKey) error {
	text, err := cryptosuite.EncodePublicKeyText(pub)
	if err != nil {
		return protoerr.Crypto("%v", err)
	}

	kh.mu.Lock()
	defer kh.mu.Unlock()

	existing, seen := kh.entries[address]
	if !seen {
		kh.entries[address] = text
		if err := kh.appendLine(address, text); err != nil {
			return err
		}
		return nil
	}
	if existing != text {
		if !kh.allowKeyUpdate {
			return protoerr.Permission("server key for %q does not match pinned key; possible impersonation", address)
		}
		kh.entries[address] = text
		return kh.appendLine(address, text)
	}
	return nil
}

func (kh *KnownHosts) appendLine(address, text string) error {
	f, err := os.OpenFile(kh.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return protoerr.Executor(err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s %s\n", address, text); err != nil {
		return protoerr.Executor(err)
	}
	return nil
}
