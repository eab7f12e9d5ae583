// Package store provides the one concrete on-disk implementation of the
// lib/auth interfaces: a Java-properties-style users.properties file, a
// directory tree of per-user authorized_keys, and PKCS#8/X.509 identity
// key files. The core never imports this package
// directly — lib/session and lib/service depend only on lib/auth's
// interfaces — so an operator can swap in a database-backed store without
// touching the protocol implementation.
package store

import (
	"bufio"
	"crypto/rsa"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gravitational/trace"

	"github.com/T1lman/ssh-sub001/lib/cryptosuite"
)

// PropertiesUserStore implements auth.UserStore over a users.properties
// file (key=username, value=lowercase-hex SHA-256 password hash, one
// key=value per line, '#' comments) and an authorized_keys/<user>/
// directory tree of Base64 X.509 SubjectPublicKeyInfo .pub files.
//
// Reload is serialized against password/key lookups with a RWMutex:
// in-flight authentications see a consistent snapshot and a reload never
// races a concurrent read.
type PropertiesUserStore struct {
	mu sync.RWMutex

	propertiesPath string
	authKeysDir    string

	passwords map[string]string // username -> lowercase-hex sha256
}

// NewPropertiesUserStore loads propertiesPath and indexes authKeysDir.
func NewPropertiesUserStore(propertiesPath, authKeysDir string) (*PropertiesUserStore, error) {
	s := &PropertiesUserStore{
		propertiesPath: propertiesPath,
		authKeysDir:    authKeysDir,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads users.properties from disk. Idempotent: reloading twice
// in a row with no file change yields the same in-memory map both times.
func (s *PropertiesUserStore) Reload() error {
	passwords, err := parsePropertiesFile(s.propertiesPath)
	if err != nil {
		return trace.Wrap(err)
	}
	s.mu.Lock()
	s.passwords = passwords
	s.mu.Unlock()
	return nil
}

func parsePropertiesFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, trace.ConvertSystemError(err)
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if key != "" {
			out[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, trace.Wrap(err)
	}
	return out, nil
}

func writePropertiesFile(path string, entries map[string]string) error {
	var b strings.Builder
	for user, hash := range entries {
		fmt.Fprintf(&b, "%s=%s\n", user, hash)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return trace.ConvertSystemError(err)
	}
	return nil
}

func (s *PropertiesUserStore) Exists(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.passwords[username]
	return ok
}

func (s *PropertiesUserStore) VerifyPassword(username, password string) bool {
	s.mu.RLock()
	hash, ok := s.passwords[username]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return hash == cryptosuite.PasswordHash(password)
}

func (s *PropertiesUserStore) AddUser(username, password string) error {
	s.mu.Lock()
	if s.passwords == nil {
		s.passwords = map[string]string{}
	}
	s.passwords[username] = cryptosuite.PasswordHash(password)
	snapshot := cloneMap(s.passwords)
	s.mu.Unlock()
	return writePropertiesFile(s.propertiesPath, snapshot)
}

func (s *PropertiesUserStore) RemoveUser(username string) error {
	s.mu.Lock()
	delete(s.passwords, username)
	snapshot := cloneMap(s.passwords)
	s.mu.Unlock()
	return writePropertiesFile(s.propertiesPath, snapshot)
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// AuthorizedKeys reads every *.pub file under <authKeysDir>/<username>/ and
// parses it as a Base64 X.509 SubjectPublicKeyInfo RSA key.
func (s *PropertiesUserStore) AuthorizedKeys(username string) ([]*rsa.PublicKey, error) {
	dir := filepath.Join(s.authKeysDir, username)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, trace.ConvertSystemError(err)
	}

	var keys []*rsa.PublicKey
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pub") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		key, err := cryptosuite.DecodePublicKeyText(string(data))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// AddAuthorizedKey writes a new <id>.pub file for username.
func (s *PropertiesUserStore) AddAuthorizedKey(username, keyID string, pub *rsa.PublicKey) error {
	dir := filepath.Join(s.authKeysDir, username)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return trace.ConvertSystemError(err)
	}
	text, err := cryptosuite.EncodePublicKeyText(pub)
	if err != nil {
		return trace.Wrap(err)
	}
	path := filepath.Join(dir, keyID+".pub")
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return trace.ConvertSystemError(err)
	}
	return nil
}
