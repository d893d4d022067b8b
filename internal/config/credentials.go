package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PasswordReader reads a password without echoing it.
type PasswordReader func() (string, error)

// TerminalPassword reads the password from the controlling terminal on stdin.
func TerminalPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal")
	}
	b, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

// Credentials returns the tracker username and password. In debug mode they
// come from the environment; in production the username is read from in and
// the password from readPassword, with prompts written to out.
func Credentials(cfg Config, in io.Reader, out io.Writer, readPassword PasswordReader) (string, string, error) {
	if cfg.Env == EnvDebug {
		return cfg.Username, cfg.Password, nil
	}

	fmt.Fprint(out, "Enter your Mantis username: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", "", fmt.Errorf("read username: %w", err)
	}
	username := strings.TrimSpace(line)
	if username == "" {
		return "", "", errors.New("username is required")
	}

	fmt.Fprintf(out, "Enter password for %s: ", username)
	password, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return "", "", err
	}
	if password == "" {
		return "", "", errors.New("password is required")
	}
	return username, password, nil
}
