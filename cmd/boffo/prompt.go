package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"boffo/internal/credentials"
	"boffo/internal/folio"
)

// terminalPrompter asks for FOLIO credentials on the terminal. The password
// is read without echo when stdin is a terminal.
type terminalPrompter struct {
	in           *bufio.Reader
	out          io.Writer
	readPassword func() (string, error)
}

func newTerminalPrompter(in *os.File, out io.Writer) *terminalPrompter {
	p := &terminalPrompter{in: bufio.NewReader(in), out: out}
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		p.readPassword = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(string(b)), nil
		}
	} else {
		p.readPassword = p.readLine
	}
	return p
}

func (p *terminalPrompter) PromptCredentials(ctx context.Context, current credentials.Credentials, lastErr error) (folio.LoginRequest, error) {
	if lastErr != nil {
		fmt.Fprintf(p.out, "Login failed: %v\n", lastErr)
	}

	var req folio.LoginRequest
	var err error
	if req.ServerURL, err = p.ask("FOLIO server URL", current.ServerURL); err != nil {
		return req, err
	}
	if req.TenantID, err = p.ask("Tenant id", current.TenantID); err != nil {
		return req, err
	}
	if req.Username, err = p.ask("Username", ""); err != nil {
		return req, err
	}
	fmt.Fprint(p.out, "Password: ")
	if req.Password, err = p.readPassword(); err != nil {
		return req, err
	}
	if err := ctx.Err(); err != nil {
		return req, err
	}
	return req, nil
}

// ask prints label, showing current as the default an empty answer keeps.
func (p *terminalPrompter) ask(label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return current, nil
	}
	return line, nil
}

// readLine returns ErrCancelled when input ends before a line is entered.
func (p *terminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		if line == "" {
			return "", folio.ErrCancelled
		}
	}
	return strings.TrimSpace(line), nil
}
