package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/itmstools/itms_console/pkg/review"
)

var errNeedsConfirmation = errors.New("confirmation required: pass --yes when stdin is not a terminal")

// stdinIsTerminal is swapped in tests
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// plainTerminal reports a terminal that cannot drive the form widgets
func plainTerminal() bool {
	t := os.Getenv("TERM")
	return t == "" || t == "dumb"
}

// confirmer returns what asks before a workflow request is sent
func confirmer(yes bool) (review.Confirmer, error) {
	if yes {
		return review.Confirmed, nil
	}
	if !stdinIsTerminal() {
		return nil, errNeedsConfirmation
	}
	return review.ConfirmFunc(func(ctx context.Context, p review.Prompt) (bool, error) {
		ok := false
		err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(p.Title).
				Description(fmt.Sprintf("%s\nReview %s", p.Question, p.ReviewID)).
				Affirmative(p.Affirmative).
				Negative(p.Negative).
				Value(&ok),
		)).WithAccessible(plainTerminal()).RunWithContext(ctx)
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return ok, err
	}), nil
}

// credentials fills in whatever the flags left blank
type credentials struct {
	Email    string
	Password string
}

func (c *credentials) prompt(ctx context.Context) error {
	if plainTerminal() {
		return c.promptPlain(os.Stdin, os.Stderr)
	}
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Email").
			Value(&c.Email).
			Validate(required("email")),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&c.Password).
			Validate(required("password")),
	)).WithShowHelp(false)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("login cancelled")
		}
		return err
	}
	return nil
}

// promptPlain reads the email as a line and the password without echo
func (c *credentials) promptPlain(in *os.File, out io.Writer) error {
	if strings.TrimSpace(c.Email) == "" {
		fmt.Fprint(out, "Email: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading email: %w", err)
		}
		c.Email = strings.TrimSpace(line)
	}
	if c.Password == "" {
		fmt.Fprint(out, "Password: ")
		pw, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		c.Password = string(pw)
	}
	return nil
}

// readPasswordFrom takes the first line of r, for --password-stdin
func readPasswordFrom(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
