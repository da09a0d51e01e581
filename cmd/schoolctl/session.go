package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/schoolhub/schoolctl/internal/apiclient"
	"github.com/schoolhub/schoolctl/internal/apierrors"
)

const passwordEnv string = "SCHOOLCTL_PASSWORD"

var stdin io.Reader = os.Stdin

// commandError turns a client error into what the user sees after the observers had their say
func commandError(a *app, err error) error {
	if a.reported() {
		return fmt.Errorf("%w: %w", errReported, err)
	}
	var respErr *apiclient.ResponseError
	if errors.As(err, &respErr) {
		if message := apiclient.ExtractMessage(respErr.Body); message != "" {
			return errors.New(message)
		}
	}
	return err
}

func readPassword(flagValue string, prompt io.Writer) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if fromEnv := os.Getenv(passwordEnv); fromEnv != "" {
		return fromEnv, nil
	}
	fmt.Fprint(prompt, "Password: ")
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("a password is required")
	}
	return password, nil
}

func loginCommand(ctx context.Context, stderr io.Writer, load appLoader) *Command {
	cmd := &Command{
		Name:        "login",
		Description: "Sign in and store the session",
		Usage:       "schoolctl login -u <username> -s <school code> [-p <password>]",
		Examples: []string{
			"schoolctl login -u jdoe -s SCH-001",
			"SCHOOLCTL_PASSWORD=secret schoolctl login -u jdoe -s SCH-001 -o yaml",
		},
	}
	cmd.Run = func(args []string) error {
		fs := cmd.NewFlagSet(stderr)
		username := fs.String("u", "", "username")
		password := fs.String("p", "", "password, read from "+passwordEnv+" or stdin when empty")
		schoolCode := fs.String("s", "", "school code")
		output := fs.String("o", outputJSON, "output format: json or yaml")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := validateOutputFormat(*output); err != nil {
			return err
		}
		if *username == "" {
			return fmt.Errorf("a username is required (-u)")
		}
		pw, err := readPassword(*password, stderr)
		if err != nil {
			return err
		}
		a, err := load()
		if err != nil {
			return err
		}
		defer a.Close()
		resp, err := a.client.Login(ctx, apiclient.LoginRequest{Username: *username, Password: pw, SchoolCode: *schoolCode})
		if err != nil {
			return commandError(a, err)
		}
		return printValue(a.stdout, *output, resp.User)
	}
	return cmd
}

func logoutCommand(ctx context.Context, stderr io.Writer, load appLoader) *Command {
	cmd := &Command{
		Name:        "logout",
		Description: "Remove the stored session",
		Usage:       "schoolctl logout",
	}
	cmd.Run = func(args []string) error {
		fs := cmd.NewFlagSet(stderr)
		if err := fs.Parse(args); err != nil {
			return err
		}
		a, err := load()
		if err != nil {
			return err
		}
		defer a.Close()
		err = a.client.Logout(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, "Logged out.")
		return nil
	}
	return cmd
}

func registerCommand(ctx context.Context, stderr io.Writer, load appLoader) *Command {
	cmd := &Command{
		Name:        "register",
		Description: "Create a new account",
		Usage:       "schoolctl register -u <username> -e <email> -s <school code> [-p <password>] [-first <name>] [-last <name>] [-role <role>]",
		Examples:    []string{"schoolctl register -u student1 -e student1@example.org -s SCH-001"},
	}
	cmd.Run = func(args []string) error {
		fs := cmd.NewFlagSet(stderr)
		username := fs.String("u", "", "username")
		email := fs.String("e", "", "email address")
		password := fs.String("p", "", "password, read from "+passwordEnv+" or stdin when empty")
		schoolCode := fs.String("s", "", "school code")
		firstName := fs.String("first", "", "first name")
		lastName := fs.String("last", "", "last name")
		role := fs.String("role", "", "role requested for the account")
		output := fs.String("o", outputJSON, "output format: json or yaml")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := validateOutputFormat(*output); err != nil {
			return err
		}
		pw, err := readPassword(*password, stderr)
		if err != nil {
			return err
		}
		a, err := load()
		if err != nil {
			return err
		}
		defer a.Close()
		user, err := a.client.Register(ctx, apiclient.RegisterRequest{
			Username:        *username,
			Email:           *email,
			Password:        pw,
			PasswordConfirm: pw,
			FirstName:       *firstName,
			LastName:        *lastName,
			Role:            *role,
			SchoolCode:      *schoolCode,
		})
		if err != nil {
			return commandError(a, err)
		}
		return printValue(a.stdout, *output, user)
	}
	return cmd
}

func whoamiCommand(ctx context.Context, stderr io.Writer, load appLoader) *Command {
	cmd := &Command{
		Name:        "whoami",
		Description: "Show the signed in user",
		Usage:       "schoolctl whoami [-remote] [-o json|yaml]",
		Examples:    []string{"schoolctl whoami", "schoolctl whoami -remote"},
	}
	cmd.Run = func(args []string) error {
		fs := cmd.NewFlagSet(stderr)
		remote := fs.Bool("remote", false, "ask the backend instead of using the cached profile")
		output := fs.String("o", outputJSON, "output format: json or yaml")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := validateOutputFormat(*output); err != nil {
			return err
		}
		a, err := load()
		if err != nil {
			return err
		}
		defer a.Close()
		if *remote {
			resp, err := a.client.Get(ctx, "/accounts/me/", nil)
			if err != nil {
				return commandError(a, err)
			}
			return printBody(a.stdout, *output, resp.Body)
		}
		user, err := a.client.CurrentUser(ctx)
		if errors.Is(err, apierrors.ErrNotAuthenticated) {
			return fmt.Errorf("not logged in, run `schoolctl login`")
		}
		if err != nil {
			return err
		}
		return printValue(a.stdout, *output, user)
	}
	return cmd
}

type tokenInfo struct {
	Type      string    `json:"type" yaml:"type"`
	ExpiresAt time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
	Expired   bool      `json:"expired" yaml:"expired"`
	Value     string    `json:"value,omitempty" yaml:"value,omitempty"`
}

func tokenCommand(ctx context.Context, stderr io.Writer, load appLoader) *Command {
	cmd := &Command{
		Name:        "token",
		Description: "Show the stored access token",
		Usage:       "schoolctl token [-refresh] [-raw] [-o json|yaml]",
		Examples:    []string{"schoolctl token", "schoolctl token -refresh", "curl -H \"Authorization: Bearer $(schoolctl token -raw)\" ..."},
	}
	cmd.Run = func(args []string) error {
		fs := cmd.NewFlagSet(stderr)
		refresh := fs.Bool("refresh", false, "refresh the access token first")
		raw := fs.Bool("raw", false, "print only the token value")
		output := fs.String("o", outputJSON, "output format: json or yaml")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := validateOutputFormat(*output); err != nil {
			return err
		}
		a, err := load()
		if err != nil {
			return err
		}
		defer a.Close()
		token, err := a.client.AccessToken(ctx)
		if errors.Is(err, apierrors.ErrNotAuthenticated) {
			return fmt.Errorf("not logged in, run `schoolctl login`")
		}
		if err != nil {
			return err
		}
		if *refresh {
			token, err = a.client.RefreshNow(ctx)
			if err != nil {
				return commandError(a, err)
			}
		}
		if *raw {
			fmt.Fprintln(a.stdout, token.Value)
			return nil
		}
		return printValue(a.stdout, *output, tokenInfo{
			Type:      string(token.Type),
			ExpiresAt: token.ExpiresAt,
			Expired:   token.Expired(),
		})
	}
	return cmd
}
