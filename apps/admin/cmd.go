package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp       = errors.New("help provided")
	errNoDatabase = errors.New("migrations need the postgres engine")
)

type jobRunner interface {
	RunJob(ctx context.Context, name string) error
	JobNames() []string
}

type commandLine struct {
	db       *sqlx.DB // nil on the memory engine
	usrSvc   user.Service
	validate *validator.Validate
	jobs     jobRunner
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -name NAME -email EMAIL [-roles parent,student,teacher] [-admin] - create or update a user")
	fmt.Println("  resetpassword -email EMAIL - reset user's password")
	fmt.Println("  migrate up|down|status - manage the database schema")
	fmt.Println("  jobs list|run NAME - list or run the background jobs")
}

// promptPassword reads a password from the terminal, twice.
func promptPassword() (string, string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil || len(pwd) == 0 {
		return "", "", err
	}
	fmt.Print("Confirm password:")
	confirm, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", "", err
	}
	return string(pwd), string(confirm), nil
}

func parseRoles(s string, isAdmin bool) ([]user.Role, error) {
	roles := make([]user.Role, 0, 4)
	if isAdmin {
		roles = append(roles, user.RoleAdmin)
	}
	for _, name := range strings.Split(s, ",") {
		role := user.Role(strings.ToLower(strings.TrimSpace(name)))
		if role == "" {
			continue
		}
		if !role.Valid() || role == user.RoleAdmin {
			return nil, fmt.Errorf("%q: invalid role", name)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserRoles := addUserCmd.String("roles", "", "Comma separated roles among parent, student and teacher.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant the admin role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		roles, err := parseRoles(*addUserRoles, *addUserAdmin)
		if err != nil {
			return err
		}
		if *addUserEmail == "" || len(roles) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, confirm, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, pwd, confirm, roles)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, confirm, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd, confirm)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2])

	case "jobs":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.runJobs(args[2:])

	default:
		cli.printUsage()
		return errHelp
	}
}
