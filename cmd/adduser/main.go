package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"budget-tracker/internal/auth"
	"budget-tracker/internal/ledger"
	"budget-tracker/internal/storage"

	"github.com/fatih/color"
	"golang.org/x/term"
)

const defaultDBPath = "budget.db"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Username")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	dbPath := fs.String("db", defaultDBPath, "Path to database file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		fmt.Fprintln(stdout, "Usage: adduser -user <username> [-password <password>] [-db <db_path>]")
		fs.PrintDefaults()
		return errors.New("missing required flags: user")
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}

	if strings.TrimSpace(password) == "" {
		return errors.New("password cannot be empty")
	}

	// DB_PATH applies only when -db was left at its default
	if path := os.Getenv("DB_PATH"); path != "" && *dbPath == defaultDBPath {
		*dbPath = path
	}

	db, err := storage.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	user, err := auth.NewCredentials(db).Register(context.Background(), *username, password, ledger.SeedDefaults)
	switch {
	case errors.Is(err, auth.ErrDuplicateUsername):
		return fmt.Errorf("user %s already exists", *username)
	case errors.Is(err, auth.ErrUsernameTooLong), errors.Is(err, auth.ErrPasswordTooLong):
		return err
	case err != nil:
		return fmt.Errorf("failed to create user: %w", err)
	}

	color.New(color.FgGreen).Fprintf(stdout, "User %s created successfully with ID %d\n", user.Username, user.ID)
	fmt.Fprintf(stdout, "Seeded %d accounts and %d categories\n",
		len(ledger.DefaultAccounts), len(ledger.DefaultIncomeCategories)+len(ledger.DefaultExpenseCategories))

	total, err := userCount(db)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	fmt.Fprintf(stdout, "Database now has %d user(s)\n", total)
	return nil
}

func userCount(db *storage.DB) (int, error) {
	var count int
	err := db.WithTx(context.Background(), func(tx *storage.Tx) error {
		var err error
		count, err = tx.UserCount(context.Background())
		return err
	})
	return count, err
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Pipes and tests
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
