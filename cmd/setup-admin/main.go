// Command setup-admin writes the admin credentials into the .env file read by
// the API server.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"strings"

	"kaptam/internal/service"

	"github.com/joho/godotenv"
)

const (
	keyUsername     = "ADMIN_USERNAME"
	keyPasswordHash = "ADMIN_PASSWORD_HASH"
	keyJWTSecret    = "JWT_SECRET"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatalf("setup failed: %v", err)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fset := flag.NewFlagSet("setup-admin", flag.ContinueOnError)
	fset.SetOutput(stdout)
	envPath := fset.String("env", ".env", "path of the .env file to update")
	username := fset.String("username", "", "admin username (prompted when empty)")
	keepSecret := fset.Bool("keep-secret", false, "reuse an existing JWT_SECRET instead of rotating it")
	if err := fset.Parse(args); err != nil {
		return err
	}

	in := bufio.NewReader(stdin)

	user := strings.TrimSpace(*username)
	if user == "" {
		answer, err := prompt(in, stdout, "Admin username (default: admin): ")
		if err != nil {
			return err
		}
		user = strings.TrimSpace(answer)
	}
	if user == "" {
		user = "admin"
	}

	password, err := prompt(in, stdout, fmt.Sprintf("Admin password (min %d characters): ", service.MinPasswordLength))
	if err != nil {
		return err
	}
	if len(password) < service.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", service.MinPasswordLength)
	}
	confirm, err := prompt(in, stdout, "Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	hash, err := service.HashPassword(password)
	if err != nil {
		return err
	}

	env, err := godotenv.Read(*envPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read %s: %w", *envPath, err)
		}
		env = map[string]string{}
	}

	rotated := true
	if *keepSecret && env[keyJWTSecret] != "" {
		rotated = false
	} else {
		secret, err := service.GenerateSecret()
		if err != nil {
			return err
		}
		env[keyJWTSecret] = secret
	}
	env[keyUsername] = user
	env[keyPasswordHash] = hash

	if err := godotenv.Write(env, *envPath); err != nil {
		return fmt.Errorf("write %s: %w", *envPath, err)
	}
	if err := os.Chmod(*envPath, 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", *envPath, err)
	}

	fmt.Fprintf(stdout, "\nAdmin credentials written to %s\n", *envPath)
	fmt.Fprintf(stdout, "Username: %s\n", user)
	if rotated {
		fmt.Fprintln(stdout, "JWT secret: generated (existing admin sessions are now invalid)")
	} else {
		fmt.Fprintln(stdout, "JWT secret: kept")
	}
	fmt.Fprintln(stdout, "Restart the API server to apply the new credentials.")
	return nil
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
