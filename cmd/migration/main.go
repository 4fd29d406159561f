// Command migration applies the backoffice schema migrations from
// db/migrations. It wraps golang-migrate so deploys and local setups run
// the exact same migration set.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const defaultMigrationsDir = "./db/migrations"

func main() {
	log.SetFlags(0)
	log.SetPrefix("backoffice-migration: ")

	dir := flag.String("dir", "", "migrations directory (default: $MIGRATIONS_DIR, then "+defaultMigrationsDir+")")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), flag.Args()[1:], *dir); err != nil {
		log.Fatal(err)
	}
}

func run(command string, args []string, dirOverride string) error {
	dsn := strings.TrimSpace(os.Getenv("DB_URL"))
	if dsn == "" {
		return errors.New("DB_URL is required")
	}
	dsn = applyDSNOptions(dsn)

	dir, err := migrationsDir(dirOverride)
	if err != nil {
		return err
	}

	m, err := migrate.New("file://"+filepath.ToSlash(dir), dsn)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Printf("close migration source: %v", srcErr)
		}
		if dbErr != nil {
			log.Printf("close migration db: %v", dbErr)
		}
	}()

	switch command {
	case "up":
		if err := stripNoChange(m.Up()); err != nil {
			return err
		}
		log.Printf("migrations applied from %s", dir)
		return nil

	case "down":
		steps := 1
		if len(args) > 0 {
			steps, err = strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil || steps <= 0 {
				return fmt.Errorf("down expects a positive step count, got %q", args[0])
			}
		}
		if err := stripNoChange(m.Steps(-steps)); err != nil {
			return err
		}
		log.Printf("rolled back %d migration(s)", steps)
		return nil

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("version: none")
			fmt.Println("dirty: false")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		fmt.Printf("version: %d\n", version)
		fmt.Printf("dirty: %t\n", dirty)
		return nil

	case "force":
		if len(args) < 1 {
			return errors.New("force requires a version argument")
		}
		version, err := strconv.Atoi(strings.TrimSpace(args[0]))
		if err != nil || version < 0 {
			return fmt.Errorf("force expects a non-negative version, got %q", args[0])
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force version %d: %w", version, err)
		}
		log.Printf("forced version to %d", version)
		return nil

	case "goto":
		if len(args) < 1 {
			return errors.New("goto requires a target version argument")
		}
		target, err := strconv.ParseUint(strings.TrimSpace(args[0]), 10, 64)
		if err != nil {
			return fmt.Errorf("goto expects a version number, got %q", args[0])
		}
		if err := stripNoChange(m.Migrate(uint(target))); err != nil {
			return err
		}
		log.Printf("migrated to version %d", target)
		return nil

	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func stripNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		log.Printf("schema already up to date")
		return nil
	}
	return err
}

func migrationsDir(override string) (string, error) {
	candidates := []string{
		strings.TrimSpace(override),
		strings.TrimSpace(os.Getenv("MIGRATIONS_DIR")),
		defaultMigrationsDir,
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			return abs, nil
		}
	}

	return "", fmt.Errorf("no migrations directory found (tried -dir, $MIGRATIONS_DIR, %s)", defaultMigrationsDir)
}

// applyDSNOptions mirrors the API server's DSN handling so both binaries
// reach the same database the same way.
func applyDSNOptions(dsn string) string {
	if !envBool("DB_DISABLE_PREPARED_BINARY_RESULT") {
		return dsn
	}

	parsed, err := url.Parse(dsn)
	if err != nil || parsed == nil {
		return dsn
	}

	query := parsed.Query()
	if query.Get("disable_prepared_binary_result") == "" {
		query.Set("disable_prepared_binary_result", "yes")
		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}

func envBool(key string) bool {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(key))) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func printUsage() {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "usage: %s [-dir path] <up|down [n]|version|force <v>|goto <v>>\n", name)
	fmt.Fprintf(os.Stderr, "\napplies the StagePass backoffice schema migrations; DB_URL must be set\n")
}
