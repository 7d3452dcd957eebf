package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"hist-go/internal/app"
	"hist-go/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults.ConfigPath, nil
}

// newApp reads the config and creates a HistApp. The caller must defer
// a.Close(). operation identifies the CLI command being run (e.g.
// "ImportDirectory").
func newApp(cmd *cobra.Command, operation, params, projectID string) (*app.HistApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openApp(cmd, cfg, operation, params, projectID)
}

func openApp(cmd *cobra.Command, cfg *config.Config, operation, params, projectID string) (*app.HistApp, error) {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	a, err := app.NewHistApp(cmd.Context(), cfg, app.Options{
		Operation:    operation,
		Parameters:   params,
		ProjectID:    projectID,
		Passphrase:   func() (string, error) { return app.ReadPassphrase("Passphrase: ") },
		Console:      os.Stderr,
		ConsoleLevel: level,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// newProjectApp is newApp for commands that act on one project: the
// --project flag wins over default_project from the config.
func newProjectApp(cmd *cobra.Command, operation, params string) (*app.HistApp, string, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	projectID, _ := cmd.Flags().GetString("project")
	if projectID == "" {
		projectID = cfg.DefaultProject
	}
	if projectID == "" {
		return nil, "", fmt.Errorf("no project given: use --project or set default_project in the config")
	}
	a, err := openApp(cmd, cfg, operation, params, projectID)
	if err != nil {
		return nil, "", err
	}
	return a, projectID, nil
}

func closeApp(ctx context.Context, a *app.HistApp) {
	if err := a.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var rootCmd = &cobra.Command{
	Use:          "hist",
	Short:        "Document history store",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Println("Run 'hist db migrate' before first use.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Base Dir:        %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:         %s\n", cfg.LogDir)
		fmt.Printf("Default Project: %s\n", cfg.DefaultProject)
		fmt.Printf("Vault:           %s\n", cfg.Vault.Type)
		fmt.Printf("Database:        %s\n", cfg.Database.Type)
		fmt.Printf("Buffer:          %s\n", cfg.Buffer.Type)
		fmt.Printf("Encryption:      %s\n", cfg.Encryption.Type)
		fmt.Printf("Chunk Size:      %d\n", cfg.MaxChunkChanges())
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var configKeysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.SetupKeys(cfg, app.ReadNewPassphrase); err != nil {
			return fmt.Errorf("setting up keys: %w", err)
		}
		if cfg.Encryption.Type == "age" {
			fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
			fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		}
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the metadata database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.Migrate(cfg); err != nil {
			return err
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

// project command
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a project with an empty history",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "InitProject", "", "")
		if err != nil {
			return err
		}
		defer closeApp(cmd.Context(), a)

		id, err := a.InitProject(cmd.Context())
		if err != nil {
			return fmt.Errorf("initializing project: %w", err)
		}
		fmt.Printf("Project: %s\n", id)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ListProjects", "", "")
		if err != nil {
			return err
		}
		defer closeApp(cmd.Context(), a)

		projects, err := a.Projects(cmd.Context())
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No projects.")
			return nil
		}
		for _, p := range projects {
			fmt.Printf("%s  %s\n", p.ID, p.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import [DIR]",
	Short: "Add the files of a directory to the project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "."
		if len(args) > 0 {
			target = args[0]
		}
		absTarget, err := filepath.Abs(target)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		a, projectID, err := newProjectApp(cmd, "ImportDirectory", absTarget)
		if err != nil {
			return err
		}
		defer closeApp(cmd.Context(), a)

		count, err := a.ImportDirectory(cmd.Context(), projectID, absTarget)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		fmt.Printf("Imported %d file(s)\n", count)
		return nil
	},
}

// apply command
var applyCmd = &cobra.Command{
	Use:   "apply FILE",
	Short: "Persist or queue a JSON array of changes ('-' reads stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		endVersion, _ := cmd.Flags().GetInt("end-version")
		queue, _ := cmd.Flags().GetBool("queue")

		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening changes: %w", err)
			}
			defer f.Close()
			r = f
		}

		operation := "PersistChanges"
		if queue {
			operation = "QueueChanges"
		}
		a, projectID, err := newProjectApp(cmd, operation, args[0]+"@"+strconv.Itoa(endVersion))
		if err != nil {
			return err
		}
		defer closeApp(cmd.Context(), a)

		version, err := a.ApplyChanges(cmd.Context(), projectID, r, endVersion, queue)
		if err != nil {
			return err
		}
		if queue {
			fmt.Printf("Head version: %d\n", version)
		} else {
			fmt.Printf("End version: %d\n", version)
		}
		return nil
	},
}

// flush command
var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Persist buffered changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		var a *app.HistApp
		var projectID string
		var err error
		if all {
			a, err = newApp(cmd, "FlushAll", "", "")
		} else {
			a, projectID, err = newProjectApp(cmd, "FlushChanges", "")
		}
		if err != nil {
			return err
		}
		defer closeApp(cmd.Context(), a)

		count, err := a.Flush(cmd.Context(), projectID)
		if err != nil {
			return fmt.Errorf("flush failed: %w", err)
		}
		fmt.Printf("Flushed %d change(s)\n", count)
		return nil
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "List the files of the project at a version",
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetInt("version")

		a, projectID, err := newProjectApp(cmd, "GetSnapshot", "")
		if err != nil {
			return err
		}
		defer closeApp(cmd.Context(), a)

		snapshot, err := a.Snapshot(cmd.Context(), projectID, version)
		if err != nil {
			return err
		}
		if snapshot.CountFiles() == 0 {
			fmt.Println("No files.")
			return nil
		}
		for _, pathname := range snapshot.Pathnames() {
			file := snapshot.GetFile(pathname)
			size := "binary"
			if n, ok := file.StringLength(); ok {
				size = strconv.Itoa(n)
			} else if n, ok := file.ByteLength(); ok {
				size = strconv.Itoa(n) + "b"
			}
			fmt.Printf("%10s  %s\n", size, pathname)
		}
		return nil
	},
}

// cat command
var catCmd = &cobra.Command{
	Use:   "cat PATHNAME",
	Short: "Print a file at a version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetInt("version")

		a, projectID, err := newProjectApp(cmd, "GetFileContent", "")
		if err != nil {
			return err
		}
		defer closeApp(cmd.Context(), a)

		content, err := a.FileContent(cmd.Context(), projectID, version, args[0])
		if err != nil {
			return err
		}
		fmt.Print(content)
		return nil
	},
}

// ranges command
var rangesCmd = &cobra.Command{
	Use:   "ranges PATHNAME",
	Short: "Print the comments and tracked changes of a file as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetInt("version")

		a, projectID, err := newProjectApp(cmd, "GetRangesSnapshot", "")
		if err != nil {
			return err
		}
		defer closeApp(cmd.Context(), a)

		ranges, err := a.Ranges(cmd.Context(), projectID, version, args[0])
		if err != nil {
			return err
		}
		return printJSON(ranges)
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View persisted changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetInt("since")
		asJSON, _ := cmd.Flags().GetBool("json")

		a, projectID, err := newProjectApp(cmd, "GetChanges", "")
		if err != nil {
			return err
		}
		defer closeApp(cmd.Context(), a)

		changes, err := a.Changes(cmd.Context(), projectID, since)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(changes)
		}
		if len(changes) == 0 {
			fmt.Println("No changes.")
			return nil
		}
		for i, c := range changes {
			fmt.Printf("%6d  %s  %d op(s)\n",
				since+i+1,
				c.Timestamp().Local().Format("2006-01-02 15:04:05"),
				len(c.Operations()),
			)
		}
		return nil
	},
}

// chunks command
var chunksCmd = &cobra.Command{
	Use:   "chunks",
	Short: "List the stored chunks of the project",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, projectID, err := newProjectApp(cmd, "ListChunks", "")
		if err != nil {
			return err
		}
		defer closeApp(cmd.Context(), a)

		chunks, err := a.Chunks(cmd.Context(), projectID)
		if err != nil {
			return err
		}
		for _, c := range chunks {
			end := "-"
			if c.EndTimestamp != nil {
				end = c.EndTimestamp.Local().Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%s  %6d..%-6d  %s\n", c.ID, c.StartVersion, c.EndVersion, end)
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View persisted and buffered versions of the project",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, projectID, err := newProjectApp(cmd, "GetStatus", "")
		if err != nil {
			return err
		}
		defer closeApp(cmd.Context(), a)

		st, err := a.Status(cmd.Context(), projectID)
		if err != nil {
			return err
		}
		fmt.Printf("Project:           %s\n", st.ProjectID)
		fmt.Printf("Persisted version: %d\n", st.PersistedVersion)
		fmt.Printf("Queued changes:    %d\n", st.QueuedChanges)
		fmt.Printf("Head version:      %d\n", st.HeadVersion())
		fmt.Printf("Chunks:            %d\n", st.Chunks)
		if st.LastChangeAt != nil {
			fmt.Printf("Last change:       %s\n", st.LastChangeAt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

// ops command
var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "View the operation log",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "GetOperations", "", "")
		if err != nil {
			return err
		}
		defer closeApp(cmd.Context(), a)

		ops, err := a.Operations(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}
		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-17s  %s  %-8s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Local().Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("project", "p", "", "Project id (default: default_project from the config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)
	configKeysCmd.AddCommand(configKeysInitCmd)

	dbCmd.AddCommand(dbMigrateCmd)

	projectCmd.AddCommand(projectInitCmd)
	projectCmd.AddCommand(projectListCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().IntP("end-version", "e", 0, "Version the changes were made against")
	applyCmd.Flags().BoolP("queue", "q", false, "Buffer the changes instead of persisting them")
	rootCmd.AddCommand(flushCmd)
	flushCmd.Flags().BoolP("all", "a", false, "Flush every project with buffered changes")
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().Int("version", -1, "Version to show (default: latest persisted)")
	rootCmd.AddCommand(catCmd)
	catCmd.Flags().Int("version", -1, "Version to read (default: latest persisted)")
	rootCmd.AddCommand(rangesCmd)
	rangesCmd.Flags().Int("version", -1, "Version to read (default: latest persisted)")
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().Int("since", 0, "Show changes after this version")
	logCmd.Flags().Bool("json", false, "Print changes as JSON")
	rootCmd.AddCommand(chunksCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(opsCmd)
	opsCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
