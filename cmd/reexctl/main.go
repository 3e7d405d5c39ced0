package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reex/reexd/internal/cli"
	"github.com/reex/reexd/internal/config"
	"github.com/reex/reexd/internal/logx"
	"github.com/reex/reexd/internal/models"
	"github.com/reex/reexd/internal/remote"
	"github.com/reex/reexd/internal/shell"
	"github.com/reex/reexd/internal/store"
)

var (
	dbPath     string
	outputJSON bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reexctl",
	Short: "CLI for the reexd execution daemon",
	Long: `reexctl manages the folders, command templates and execution records
shared with reexd through its database.

Changes are picked up by a running reexd automatically.`,
	SilenceUsage: true,
}

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "Manage watched folders",
}

var listFoldersCmd = &cobra.Command{
	Use:   "list",
	Short: "List all folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		folders, err := s.Folders()
		if err != nil {
			return err
		}

		if outputJSON {
			return cli.FormatJSON(folders)
		}
		return cli.FormatFoldersTable(folders)
	},
}

var addFolderCmd = &cobra.Command{
	Use:   "add [name] [path]",
	Short: "Add a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		shellPath, _ := cmd.Flags().GetString("shell")

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		folders, err := s.Folders()
		if err != nil {
			return err
		}

		folder := models.NewFolder(args[0], args[1])
		if shellPath != "" {
			folder.ShellPath = shellPath
		}
		folders = append(folders, folder)

		if err := s.SaveFolders(folders); err != nil {
			return err
		}
		fmt.Printf("Added folder %s (%s)\n", folder.Name, folder.ID)
		return nil
	},
}

var removeFolderCmd = &cobra.Command{
	Use:   "remove [folder]",
	Short: "Remove a folder and its records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		folders, err := s.Folders()
		if err != nil {
			return err
		}

		folder, idx, err := findFolder(folders, args[0])
		if err != nil {
			return err
		}

		folders = append(folders[:idx], folders[idx+1:]...)
		if err := s.SaveFolders(folders); err != nil {
			return err
		}
		if err := s.DeleteFolderState(folder.ID); err != nil {
			return err
		}
		fmt.Printf("Removed folder %s\n", folder.Name)
		return nil
	},
}

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Manage a folder's command templates",
}

var listCommandsCmd = &cobra.Command{
	Use:   "list [folder]",
	Short: "List a folder's commands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		folders, err := s.Folders()
		if err != nil {
			return err
		}

		folder, _, err := findFolder(folders, args[0])
		if err != nil {
			return err
		}

		if outputJSON {
			return cli.FormatJSON(folder.Commands)
		}
		return cli.FormatCommandsTable(folder.Commands)
	},
}

var addCommandCmd = &cobra.Command{
	Use:   "add [folder] [name] [template]",
	Short: "Add a command template to a folder",
	Long: `Add a named command template. Placeholders use {name} syntax and are
filled from remote task arguments or --param flags:

  reexctl commands add deploy ping "ping -c 1 {host}"`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		folders, err := s.Folders()
		if err != nil {
			return err
		}

		_, idx, err := findFolder(folders, args[0])
		if err != nil {
			return err
		}

		command := models.NewCommand(args[1], args[2])
		folders[idx].Commands = append(folders[idx].Commands, command)

		if err := s.SaveFolders(folders); err != nil {
			return err
		}
		fmt.Printf("Added command %s to %s\n", command.Name, folders[idx].Name)
		return nil
	},
}

var setURLCmd = &cobra.Command{
	Use:   "set-url [folder]",
	Short: "Set a folder's remote task and upload URLs",
	Long: `Set the endpoints reexd uses for the folder. An empty value clears the
endpoint. The remote URL may use the consul://<service>/<path> form when
reexd runs with a consul address configured.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		folders, err := s.Folders()
		if err != nil {
			return err
		}

		_, idx, err := findFolder(folders, args[0])
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("remote") {
			folders[idx].RemoteTaskURL, _ = cmd.Flags().GetString("remote")
		}
		if cmd.Flags().Changed("upload") {
			folders[idx].UploadRecordURL, _ = cmd.Flags().GetString("upload")
		}

		if err := s.SaveFolders(folders); err != nil {
			return err
		}
		fmt.Printf("Updated %s\n", folders[idx].Name)
		return nil
	},
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect and clear execution records",
}

var listRecordsCmd = &cobra.Command{
	Use:   "list [folder]",
	Short: "List a folder's execution records, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		folders, err := s.Folders()
		if err != nil {
			return err
		}

		folder, _, err := findFolder(folders, args[0])
		if err != nil {
			return err
		}

		records, err := s.Records(folder.ID)
		if err != nil {
			return err
		}

		if outputJSON {
			return cli.FormatJSON(records)
		}
		return cli.FormatRecordsTable(records)
	},
}

var clearRecordsCmd = &cobra.Command{
	Use:   "clear [folder]",
	Short: "Delete a folder's execution records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		folders, err := s.Folders()
		if err != nil {
			return err
		}

		folder, _, err := findFolder(folders, args[0])
		if err != nil {
			return err
		}

		if err := s.ClearRecords(folder.ID); err != nil {
			return err
		}
		fmt.Printf("Cleared records for %s\n", folder.Name)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run [folder] [command]",
	Short: "Run a command template interactively",
	Long: `Resolve a command template with --param values and execute it in the
folder's working directory with the folder's shell. The outcome is
appended to the folder's record log like any other execution.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, _ := cmd.Flags().GetStringArray("param")

		values := make(map[string]string, len(params))
		for _, p := range params {
			key, value, ok := strings.Cut(p, "=")
			if !ok {
				return fmt.Errorf("invalid --param %q, want key=value", p)
			}
			values[key] = value
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		folders, err := s.Folders()
		if err != nil {
			return err
		}

		folder, _, err := findFolder(folders, args[0])
		if err != nil {
			return err
		}

		command, ok := folder.CommandByName(args[1])
		if !ok {
			return fmt.Errorf("folder %s has no command %q", folder.Name, args[1])
		}

		for _, name := range command.Placeholders() {
			if _, ok := values[name]; !ok {
				return fmt.Errorf("missing --param %s=...", name)
			}
		}

		resolved := command.Resolve(values)
		record := executeLocal(cmd.Context(), folder, command.Name, resolved)

		if err := s.AppendRecord(folder.ID, record); err != nil {
			return err
		}

		if folder.UploadRecordURL != "" {
			client := remote.NewClient(logx.Discard())
			client.UploadRecord(cmd.Context(), folder.UploadRecordURL, record)
		}

		fmt.Println(record.Output)
		if record.ExitCode != 0 {
			return fmt.Errorf("command exited with code %d", record.ExitCode)
		}
		return nil
	},
}

// executeLocal runs one resolved command and always yields a record, even
// when the working directory or shell is unusable.
func executeLocal(ctx context.Context, folder models.Folder, commandName, resolved string) models.ExecutionRecord {
	access, err := shell.Acquire(folder.Path, folder.AccessToken)
	if err != nil {
		output := fmt.Sprintf("Failed to execute command: %v", err)
		return models.NewExecutionRecord(commandName, resolved, output, models.ExitLaunchFailure)
	}
	defer access.Release()

	engine := shell.NewExecutor(logx.Discard())
	result := engine.Execute(ctx, folder.ShellPath, access.Path(), resolved)
	return models.NewExecutionRecord(commandName, resolved, result.Output, result.ExitCode)
}

// findFolder matches by exact name first, then by id or id prefix.
func findFolder(folders []models.Folder, key string) (models.Folder, int, error) {
	for i, f := range folders {
		if f.Name == key {
			return f, i, nil
		}
	}
	for i, f := range folders {
		if strings.HasPrefix(f.ID.String(), key) {
			return f, i, nil
		}
	}
	return models.Folder{}, 0, fmt.Errorf("no folder named %q", key)
}

func openStore() (*store.Store, error) {
	return store.New(dbPath)
}

func init() {
	defaultDB := os.Getenv("REEXD_DB")
	if defaultDB == "" {
		defaultDB = config.Default().DatabasePath
	}

	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", defaultDB, "Path to the reexd database")
	rootCmd.PersistentFlags().BoolVarP(&outputJSON, "json", "j", false, "Output in JSON format")

	addFolderCmd.Flags().String("shell", "", "Shell for the folder (default "+models.DefaultShellPath+")")
	setURLCmd.Flags().String("remote", "", "Remote task list URL (empty to clear)")
	setURLCmd.Flags().String("upload", "", "Record upload URL (empty to clear)")
	runCmd.Flags().StringArrayP("param", "p", nil, "Placeholder value as key=value (repeatable)")

	foldersCmd.AddCommand(listFoldersCmd)
	foldersCmd.AddCommand(addFolderCmd)
	foldersCmd.AddCommand(removeFolderCmd)

	commandsCmd.AddCommand(listCommandsCmd)
	commandsCmd.AddCommand(addCommandCmd)

	recordsCmd.AddCommand(listRecordsCmd)
	recordsCmd.AddCommand(clearRecordsCmd)

	rootCmd.AddCommand(foldersCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(setURLCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(runCmd)
}
