package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rpattn/issueimport/internal/config"
	"github.com/rpattn/issueimport/internal/db"
	"github.com/rpattn/issueimport/internal/domain"
	"github.com/rpattn/issueimport/internal/importer"
	"github.com/rpattn/issueimport/internal/notification"
	"github.com/rpattn/issueimport/internal/repository"
	"github.com/rpattn/issueimport/internal/staging"
)

var configPath string

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "importctl",
		Short:         "Bulk issue import for the tracked-issue store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml")

	root.AddCommand(newRunCmd())
	root.AddCommand(newPurgeCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

type runFlags struct {
	projectID       int64
	filePath        string
	mappings        []string
	uniqueColumn    string
	notesColumn     string
	defaultTracker  int64
	defaultStatus   int64
	defaultPriority int64
	actingUser      int64
	encoding        string
	delimiter       string
	quote           string
	update          bool
	updateOther     bool
	notify          bool
	addCategories   bool
	addVersions     bool
	useIssueID      bool
	ignoreNonExist  bool
	useAnonymous    bool
}

func newRunCmd() *cobra.Command {
	flags := runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an import batch from a CSV or XLSX file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), flags)
		},
	}

	cmd.Flags().Int64Var(&flags.projectID, "project", 0, "target project id")
	cmd.Flags().StringVar(&flags.filePath, "file", "", "path to the CSV or XLSX file")
	cmd.Flags().StringArrayVar(&flags.mappings, "map", nil, "field=column mapping, repeatable")
	cmd.Flags().StringVar(&flags.uniqueColumn, "unique-column", "", "source column identifying existing issues")
	cmd.Flags().StringVar(&flags.notesColumn, "notes-column", "", "source column holding change notes")
	cmd.Flags().Int64Var(&flags.defaultTracker, "default-tracker", 0, "tracker id for rows without a tracker column")
	cmd.Flags().Int64Var(&flags.defaultStatus, "default-status", 0, "status id for new issues without a status column")
	cmd.Flags().Int64Var(&flags.defaultPriority, "default-priority", 0, "priority id for new issues without a priority column")
	cmd.Flags().Int64Var(&flags.actingUser, "user", 0, "acting user id")
	cmd.Flags().StringVar(&flags.encoding, "encoding", "", "source file encoding (default UTF-8)")
	cmd.Flags().StringVar(&flags.delimiter, "delimiter", ",", "CSV field delimiter")
	cmd.Flags().StringVar(&flags.quote, "quote", `"`, "CSV quote character")
	cmd.Flags().BoolVar(&flags.update, "update", false, "update existing issues matched by the unique column")
	cmd.Flags().BoolVar(&flags.updateOther, "update-other-project", false, "allow updates to issues in other projects")
	cmd.Flags().BoolVar(&flags.notify, "notify", false, "send notifications for created and updated issues")
	cmd.Flags().BoolVar(&flags.addCategories, "add-categories", false, "create missing categories")
	cmd.Flags().BoolVar(&flags.addVersions, "add-versions", false, "create missing versions")
	cmd.Flags().BoolVar(&flags.useIssueID, "use-issue-id", false, "take issue ids from the mapped id column")
	cmd.Flags().BoolVar(&flags.ignoreNonExist, "ignore-nonexist", false, "skip references to missing issues instead of failing the row")
	cmd.Flags().BoolVar(&flags.useAnonymous, "use-anonymous", false, "fall back to the anonymous user for unknown logins")

	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runImport(ctx context.Context, flags runFlags) error {
	mapping, err := parseMappings(flags.mappings)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(flags.filePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", flags.filePath, err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.DB, cfg.MigrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	dispatcher := notification.Dispatcher(notification.Discard{})
	if flags.notify {
		dispatcher = notification.NewLogDispatcher(cfg.NotifiedEvents)
	}

	service := importer.NewService(
		repository.NewIssueRepository(conn.Pool),
		repository.NewUserRepository(conn.Pool),
		repository.NewProjectRepository(conn.Pool),
		repository.NewVersionRepository(conn.Pool),
		repository.NewCategoryRepository(conn.Pool),
		repository.NewLookupRepository(conn.Pool),
		repository.NewImportLogRepository(conn.Pool),
		dispatcher,
	)

	importCfg := domain.ImportConfiguration{
		ProjectID:          flags.projectID,
		Encoding:           flags.encoding,
		Delimiter:          firstRune(flags.delimiter, ','),
		Quote:              firstRune(flags.quote, '"'),
		Mapping:            mapping,
		UniqueColumn:       flags.uniqueColumn,
		NotesColumn:        flags.notesColumn,
		DefaultTrackerID:   flags.defaultTracker,
		DefaultStatusID:    flags.defaultStatus,
		DefaultPriorityID:  flags.defaultPriority,
		ActingUserID:       flags.actingUser,
		UpdateExisting:     flags.update,
		UpdateOtherProject: flags.updateOther,
		SendNotifications:  flags.notify,
		AddCategories:      flags.addCategories,
		AddVersions:        flags.addVersions,
		UseIssueID:         flags.useIssueID,
		IgnoreNonExist:     flags.ignoreNonExist,
		UseAnonymous:       flags.useAnonymous,
	}

	result, err := service.Run(ctx, importCfg, filepath.Base(flags.filePath), data)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

func printResult(result importer.Result) {
	fmt.Printf("handled:  %d\n", result.Handled)
	fmt.Printf("updated:  %d\n", result.Updated)
	fmt.Printf("skipped:  %d\n", result.Skipped)
	fmt.Printf("failed:   %d\n", result.Failed)
	if result.SkippedReferences > 0 {
		fmt.Printf("skipped references: %d\n", result.SkippedReferences)
	}

	if len(result.ProjectCounts) > 0 {
		names := make([]string, 0, len(result.ProjectCounts))
		for name := range result.ProjectCounts {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("issues per project:")
		for _, name := range names {
			fmt.Printf("  %s: %d\n", name, result.ProjectCounts[name])
		}
	}

	for _, message := range result.Messages {
		fmt.Println(message)
	}
}

func newPurgeCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove abandoned staged import files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			conn, err := db.NewConnection(cmd.Context(), cfg.DB)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer conn.Close()

			service := staging.NewService(repository.NewStagingRepository(conn.Pool))
			purged, err := service.Purge(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Printf("purged %d staged imports\n", purged)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 72*time.Hour, "age threshold for staged files")
	return cmd
}

func parseMappings(raw []string) (map[string]string, error) {
	mapping := make(map[string]string, len(raw))
	for _, pair := range raw {
		field, column, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(field) == "" || strings.TrimSpace(column) == "" {
			return nil, fmt.Errorf("invalid mapping %q, expected field=column", pair)
		}
		mapping[strings.TrimSpace(field)] = strings.TrimSpace(column)
	}
	return mapping, nil
}

func firstRune(value string, fallback rune) rune {
	for _, r := range value {
		return r
	}
	return fallback
}
