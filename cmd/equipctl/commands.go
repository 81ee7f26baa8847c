package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"skyfire-equipment/common/database"
	"skyfire-equipment/common/logger"
	"skyfire-equipment/internal/config"
	"skyfire-equipment/internal/repository"
)

var (
	serverURL  string
	timeout    time.Duration
	verbose    bool
	poiType    string
	poiLoc     string
	poiSystem  int
	outputPath string

	rootCmd = &cobra.Command{
		Use:   "equipctl",
		Short: "Inspect and edit project equipment configurations",
	}

	getCmd = &cobra.Command{
		Use:   "get [project]",
		Short: "Show the current configuration of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, http.MethodGet, "/projects/"+args[0], nil)
		},
	}

	setCmd = &cobra.Command{
		Use:   "set [project] field[@subsystem]=value...",
		Short: "Write one or more fields in a single batch",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			return runCall(cmd, http.MethodPost, "/projects/"+args[0]+"/fields", map[string]any{"updates": updates})
		},
	}

	detectCmd = &cobra.Command{
		Use:   "detect [project]",
		Short: "Run BOS detection for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, http.MethodPost, "/projects/"+args[0]+"/bos/detect", detectBody())
		},
	}

	acceptCmd = &cobra.Command{
		Use:   "accept [project]",
		Short: "Accept the most recent BOS detection into slot fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, http.MethodPost, "/projects/"+args[0]+"/bos/accept", map[string]any{})
		},
	}

	exportCmd = &cobra.Command{
		Use:   "export [project]",
		Short: "Export BOS detection as xlsx",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newAPIClient(serverURL, timeout).download("/projects/"+args[0]+"/bos/export", detectBody())
			if err != nil {
				return err
			}
			path := outputPath
			if path == "" {
				path = fmt.Sprintf("bos-%s.xlsx", args[0])
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(data))
			return nil
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create the equipment config tables using DB_* environment settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.NewCLILogger(verbose)
			if err != nil {
				return err
			}
			cfg := config.Load()
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			db, err := database.NewPostgresDB(ctx, &cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)
			if err := repository.EnsureSchema(ctx, db); err != nil {
				return err
			}
			log.Info("schema ready", zap.String("dsn", cfg.Database.Redacted()))
			fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
			return nil
		},
	}

	invalidateCmd = &cobra.Command{
		Use:   "invalidate-cache",
		Short: "Drop cached utility requirement lookups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCall(cmd, http.MethodPost, "/utility-requirements/cache/invalidate", nil)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("EQUIPMENT_SERVER", "http://localhost:8090"), "equipment config service base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	for _, c := range []*cobra.Command{detectCmd, exportCmd} {
		c.Flags().StringVar(&poiType, "poi", "", "point of interconnection answer for the prompted subsystem")
		c.Flags().StringVar(&poiLoc, "poi-location", "", "breaker location answer for the prompted subsystem")
		c.Flags().IntVar(&poiSystem, "poi-system", 1, "subsystem the --poi answers apply to")
	}
	exportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default bos-<project>.xlsx)")

	rootCmd.AddCommand(getCmd, setCmd, detectCmd, acceptCmd, exportCmd, migrateCmd, invalidateCmd)
}

func detectBody() map[string]any {
	body := map[string]any{}
	if poiType != "" || poiLoc != "" {
		body["answers"] = []map[string]any{{"subsystem": poiSystem, "poi_type": poiType, "poi_location": poiLoc}}
	}
	return body
}

func runCall(cmd *cobra.Command, method, path string, body any) error {
	result, warning, err := newAPIClient(serverURL, timeout).call(method, path, body)
	if warning != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", warning)
	}
	if len(result) > 0 {
		var pretty any
		if json.Unmarshal(result, &pretty) == nil {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			_ = enc.Encode(pretty)
		}
	}
	return err
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
