package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hed-standard/hed-lsp/pkg/diagnostics"
	"github.com/hed-standard/hed-lsp/pkg/mcp"
	"github.com/hed-standard/hed-lsp/pkg/server"
)

// errIssuesFound makes validate exit non-zero without printing usage.
var errIssuesFound = errors.New("validation issues found")

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := buildSession(cmd.Context(), *cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		srv := server.NewServer(session, cfg.Server.Mode)
		return srv.Run(cmd.Context(), cfg.Server.Addr)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve HED tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := buildSession(cmd.Context(), *cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		return mcp.Run(cmd.Context(), session)
	},
}

var validateJSON bool

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate the HED annotations of JSON sidecars and TSV/CSV files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := buildSession(cmd.Context(), *cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		results := make(map[string][]diagnostics.Diagnostic, len(args))
		failed := false
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				abs = path
			}
			diags := session.ValidateText(cmd.Context(), abs, string(data))
			results[path] = diags
			for _, d := range diags {
				if d.Severity == diagnostics.SeverityError {
					failed = true
				}
			}
		}

		out := cmd.OutOrStdout()
		if validateJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return err
			}
		} else {
			for _, path := range args {
				printDiagnostics(out, path, results[path])
			}
		}
		if failed {
			cmd.SilenceErrors = true
			return errIssuesFound
		}
		return nil
	},
}

func printDiagnostics(w io.Writer, path string, diags []diagnostics.Diagnostic) {
	if len(diags) == 0 {
		fmt.Fprintf(w, "%s: ok\n", path)
		return
	}
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d: %s %s: %s\n",
			path, d.Range.Start.Line+1, d.Range.Start.Character+1, d.Severity, d.Code, d.Message)
	}
}

var suggestVersion string

var suggestCmd = &cobra.Command{
	Use:   "suggest <hed>",
	Short: "Complete a partial HED string at its end",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := buildSession(cmd.Context(), *cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		hed := args[0]
		candidates, err := session.CompleteString(cmd.Context(), suggestVersion, hed, len(hed))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, c := range candidates {
			fmt.Fprintf(out, "%-30s %-10s %s\n", c.InsertText, c.Kind, c.Detail)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Find HED tags for a plain-language term",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := buildSession(cmd.Context(), *cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		matches, err := session.Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(matches) == 0 {
			fmt.Fprintln(out, "No matching tags found.")
			return nil
		}
		for _, m := range matches {
			fmt.Fprintf(out, "%-30s %.3f  %s\n", m.Name(), m.Similarity, m.Source)
		}
		return nil
	},
}

var indexVersion string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed vocabulary tags and keywords and write the embedding store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.EmbeddingEnabled() {
			return errors.New("index needs an embedding provider (--embedding-provider)")
		}
		if cfg.Embedding.StorePath == "" {
			return errors.New("index needs an output path (--embedding-store)")
		}
		engine, err := buildSemantic(*cfg)
		if err != nil {
			return err
		}
		defer engine.Close()

		// The session only resolves the vocabulary; indexing runs here.
		sessionCfg := *cfg
		sessionCfg.EnableSemanticSearch = false
		session, cleanup, err := newSession(sessionCfg, engine)
		if err != nil {
			return err
		}
		defer cleanup()

		vocab, err := session.Vocabulary(cmd.Context(), indexVersion)
		if err != nil {
			return err
		}
		if err := engine.IndexVocabulary(cmd.Context(), vocab); err != nil {
			return err
		}
		if err := engine.Store().Save(cfg.Embedding.StorePath); err != nil {
			return err
		}
		tags, keywords := engine.Store().Len()
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d tag and %d keyword vectors to %s\n", tags, keywords, cfg.Embedding.StorePath)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		return loader.DumpYAML(cmd.OutOrStdout())
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print diagnostics as JSON")
	suggestCmd.Flags().StringVar(&suggestVersion, "version", "", "HED schema version (default: configured)")
	indexCmd.Flags().StringVar(&indexVersion, "version", "", "HED schema version to index (default: configured)")
}
