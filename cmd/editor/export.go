package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"notespace/client/internal/content"
	"notespace/client/internal/render"
)

var exportCmd = &cobra.Command{
	Use:   "export <document-id>",
	Short: "Export a document as HTML, Markdown or PDF",
	Long: `Exports a document. The freshest known content is used: a cached local
snapshot wins over an empty server copy, as when the document is opened.
PDF export needs a Chrome or Chromium binary.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawFormat, _ := cmd.Flags().GetString("format")
		format, err := render.ParseFormat(rawFormat)
		if err != nil {
			return err
		}
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		id := content.ID(args[0])
		doc, err := env.client.GetDocument(ctx, id)
		if err != nil {
			return err
		}
		docCache, err := env.openCache()
		if err != nil {
			return err
		}
		now := time.Now()
		var cached []byte
		if entry, ok, err := docCache.Get(ctx, id); err != nil {
			env.logger.Warn("read local cache", "error", err)
		} else if ok {
			cached = entry.Content
		}
		c, source := content.Resolve(cached, doc.Content, now)
		env.logger.Debug("exporting", "document", id, "source", source, "format", format)

		result, err := render.DefaultRegistry().Export(ctx, doc, c, format, now)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "-" {
			_, err := cmd.OutOrStdout().Write(result.Data)
			return err
		}
		if out == "" {
			out = result.Filename
		}
		if err := os.WriteFile(out, result.Data, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, %d bytes)\n", out, result.MimeType, len(result.Data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("format", "f", "html", "Output format: html, markdown or pdf")
	exportCmd.Flags().StringP("out", "o", "", "Output file, - for stdout (default: derived from the title)")
}
