package main

import (
	"bufio"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <image-file>",
	Short: "Upload an image through the upload route and print its url",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		r := bufio.NewReader(f)
		contentType := mime.TypeByExtension(filepath.Ext(args[0]))
		if contentType == "" {
			head, _ := r.Peek(512)
			contentType = http.DetectContentType(head)
		}
		endpoint, _ := cmd.Flags().GetString("endpoint")
		file, err := env.client.UploadImage(cmd.Context(), endpoint, filepath.Base(args[0]), contentType, r)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), file.URL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().String("endpoint", "http://localhost:3001/api/upload-image", "Upload route of the upload server")
}
