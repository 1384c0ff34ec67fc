package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"notespace/client/internal/upload"
)

var serveCmd = &cobra.Command{
	Use:   "upload-server",
	Short: "Serve the image upload route for the block editor",
	Long: `Starts the HTTP server behind the image tool: POST /api/upload-image stores
an image and GET /uploads/{name} serves it back. Files go to a local
directory, or to an S3-compatible bucket when minio_endpoint is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()
		cfg := env.cfg
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.UploadAddr = addr
		}

		var storage upload.Storage
		if cfg.MinioEndpoint != "" {
			env.logger.Info("using object storage for uploads", "endpoint", cfg.MinioEndpoint, "bucket", cfg.MinioBucket)
			storage, err = upload.NewMinioStorage(cmd.Context(), upload.MinioConfig{
				Endpoint:  cfg.MinioEndpoint,
				AccessKey: cfg.MinioAccessKey,
				SecretKey: cfg.MinioSecretKey,
				Bucket:    cfg.MinioBucket,
				UseSSL:    cfg.MinioUseSSL,
			})
		} else {
			env.logger.Info("using local directory for uploads", "dir", cfg.UploadDir)
			storage, err = upload.NewDiskStorage(cfg.UploadDir)
		}
		if err != nil {
			return err
		}

		handler := upload.NewServer(storage, upload.Config{
			BaseURL:    cfg.UploadBaseURL,
			CORSOrigin: cfg.CORSOrigin,
			Logger:     env.logger,
			Metrics:    env.metrics,
			Gatherer:   env.registry,
		}).Handler()
		server := &http.Server{
			Addr:              cfg.UploadAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			env.logger.Info("upload server listening", "addr", cfg.UploadAddr)
			serverErrors <- server.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("upload server: %w", err)
		case sig := <-shutdown:
			env.logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				env.logger.Error("graceful shutdown did not complete", "error", err)
				return server.Close()
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides upload_addr)")
}
