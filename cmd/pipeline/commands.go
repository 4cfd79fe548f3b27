package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/Milan232323/watermarking1/internal/client"
	"github.com/spf13/cobra"
)

const pollInterval = time.Second

func newRunCommand(apiURL *string) *cobra.Command {
	var chunkSize int
	var outputDir string
	var keep bool

	cmd := &cobra.Command{
		Use:   "run <video> <watermark-image>",
		Short: "Upload a video and watermark, run the pipeline, download the results",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := client.New(*apiURL)

			fmt.Println("uploading video...")
			videoRef, err := c.UploadFile(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println("uploading watermark...")
			imageRef, err := c.UploadFile(ctx, args[1])
			if err != nil {
				return err
			}

			jobID, err := c.RunPipeline(ctx, videoRef, imageRef, chunkSize)
			if err != nil {
				return err
			}
			fmt.Printf("job started: %s\n", jobID)

			lastPercent := -1
			progress, err := c.WaitForCompletion(ctx, jobID, pollInterval, func(p client.Progress) {
				if p.Percent != lastPercent {
					fmt.Printf("  %3d%%  (%d/%d watermarked, %d/%d thumbnails)\n",
						p.Percent, p.Watermarked, p.TotalChunks, p.Thumbnailed, p.TotalChunks)
					lastPercent = p.Percent
				}
			})
			if err != nil {
				return err
			}
			fmt.Printf("job %s finished with status %s\n", jobID, progress.Status)

			videoOut := filepath.Join(outputDir, jobID+"_output_video.mp4")
			if err := c.Download(ctx, jobID, "output_video", videoOut); err != nil {
				return err
			}
			fmt.Println("saved", videoOut)

			thumbOut := filepath.Join(outputDir, jobID+"_output_thumbnail.jpg")
			if err := c.Download(ctx, jobID, "output_thumbnail", thumbOut); err != nil {
				return err
			}
			fmt.Println("saved", thumbOut)

			if !keep {
				deleted, err := c.Cleanup(ctx, jobID)
				if err != nil {
					return err
				}
				fmt.Printf("cleaned up %d stored files\n", deleted)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Frames per chunk (0 uses the server default)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Directory for the downloaded results")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep intermediate files in storage after download")
	return cmd
}

func newProgressCommand(apiURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <job-id>",
		Short: "Show a job's current progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := client.New(*apiURL).Progress(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("status: %s\npercent: %d\nchunks: %d\nwatermarked: %d\nthumbnails: %d\n",
				p.Status, p.Percent, p.TotalChunks, p.Watermarked, p.Thumbnailed)
			if p.ErrorMessage != "" {
				fmt.Println("error:", p.ErrorMessage)
			}
			return nil
		},
	}
}

func newDownloadCommand(apiURL *string) *cobra.Command {
	var artifactType string
	var out string

	cmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Download a finished job's output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := out
			if dest == "" {
				ext := ".mp4"
				if artifactType == "output_thumbnail" {
					ext = ".jpg"
				}
				dest = args[0] + "_" + artifactType + ext
			}
			if err := client.New(*apiURL).Download(cmd.Context(), args[0], artifactType, dest); err != nil {
				return err
			}
			fmt.Println("saved", dest)
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactType, "type", "output_video", "Artifact to download (output_video or output_thumbnail)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Destination path")
	return cmd
}

func newCleanupCommand(apiURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <job-id>",
		Short: "Delete a job's stored files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := client.New(*apiURL).Cleanup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d files\n", deleted)
			return nil
		},
	}
}
