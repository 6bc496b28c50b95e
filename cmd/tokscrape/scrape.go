package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/use-agent/tokscrape/config"
	"github.com/use-agent/tokscrape/models"
	"github.com/use-agent/tokscrape/pipeline"
)

func newScrapeCmd(cfg *config.Config) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "scrape [url...]",
		Short: "Scrape TikTok video URLs and store the records",
		Example: `  tokscrape scrape https://www.tiktok.com/@user/video/1234567890
  tokscrape scrape --batch urls.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			urls, err := collectURLs(args, file)
			if err != nil {
				return err
			}

			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			results := a.pipeline.Run(cmd.Context(), urls)
			for _, r := range results {
				if !r.Success {
					fmt.Fprintf(cmd.ErrOrStderr(), "failed %s: %s: %s\n", r.URL, r.Error.Code, r.Error.Message)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d out of %d URLs processed successfully\n",
				pipeline.Succeeded(results), len(results))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "batch", "b", "", "file with one URL per line")
	cmd.Flags().StringVar(&file, "file", "", "alias for --batch")
	return cmd
}

// collectURLs merges positional URLs with the lines of file and drops
// everything that is not a TikTok URL. It fails when nothing is left.
func collectURLs(args []string, file string) ([]string, error) {
	candidates := append([]string(nil), args...)
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "cannot read url file "+file, err)
		}
		defer f.Close()
		lines, err := readURLLines(f)
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "cannot read url file "+file, err)
		}
		candidates = append(candidates, lines...)
	}

	var urls []string
	for _, u := range candidates {
		if err := models.ValidateVideoURL(u); err != nil {
			slog.Warn("skipping invalid url", "url", u, "error", err)
			continue
		}
		urls = append(urls, strings.TrimSpace(u))
	}
	if len(urls) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "no valid TikTok URLs provided", nil)
	}
	return urls, nil
}

// readURLLines returns the non-blank lines of r, skipping "#" comments.
func readURLLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}
