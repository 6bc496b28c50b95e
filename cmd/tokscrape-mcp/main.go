// Command tokscrape-mcp exposes the tokscrape API as MCP tools over stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/tokscrape/models"
)

// jobWaitLimit bounds how long a tool call waits for a job.
const jobWaitLimit = 10 * time.Minute

func main() {
	_ = godotenv.Load()

	apiURL := os.Getenv("TOKSCRAPE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}
	client := newAPIClient(strings.TrimRight(apiURL, "/"), os.Getenv("TOKSCRAPE_API_KEY"))

	if err := server.ServeStdio(newServer(client)); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(client *apiClient) *server.MCPServer {
	s := server.NewMCPServer(
		"tokscrape",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("scrape_video",
		mcp.WithDescription("Scrape one TikTok video page and return the stored record (author, description, counts, hashtags, media URLs). Waits for the job to finish."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("TikTok video URL, e.g. https://www.tiktok.com/@user/video/1234567890"),
		),
	), handleScrapeVideo(client))

	s.AddTool(mcp.NewTool("scrape_batch",
		mcp.WithDescription("Scrape several TikTok video pages in one job. Non-TikTok URLs are skipped. Waits for the job to finish unless wait is false."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of TikTok video URLs"),
			mcp.WithStringItems(),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Wait for completion (default true). When false, returns the job id immediately."),
		),
	), handleScrapeBatch(client))

	s.AddTool(mcp.NewTool("get_job",
		mcp.WithDescription("Get the status and results of a scrape job."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job id returned by scrape_video or scrape_batch"),
		),
	), handleGetJob(client))

	s.AddTool(mcp.NewTool("api_status",
		mcp.WithDescription("Check whether the tokscrape API is online."),
	), handleAPIStatus(client))

	return s
}

func handleScrapeVideo(client *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		accepted, err := client.submitScrape(ctx, url)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scrape request failed: %v", err)), nil
		}

		waitCtx, cancel := context.WithTimeout(ctx, jobWaitLimit)
		defer cancel()
		job, err := client.waitJob(waitCtx, accepted.JobID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("waiting for job %s failed: %v", accepted.JobID, err)), nil
		}
		if job.Succeeded == 0 {
			return mcp.NewToolResultError(formatJob(job)), nil
		}
		return mcp.NewToolResultText(formatJob(job)), nil
	}
}

func handleScrapeBatch(client *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil {
			return mcp.NewToolResultError("urls is required and must be an array of strings"), nil
		}

		accepted, err := client.submitBatch(ctx, urls)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch request failed: %v", err)), nil
		}

		var header strings.Builder
		fmt.Fprintf(&header, "Job %s accepted for %d URLs\n", accepted.JobID, accepted.Count)
		for _, s := range accepted.Skipped {
			fmt.Fprintf(&header, "skipped (not a TikTok URL): %s\n", s)
		}
		if !request.GetBool("wait", true) {
			return mcp.NewToolResultText(header.String()), nil
		}

		waitCtx, cancel := context.WithTimeout(ctx, jobWaitLimit)
		defer cancel()
		job, err := client.waitJob(waitCtx, accepted.JobID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("waiting for job %s failed: %v", accepted.JobID, err)), nil
		}
		return mcp.NewToolResultText(header.String() + "\n" + formatJob(job)), nil
	}
}

func handleGetJob(client *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("job_id")
		if err != nil {
			return mcp.NewToolResultError("job_id is required"), nil
		}
		job, err := client.job(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("job lookup failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatJob(job)), nil
	}
}

func handleAPIStatus(client *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := client.status(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API unreachable: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("API %s (%s) at %s", st.Status, st.Environment, st.Timestamp)), nil
	}
}

func formatJob(job *models.Job) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Job %s: %s (%d/%d completed, %d succeeded)\n\n",
		job.ID, job.Status, job.Completed, job.Total, job.Succeeded)

	for i, r := range job.Results {
		switch {
		case r.Success && r.Record != nil:
			rec := r.Record
			fmt.Fprintf(&sb, "--- [%d] %s ---\n", i+1, r.URL)
			fmt.Fprintf(&sb, "id: %s\nauthor: %s (@%s)\n", rec.ID, rec.Author, rec.Username)
			fmt.Fprintf(&sb, "description: %s\n", rec.Description)
			fmt.Fprintf(&sb, "likes: %s  comments: %s  shares: %s  views: %s\n", rec.Likes, rec.Comments, rec.Shares, rec.Views)
			if len(rec.Hashtags) > 0 {
				fmt.Fprintf(&sb, "hashtags: %s\n", strings.Join(rec.Hashtags, " "))
			}
			if rec.AudioInfo != "" {
				fmt.Fprintf(&sb, "audio: %s\n", rec.AudioInfo)
			}
			if rec.VideoURL != "" {
				fmt.Fprintf(&sb, "video: %s\n", rec.VideoURL)
			}
			sb.WriteString("\n")
		case r.Error != nil:
			fmt.Fprintf(&sb, "--- [%d] FAILED %s: [%s] %s ---\n\n", i+1, r.URL, r.Error.Code, r.Error.Message)
		case i < len(job.URLs):
			fmt.Fprintf(&sb, "--- [%d] pending %s ---\n\n", i+1, job.URLs[i])
		}
	}
	return sb.String()
}
