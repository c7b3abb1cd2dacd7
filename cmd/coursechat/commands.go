package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/coursechat/internal/config"
	"github.com/kalambet/coursechat/internal/search"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest the configured docs folder into the index",
	Long: `Ingest the configured docs folder into the index.

Examples:
  coursechat ingest
  coursechat ingest --clear`,
	RunE: func(cmd *cobra.Command, args []string) error {
		clear, _ := cmd.Flags().GetBool("clear")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Ingesting course documents...")
		resp, err := client.post(cmd.Context(), "/api/ingest", map[string]any{
			"clear_existing": clear,
		})
		if err != nil {
			return err
		}

		var result map[string]int
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Added %d courses (%d chunks)", result["courses_added"], result["chunks_added"])
		return nil
	},
}

func init() {
	ingestCmd.Flags().Bool("clear", false, "clear existing course data before ingesting")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the course materials",
	Long: `Ask a question about the course materials.

Examples:
  coursechat ask "What is covered in lesson 3 of the MCP course?"
  coursechat ask --session session_1 "And the lesson after that?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		sessionID, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/query", map[string]any{
			"query":      question,
			"session_id": sessionID,
		})
		if err != nil {
			return err
		}

		var result struct {
			Answer    string          `json:"answer"`
			Sources   []search.Source `json:"sources"`
			SessionID string          `json:"session_id"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Answer)

		if len(result.Sources) > 0 {
			fmt.Println()
			fmt.Println(colorize(colorBold, "Sources:"))
			for _, s := range result.Sources {
				if s.Link != "" {
					fmt.Printf("  %s (%s)\n", s.Title, s.Link)
				} else {
					fmt.Printf("  %s\n", s.Title)
				}
			}
		}

		printStatus("Session", "%s", result.SessionID)
		return nil
	},
}

func init() {
	askCmd.Flags().String("session", "", "session ID to continue a conversation")
}

// --- courses ---

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "List indexed courses",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/courses")
		if err != nil {
			return err
		}

		var result struct {
			TotalCourses int      `json:"total_courses"`
			CourseTitles []string `json:"course_titles"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.TotalCourses == 0 {
			fmt.Println("No courses indexed yet. Run `coursechat ingest` first.")
			return nil
		}

		fmt.Printf("%s (%d)\n", colorize(colorBold, "Courses"), result.TotalCourses)
		for _, title := range result.CourseTitles {
			fmt.Printf("  %s\n", title)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
