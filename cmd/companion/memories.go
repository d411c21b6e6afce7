package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/easeaico/companion/internal/memory"
	"github.com/easeaico/companion/internal/types"
)

var (
	memoriesLimit int

	memoryImportance int
	memoryCategory   string
	memoryTags       []string
)

func init() {
	memoriesListCmd.Flags().IntVar(&memoriesLimit, "limit", 50, "maximum number of memories to show (max 100)")

	memoriesAddCmd.Flags().IntVar(&memoryImportance, "importance", 5, "importance (1-10)")
	memoriesAddCmd.Flags().StringVar(&memoryCategory, "category", string(types.CategoryPersonal),
		"personal, preference, relationship, experience, knowledge or emotion")
	memoriesAddCmd.Flags().StringSliceVar(&memoryTags, "tags", nil, "comma-separated tags")

	memoriesCmd.AddCommand(memoriesListCmd)
	memoriesCmd.AddCommand(memoriesAddCmd)
	memoriesCmd.AddCommand(memoriesHideCmd)
	memoriesCmd.AddCommand(memoriesSearchCmd)
	rootCmd.AddCommand(memoriesCmd)
}

var memoriesCmd = &cobra.Command{
	Use:   "memories",
	Short: "Manage what your companion remembers about you",
}

var memoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List visible memories, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		mems, err := a.memories.List(cmd.Context(), userID, memoriesLimit)
		if err != nil {
			return err
		}
		if len(mems) == 0 {
			fmt.Println("No memories yet")
			return nil
		}
		return printMemories(os.Stdout, mems, nil)
	},
}

var memoriesAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Add a memory by hand",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.close()

		c, err := a.companions.Get(ctx, userID)
		if err != nil {
			return err
		}
		mem, err := a.memories.Create(ctx, memory.CreateRequest{
			UserID:      userID,
			CompanionID: c.ID,
			Content:     strings.Join(args, " "),
			Importance:  memoryImportance,
			Category:    types.MemoryCategory(strings.ToLower(memoryCategory)),
			Tags:        memoryTags,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Memory saved: %s\n", mem.ID)
		return nil
	},
}

var memoriesHideCmd = &cobra.Command{
	Use:   "hide <memory-id>",
	Short: "Hide a memory so the companion no longer uses it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.memories.Hide(cmd.Context(), userID, args[0]); err != nil {
			return err
		}
		fmt.Println("Memory hidden")
		return nil
	},
}

var memoriesSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find memories semantically close to a query (needs GOOGLE_API_KEY)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		if !a.cfg.EmbeddingsEnabled() {
			return fmt.Errorf("semantic search needs GOOGLE_API_KEY")
		}
		found, err := a.memories.Search(cmd.Context(), userID, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Println("No matching memories")
			return nil
		}
		mems := make([]types.Memory, len(found))
		scores := make([]float64, len(found))
		for i, r := range found {
			mems[i] = r.Memory
			scores[i] = r.Similarity
		}
		return printMemories(os.Stdout, mems, scores)
	},
}

// printMemories writes a table; scores, when set, adds a similarity column.
func printMemories(w io.Writer, mems []types.Memory, scores []float64) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := "ID\tIMPORTANCE\tCATEGORY\tTAGS\tCONTENT"
	if scores != nil {
		header = "SIMILARITY\t" + header
	}
	fmt.Fprintln(tw, header)
	for i, m := range mems {
		if scores != nil {
			fmt.Fprintf(tw, "%.3f\t", scores[i])
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", m.ID, m.Importance, m.Category, strings.Join(m.Tags, ","), m.Content)
	}
	return tw.Flush()
}
