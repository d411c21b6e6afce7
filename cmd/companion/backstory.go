package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/easeaico/companion/internal/backstory"
	"github.com/easeaico/companion/internal/companion"
)

var (
	backstoryFile string
	backstorySave bool
	relationship  backstory.Relationship
)

func init() {
	for _, c := range []*cobra.Command{backstoryEvaluateCmd, backstoryImproveCmd} {
		addBackstoryFlags(c.Flags())
	}
	backstoryImproveCmd.Flags().BoolVar(&backstorySave, "save", false, "store the improved backstory on your companion")

	backstoryCmd.AddCommand(backstoryEvaluateCmd)
	backstoryCmd.AddCommand(backstoryImproveCmd)
	rootCmd.AddCommand(backstoryCmd)
}

func addBackstoryFlags(f *pflag.FlagSet) {
	f.StringVarP(&backstoryFile, "file", "f", "", "read the backstory from a file instead of your companion")
	f.StringVar(&relationship.HowYouMet, "how-met", "", "how you met")
	f.StringVar(&relationship.Duration, "duration", "", "how long you have been together")
	f.StringVar(&relationship.LivingSituation, "living", "", "living situation, e.g. living_together")
	f.StringVar(&relationship.HomeDescription, "home", "", "what your home is like")
	f.StringVar(&relationship.PartnerQuirks, "quirks", "", "partner quirks")
	f.StringVar(&relationship.SharedMemories, "shared", "", "shared memories")
	f.StringVar(&relationship.RelationshipDynamics, "dynamics", "", "relationship dynamics")
}

var backstoryCmd = &cobra.Command{
	Use:   "backstory",
	Short: "Score or rewrite your companion's backstory",
}

var backstoryEvaluateCmd = &cobra.Command{
	Use:   "evaluate [text]",
	Short: "Score a backstory on detail, consistency, emotional depth and uniqueness",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		text, _, err := backstoryText(ctx, a, args)
		if err != nil {
			return err
		}
		score, err := a.backstory.Evaluate(ctx, backstory.Input{Backstory: text, Relationship: &relationship})
		if err != nil {
			return err
		}
		return printJSON(score)
	},
}

var backstoryImproveCmd = &cobra.Command{
	Use:   "improve [text]",
	Short: "Rewrite a backstory with the model and score the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		text, c, err := backstoryText(ctx, a, args)
		if err != nil {
			return err
		}
		improved, err := a.backstory.Improve(ctx, backstory.ImproveInput{
			Input:           backstory.Input{Backstory: text, Relationship: &relationship},
			CompanionName:   c.name,
			CompanionGender: c.gender,
		})
		if err != nil {
			return err
		}
		if backstorySave {
			if _, err := a.companions.Update(ctx, userID, companion.Settings{Backstory: &improved.Backstory}); err != nil {
				return fmt.Errorf("failed to save backstory: %w", err)
			}
			fmt.Fprintln(os.Stderr, "Backstory saved")
		}
		return printJSON(improved)
	},
}

type companionInfo struct {
	name   string
	gender string
}

// backstoryText picks the text from args, --file, or the stored companion, in that order.
func backstoryText(ctx context.Context, a *app, args []string) (string, companionInfo, error) {
	c, err := a.companions.Get(ctx, userID)
	if err != nil {
		return "", companionInfo{}, err
	}
	info := companionInfo{name: c.Name, gender: string(c.Gender)}

	switch {
	case len(args) > 0:
		return strings.Join(args, " "), info, nil
	case backstoryFile != "":
		data, err := os.ReadFile(backstoryFile)
		if err != nil {
			return "", info, fmt.Errorf("failed to read %s: %w", backstoryFile, err)
		}
		return string(data), info, nil
	default:
		return c.Backstory, info, nil
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
