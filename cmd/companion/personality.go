package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/easeaico/companion/internal/companion"
	"github.com/easeaico/companion/internal/memory"
	"github.com/easeaico/companion/internal/prompt"
	"github.com/easeaico/companion/internal/types"
)

var (
	promptDefault bool
	promptMessage string
	promptReply   string
)

func init() {
	addSettingsFlags(personalitySetCmd.Flags())

	promptCmd.Flags().BoolVar(&promptDefault, "default", false, "render for the default companion without touching the database")
	promptCmd.Flags().StringVar(&promptMessage, "message", "Hi!", "new user message to append")
	promptCmd.Flags().StringVar(&promptReply, "reply", "", "quote this text as the message being replied to")

	personalityCmd.AddCommand(personalityShowCmd)
	personalityCmd.AddCommand(personalitySetCmd)
	rootCmd.AddCommand(personalityCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(classifyCmd)
}

var personalityCmd = &cobra.Command{
	Use:   "personality",
	Short: "Show or change your companion's personality",
}

var personalityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the companion's personality profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		c, err := a.companions.Get(cmd.Context(), userID)
		if err != nil {
			return err
		}
		return printCompanion(os.Stdout, c)
	},
}

var personalitySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update personality settings; unset flags keep their value",
	Long: `Update personality settings. Only the flags you pass are changed.

Examples:
  companion personality set --affection 8 --humor witty
  companion personality set --name Sam --gender female --pronouns she/her`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := settingsFromFlags(cmd.Flags())
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		c, err := a.companions.Update(cmd.Context(), userID, settings)
		if err != nil {
			return err
		}
		fmt.Println("Personality updated")
		return printCompanion(os.Stdout, c)
	},
}

func addSettingsFlags(f *pflag.FlagSet) {
	f.String("name", "", "companion name")
	f.String("gender", "", "male, female or non-binary")
	f.Int("affection", 0, "affection level (1-10)")
	f.Int("empathy", 0, "empathy level (1-10)")
	f.Int("curiosity", 0, "curiosity level (1-10)")
	f.Int("playfulness", 0, "playfulness level (1-10)")
	f.String("humor", "", "playful, witty, gentle, sarcastic or serious")
	f.String("communication", "", "casual, formal, intimate or professional")
	f.String("address", "", "how the companion addresses you")
	f.String("pronouns", "", "companion pronouns")
	f.String("backstory", "", "companion backstory")
	f.String("avatar", "", "avatar URL")
}

// settingsFromFlags sets only the fields whose flags were passed.
func settingsFromFlags(flags *pflag.FlagSet) (companion.Settings, error) {
	var s companion.Settings

	str := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}
	num := func(name string) *int {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetInt(name)
		return &v
	}

	s.Name = str("name")
	s.PreferredAddress = str("address")
	s.Pronouns = str("pronouns")
	s.Backstory = str("backstory")
	s.AvatarURL = str("avatar")
	s.Affection = num("affection")
	s.Empathy = num("empathy")
	s.Curiosity = num("curiosity")
	s.Playfulness = num("playfulness")

	if v := str("gender"); v != nil {
		g := types.Gender(strings.ToLower(*v))
		s.Gender = &g
	}
	if v := str("humor"); v != nil {
		h := types.HumorStyle(strings.ToLower(*v))
		if !types.ValidHumorStyle(h) {
			return s, fmt.Errorf("%w: unknown humor style %q", prompt.ErrInvalidPersonality, *v)
		}
		s.HumorStyle = &h
	}
	if v := str("communication"); v != nil {
		c := types.CommunicationStyle(strings.ToLower(*v))
		if !types.ValidCommunicationStyle(c) {
			return s, fmt.Errorf("%w: unknown communication style %q", prompt.ErrInvalidPersonality, *v)
		}
		s.CommunicationStyle = &c
	}
	return s, nil
}

func printCompanion(w io.Writer, c *types.Companion) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", c.Name)
	fmt.Fprintf(tw, "Gender:\t%s (%s)\n", c.Gender, c.Pronouns)
	fmt.Fprintf(tw, "Calls you:\t%s\n", c.PreferredAddress)
	fmt.Fprintf(tw, "Humor:\t%s\n", c.HumorStyle)
	fmt.Fprintf(tw, "Communication:\t%s\n", c.CommunicationStyle)
	traits := []struct {
		trait prompt.Trait
		label string
		level int
	}{
		{prompt.TraitAffection, "Affection", c.Affection},
		{prompt.TraitEmpathy, "Empathy", c.Empathy},
		{prompt.TraitCuriosity, "Curiosity", c.Curiosity},
		{prompt.TraitPlayfulness, "Playfulness", c.Playfulness},
	}
	for _, t := range traits {
		fmt.Fprintf(tw, "%s:\t%d/10\t%s\t%s\n", t.label, t.level, prompt.Band(t.level), prompt.Description(t.trait, t.level))
	}
	if c.Backstory != "" {
		fmt.Fprintf(tw, "Backstory:\t%s\n", c.Backstory)
	}
	if c.IsDefault {
		fmt.Fprintln(tw, "\t(default companion, not customised yet)")
	}
	return tw.Flush()
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Render the assembled prompt for your companion",
	Long: `Assemble the prompt exactly as a chat turn would, without calling the model.
Recent turns are read from the active conversation unless --default is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		in := prompt.Input{NewMessage: promptMessage}
		if promptReply != "" {
			in.Reply = &prompt.ReplyContext{OriginalContent: promptReply, Role: types.RoleAssistant}
		}

		historyLimit := prompt.DefaultHistoryLimit
		if promptDefault {
			def := types.DefaultCompanion(userID)
			in.Companion = &def
		} else {
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			historyLimit = a.cfg.HistoryLimit
			if in.Companion, err = a.companions.Get(ctx, userID); err != nil {
				return err
			}
			h, err := a.chat.History(ctx, userID)
			if err != nil {
				return err
			}
			in.RecentTurns = h.Messages
		}

		p, err := prompt.NewBuilder(historyLimit).Build(in)
		if err != nil {
			return err
		}
		fmt.Println(p.System)
		fmt.Println("\n--- messages ---")
		for _, m := range p.Messages {
			fmt.Printf("%s: %s\n", m.Role, m.Content)
		}
		return nil
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <message>",
	Short: "Show what the memory classifier decides for a message",
	Long: `Run the memory classifier on a message offline. No database or model is used.

Example:
  companion classify "When I was little I loved to eat raw sugar"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d := memory.Classify(strings.Join(args, " "))
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "Store:\t%t\n", d.ShouldStore)
		if d.ShouldStore {
			fmt.Fprintf(tw, "Category:\t%s\n", d.Category)
			fmt.Fprintf(tw, "Importance:\t%d\n", d.Importance)
			fmt.Fprintf(tw, "Tags:\t%s\n", strings.Join(d.Tags, ", "))
		}
		if d.EmotionalContext != types.EmotionNone {
			fmt.Fprintf(tw, "Emotion:\t%s\n", d.EmotionalContext)
		}
		return tw.Flush()
	},
}
