package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/cekrek/internal/config"
	"github.com/kalambet/cekrek/internal/history"
	"github.com/kalambet/cekrek/internal/provider"
	"github.com/kalambet/cekrek/internal/session"
	"github.com/kalambet/cekrek/internal/validate"
)

// --- check ---

var checkCmd = &cobra.Command{
	Use:   "check <number>",
	Short: "Look up the holder name of an account or e-wallet number",
	Long: `Look up the holder name of an account or e-wallet number.

Examples:
  cekrek check --provider bca 1234567890
  cekrek check --type ewallet --provider dana 0812-3456-7890
  cekrek check --provider mandiri 1234567890 --save-as "Rent"
  cekrek check --provider bni 1234567890 --incognito --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typeStr, _ := cmd.Flags().GetString("type")
		code, _ := cmd.Flags().GetString("provider")
		incognito, _ := cmd.Flags().GetBool("incognito")
		asJSON, _ := cmd.Flags().GetBool("json")
		saveAs, _ := cmd.Flags().GetString("save-as")

		if code == "" {
			return fmt.Errorf("--provider is required (see cekrek providers)")
		}
		t, err := provider.ParseType(typeStr)
		if err != nil {
			return err
		}
		if incognito && saveAs != "" {
			return fmt.Errorf("--save-as cannot be used with --incognito")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		a.session.SetIncognito(incognito)
		if !asJSON {
			printStep("Checking %s %s...", code, validate.Clean(args[0]))
		}

		out, err := a.session.Submit(cmd.Context(), session.Request{AccountType: t, ProviderCode: code, Number: args[0]})
		if err != nil {
			var verr *validate.Error
			if errors.As(err, &verr) {
				return errors.New(validate.Message(t, verr.Reason))
			}
			return err
		}

		if asJSON {
			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
		} else {
			printOutcome(cmd.OutOrStdout(), out)
		}

		if out.Error != "" {
			return errReported
		}

		if saveAs != "" {
			fav, err := a.session.SaveFavorite(saveAs)
			if err != nil {
				return err
			}
			if !asJSON {
				printSuccess("Saved as favorite %q (%s)", fav.Label, fav.ID)
			}
		}
		return nil
	},
}

func printOutcome(w io.Writer, out session.Outcome) {
	if out.Error != "" {
		printError("%s", out.Error)
		return
	}
	res := out.Result
	if res.Success {
		printSuccess("%s", res.Message)
	} else {
		printWarning("%s", out.Notice)
	}
	if res.HolderName != "" {
		fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "Holder:"), res.HolderName)
	}
	fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "Number:"), res.AccountNumber)
	fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "Provider:"), res.ProviderLabel)
}

func init() {
	checkCmd.Flags().String("type", "bank", "account type: bank or ewallet")
	checkCmd.Flags().String("provider", "", "provider code, e.g. bca or dana")
	checkCmd.Flags().Bool("incognito", false, "do not record this search in history")
	checkCmd.Flags().Bool("json", false, "print the outcome as JSON")
	checkCmd.Flags().String("save-as", "", "save a successful result as a favorite with this label")
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate <number>",
	Short: "Check a number's format without contacting the service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typeStr, _ := cmd.Flags().GetString("type")
		t, err := provider.ParseType(typeStr)
		if err != nil {
			return err
		}

		res := validate.Validate(args[0], t)
		switch {
		case res.Cleaned == "":
			printWarning("no digits in %q", args[0])
		case res.Valid:
			printSuccess("%s is a valid %s number", res.Cleaned, t)
		default:
			printError("%s: %s", res.Cleaned, validate.Message(t, res.Reason))
			return errReported
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().String("type", "bank", "account type: bank or ewallet")
}

// --- providers ---

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List supported banks and e-wallets",
	RunE: func(cmd *cobra.Command, args []string) error {
		typeStr, _ := cmd.Flags().GetString("type")
		search, _ := cmd.Flags().GetString("search")
		popular, _ := cmd.Flags().GetBool("popular")

		t, err := provider.ParseType(typeStr)
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		cat := a.session.Catalog()
		entries := cat.Filter(t, search, popular)
		if len(entries) == 0 {
			printWarning("no %s providers match %q", t, search)
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CODE\tNAME")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\n", e.Code, e.DisplayName)
		}
		return tw.Flush()
	},
}

func init() {
	providersCmd.Flags().String("type", "bank", "account type: bank or ewallet")
	providersCmd.Flags().String("search", "", "filter by name")
	providersCmd.Flags().Bool("popular", false, "only the most used providers")
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear search history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the last searches, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.history.LoadHistory()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			printStep("History is empty")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tTYPE\tPROVIDER\tNUMBER\tHOLDER")
		for _, e := range entries {
			holder := e.Result.HolderName
			if !e.Result.Success {
				holder = "(not found)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				time.UnixMilli(e.Timestamp).Format("2006-01-02 15:04"), e.AccountType, e.ProviderCode, e.RawNumber, holder)
		}
		return tw.Flush()
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete search history and recent searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.history.ClearHistory(); err != nil {
			return err
		}
		printSuccess("History cleared")
		return nil
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently searched numbers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		recents, err := a.history.LoadRecents()
		if err != nil {
			return err
		}
		for _, n := range recents {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd, historyClearCmd)
}

// --- favorites ---

var favoritesCmd = &cobra.Command{
	Use:     "favorites",
	Aliases: []string{"fav"},
	Short:   "Manage saved accounts",
}

var favoritesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		favs, err := a.history.LoadFavorites()
		if err != nil {
			return err
		}
		if len(favs) == 0 {
			printStep("No favorites yet; save one with cekrek check --save-as <label>")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tLABEL\tTYPE\tPROVIDER\tNUMBER\tHOLDER")
		for _, f := range favs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", f.ID, f.Label, f.AccountType, f.ProviderCode, f.RawNumber, f.HolderNameSnapshot)
		}
		return tw.Flush()
	},
}

var favoritesRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a saved account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.history.Favorite(args[0]); errors.Is(err, history.ErrNotFound) {
			printWarning("No favorite with id %s", args[0])
			return nil
		}
		if err := a.history.RemoveFavorite(args[0]); err != nil {
			return err
		}
		printSuccess("Removed favorite %s", args[0])
		return nil
	},
}

func init() {
	favoritesCmd.AddCommand(favoritesListCmd, favoritesRemoveCmd)
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

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
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

		printSuccess("Set %s in %s", key, config.FilePath())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
