package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wiki-companion/catalog"
	"wiki-companion/favorites"
)

var catalogQuery catalog.Query
var catalogKind string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print catalog entries as JSON",
	Long: `Prints the characters, weapons or materials matching the filters.

Example:
  wiki catalog --kind characters --where 'rarity == 5 && element == "pyro"' --sort name`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := catalog.Default()
		if err != nil {
			return err
		}
		var out any
		switch catalogKind {
		case "characters":
			out, err = cat.Characters(catalogQuery)
		case "weapons":
			out, err = cat.Weapons(catalogQuery)
		case "materials":
			out, err = cat.Materials(catalogQuery)
		case "tiers":
			out = cat.Tiers()
		default:
			return fmt.Errorf("unknown kind %q (characters, weapons, materials, tiers)", catalogKind)
		}
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var (
	favoritesSort     string
	favoritesCategory string
	favoriteRecord    favorites.Record
)

var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "Inspect or edit the stored favorites",
}

var favoritesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorites",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		by := favorites.Sort(favoritesSort)
		if by != favorites.SortRecent && by != favorites.SortTitle {
			return fmt.Errorf("unknown sort %q (recent, title)", favoritesSort)
		}
		return withFavorites(func(m *favorites.Manager) error {
			return printFavorites(cmd.OutOrStdout(), m.List(by, favoritesCategory))
		})
	},
}

var favoritesAddCmd = &cobra.Command{
	Use:   "add [id]",
	Short: "Add a favorite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := favoriteRecord
		r.ID = args[0]
		return withFavorites(func(m *favorites.Manager) error {
			if !m.Add(cmd.Context(), r) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already a favorite\n", r.ID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", r.ID)
			return nil
		})
	},
}

var favoritesRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a favorite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFavorites(func(m *favorites.Manager) error {
			if !m.Remove(cmd.Context(), args[0]) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not a favorite\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		})
	},
}

func init() {
	f := catalogCmd.Flags()
	f.StringVarP(&catalogKind, "kind", "k", "characters", "characters, weapons, materials or tiers")
	f.StringVarP(&catalogQuery.Search, "search", "q", "", "Case-insensitive name or id substring")
	f.StringVar(&catalogQuery.Element, "element", "", "Character element")
	f.StringVar(&catalogQuery.Weapon, "weapon", "", "Weapon type")
	f.IntVar(&catalogQuery.Rarity, "rarity", 0, "Exact rarity")
	f.StringVar(&catalogQuery.Kind, "material-kind", "", "Material kind")
	f.StringVar(&catalogQuery.Where, "where", "", "Filter expression over entry fields")
	f.StringVar(&catalogQuery.Sort, "sort", catalog.SortName, "name or rarity")

	favoritesListCmd.Flags().StringVar(&favoritesSort, "sort", string(favorites.SortRecent), "recent or title")
	favoritesListCmd.Flags().StringVar(&favoritesCategory, "category", "", "Only this category")

	favoritesAddCmd.Flags().StringVar(&favoriteRecord.Title, "title", "", "Display title")
	favoritesAddCmd.Flags().StringVar(&favoriteRecord.URL, "url", "", "Page URL")
	favoritesAddCmd.Flags().StringVar(&favoriteRecord.Category, "category", "", "Category")

	favoritesCmd.AddCommand(favoritesListCmd, favoritesAddCmd, favoritesRemoveCmd)
}

// withFavorites opens the configured store, runs fn and closes it again.
func withFavorites(fn func(*favorites.Manager) error) error {
	st, err := openStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing storage", zap.Error(err))
		}
	}()

	m := favorites.NewManager(st.store, favorites.WithLogger(logger.Named("favorites")))
	defer m.Close()
	return fn(m)
}

func printFavorites(w io.Writer, records []favorites.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tURL")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Title, r.Category, r.URL)
	}
	return tw.Flush()
}
