package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/starseeker/starseeker/internal/api/models"
	"github.com/starseeker/starseeker/internal/favourites"
	"github.com/starseeker/starseeker/internal/network"
)

func (c *CLI) favouritesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fav",
		Aliases: []string{"favourites", "favorites"},
		Short:   "Manage favourite gates and routes",
		GroupID: "favourites",
	}
	cmd.AddCommand(
		c.favGatesCommand(),
		c.favRoutesCommand(),
		c.toggleGateCommand(),
		c.removeGateCommand(),
		c.toggleRouteCommand(),
		c.removeRouteCommand(),
	)
	return cmd
}

func (c *CLI) favGatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gates",
		Short: "List favourite gates, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			items := c.app.Gates.Favourites()
			return c.printer().Print(models.FavouriteGateList{Items: items, Count: len(items)}, func(t *table) {
				t.Header("CODE", "NAME", "SYSTEM", "ADDED")
				t.Empty("No favourite gates yet.")
				for _, g := range items {
					t.Row(g.Code, g.Name, g.System, formatTime(g.Time()))
				}
			})
		},
	}
}

func (c *CLI) favRoutesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List favourite routes, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			items := c.app.Routes.Favourites()
			return c.printer().Print(models.SavedRouteList{Items: items, Count: len(items)}, func(t *table) {
				savedRoutesTable(t, items, "No favourite routes yet.")
			})
		},
	}
}

func (c *CLI) toggleGateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle-gate <code>",
		Short: "Add a gate to the favourites, or remove it if it already is one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := normalizeCode(args[0])
			if err := network.ValidateGateCode("code", code); err != nil {
				return err
			}

			now, saved, err := c.app.Gates.ToggleByCode(cmd.Context(), code, c.app.Network.GetGate)
			if err != nil {
				return err
			}
			if !saved {
				return fmt.Errorf("gate %s: favourites could not be saved", code)
			}
			return c.printToggle(code, now)
		},
	}
}

func (c *CLI) removeGateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-gate <code>",
		Short: "Remove a gate from the favourites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := normalizeCode(args[0])
			c.app.Gates.RemoveFavourite(cmd.Context(), code)
			if c.app.Gates.IsFavourite(code) {
				return fmt.Errorf("gate %s: favourites could not be saved", code)
			}
			return c.printToggle(code, false)
		},
	}
}

func (c *CLI) toggleRouteCommand() *cobra.Command {
	var (
		index int
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "toggle-route <from> <to>",
		Short: "Toggle a route between two gates as a favourite",
		Long: `Search the routes between two gates and toggle one of them as a favourite.
--index selects a route from the search result, cheapest first (default 0).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to := normalizeCode(args[0]), normalizeCode(args[1])

			routes, err := c.findRoutes(cmd.Context(), from, to, all || index > 0)
			if err != nil {
				return err
			}
			if index < 0 || index >= len(routes) {
				return &network.ValidationError{Errors: []network.FieldError{{
					Field:   "index",
					Message: fmt.Sprintf("must be between 0 and %d", len(routes)-1),
				}}}
			}

			route := routes[index]
			was := c.app.Routes.IsFavouriteRoute(route)
			now := c.app.Routes.ToggleFavourite(cmd.Context(), route)
			if now == was {
				return fmt.Errorf("route %s: favourites could not be saved", route.ID())
			}
			return c.printToggle(route.ID(), now)
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "route to toggle, by position in the search result")
	cmd.Flags().BoolVar(&all, "all", false, "choose from every route rather than the cheapest")
	return cmd
}

func (c *CLI) removeRouteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-route <id>",
		Short: "Remove a favourite route by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			c.app.Routes.RemoveFavourite(cmd.Context(), id)
			if c.app.Routes.IsFavourite(id) {
				return fmt.Errorf("route %s: favourites could not be saved", id)
			}
			return c.printToggle(id, false)
		},
	}
}

func (c *CLI) historyCommand() *cobra.Command {
	var clearHistory bool

	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Show the route search history, most recent first",
		GroupID: "favourites",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := c.printer()
			if clearHistory {
				c.app.Routes.ClearHistory(cmd.Context())
				if n := len(c.app.Routes.History()); n > 0 {
					return fmt.Errorf("search history could not be cleared (%d entries remain)", n)
				}
				if p.format == FormatTable {
					p.Message("Search history cleared.")
					return nil
				}
			}

			items := c.app.Routes.History()
			return p.Print(models.SavedRouteList{Items: items, Count: len(items)}, func(t *table) {
				savedRoutesTable(t, items, "No searches yet.")
			})
		},
	}
	cmd.Flags().BoolVar(&clearHistory, "clear", false, "clear the search history")
	return cmd
}

func (c *CLI) printToggle(id string, favourite bool) error {
	return c.printer().Print(models.ToggleResult{ID: id, IsFavourite: favourite}, func(t *table) {
		state := "removed from"
		if favourite {
			state = "added to"
		}
		t.Title(fmt.Sprintf("%s %s favourites.", id, state))
	})
}

func savedRoutesTable(t *table, items []favourites.SavedRoute, empty string) {
	t.Header("ROUTE", "STOPS", "COST (HU)", "FAV", "WHEN", "ID")
	t.Empty(empty)
	for _, r := range items {
		t.Row(strings.Join(r.Route.Route, " → "), strconv.Itoa(r.Stops()), formatAmount(r.TotalCost),
			star(r.IsFavourite), formatTime(r.Time()), r.ID)
	}
}

func formatTime(t time.Time) string {
	if t.UnixMilli() == 0 {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}
