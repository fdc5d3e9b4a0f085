package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/starseeker/starseeker/internal/api/models"
	"github.com/starseeker/starseeker/internal/network"
)

func (c *CLI) gatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "gates",
		Short:   "List every gate in the network",
		GroupID: "network",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gates, err := c.app.Network.ListGates(cmd.Context())
			if err != nil {
				return err
			}

			items := make([]models.GateView, 0, len(gates))
			for _, g := range gates {
				items = append(items, models.GateView{Gate: g, IsFavourite: c.app.Gates.IsFavourite(g.Code)})
			}

			return c.printer().Print(models.GateList{Items: items, Count: len(items)}, func(t *table) {
				t.Header("CODE", "NAME", "SYSTEM", "LINKS", "FAV")
				t.Empty("No gates found.")
				for _, g := range items {
					t.Row(g.Code, g.Name, g.System, strconv.Itoa(len(g.Links)), star(g.IsFavourite))
				}
			})
		},
	}
}

func (c *CLI) gateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "gate <code>",
		Short:   "Show a gate and its hyperspace links",
		GroupID: "network",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := normalizeCode(args[0])
			if err := network.ValidateGateCode("code", code); err != nil {
				return err
			}

			gate, err := c.app.Network.GetGate(cmd.Context(), code)
			if err != nil {
				return err
			}
			view := models.GateView{Gate: *gate, IsFavourite: c.app.Gates.IsFavourite(gate.Code)}

			return c.printer().Print(view, func(t *table) {
				t.Header("CODE", "NAME", "SYSTEM", "FAV")
				t.Row(view.Code, view.Name, view.System, star(view.IsFavourite))

				links := t.Then()
				links.Title("Links:")
				links.Header("TO", "COST (HU)")
				links.Empty("No outgoing links.")
				for _, l := range view.Links {
					links.Row(l.Code, l.HU)
				}
			})
		},
	}
}

func (c *CLI) routeCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "route <from> <to>",
		Short: "Find the cheapest route between two gates",
		Long: `Find the cheapest route between two gates. With --all every route the network
knows is listed, cheapest first. Each result is recorded in the search history.`,
		GroupID: "network",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to := normalizeCode(args[0]), normalizeCode(args[1])

			routes, err := c.findRoutes(cmd.Context(), from, to, all)
			if err != nil {
				return err
			}

			// Oldest first so the cheapest route ends up at the top of the history.
			for i := len(routes) - 1; i >= 0; i-- {
				c.app.Routes.AddToHistory(cmd.Context(), routes[i])
			}

			items := make([]models.RouteView, 0, len(routes))
			for _, r := range routes {
				items = append(items, models.NewRouteView(r, c.app.Routes.IsFavouriteRoute(r)))
			}

			list := models.RouteList{From: from, To: to, Items: items, Count: len(items)}
			return c.printer().Print(list, func(t *table) {
				t.Title(fmt.Sprintf("Routes from %s to %s:", from, to))
				t.Header("#", "ROUTE", "STOPS", "COST (HU)", "FAV", "ID")
				t.Empty("No routes found.")
				for i, r := range items {
					t.Row(strconv.Itoa(i), strings.Join(r.Route.Route, " → "), strconv.Itoa(r.Stops),
						formatAmount(r.TotalCost), star(r.IsFavourite), r.ID)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list every route, cheapest first")
	return cmd
}

func (c *CLI) findRoutes(ctx context.Context, from, to string, all bool) ([]network.Route, error) {
	if all {
		return c.app.Network.FindAllRoutes(ctx, from, to)
	}
	return c.app.Network.FindRoutes(ctx, from, to)
}

func (c *CLI) costCommand() *cobra.Command {
	var (
		passengers int
		parking    int
	)

	cmd := &cobra.Command{
		Use:     "cost <distance>",
		Short:   "Price a journey of the given distance in AU",
		GroupID: "network",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			distance, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
			if err != nil {
				return &network.ValidationError{Errors: []network.FieldError{
					{Field: "distance", Message: "must be a number"},
				}}
			}

			q := network.CostQuery{Distance: distance, Passengers: passengers, ParkingDays: parking}
			cost, err := c.app.Network.GetTransportCost(cmd.Context(), q)
			if err != nil {
				return err
			}
			view := models.NewCostView(q, *cost)

			return c.printer().Print(view, func(t *table) {
				t.Title(fmt.Sprintf("%s AU, %d passenger(s), %d parking day(s):",
					formatAmount(view.Distance), view.Passengers, view.ParkingDays))
				t.Header("TRANSPORT", "RATE / AU", "JOURNEY", "PARKING", "TOTAL")
				t.Row(view.RecommendedTransport.Name,
					formatAmount(view.RecommendedTransport.RatePerAU),
					view.CurrencySymbol+formatAmount(view.JourneyCost.JourneyCost),
					view.CurrencySymbol+formatAmount(view.ParkingFee),
					view.CurrencySymbol+formatAmount(view.TotalCost))
			})
		},
	}
	cmd.Flags().IntVarP(&passengers, "passengers", "p", 1, "number of passengers")
	cmd.Flags().IntVar(&parking, "parking", 0, "days of parking at the destination")
	return cmd
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func star(b bool) string {
	if b {
		return "★"
	}
	return ""
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
