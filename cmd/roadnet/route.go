package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/azybler/roadnet/pkg/api"
	"github.com/azybler/roadnet/pkg/geo"
	"github.com/azybler/roadnet/pkg/routing"
)

func (a *app) routeCmd() *cobra.Command {
	var crsName string
	cmd := &cobra.Command{
		Use:   "route X,Y X,Y [X,Y...]",
		Short: "Route through two or more points and print the result as JSON",
		Long: `Route between two points, or through every point in order. With more
than two points an unroutable leg is bridged by a straight connector when
routing.straight_line_fallback is enabled.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			crs, err := geo.ParseCRS(crsName)
			if err != nil {
				return err
			}
			points := make([]routing.Point, len(args))
			for i, arg := range args {
				if points[i], err = parsePoint(arg, crs); err != nil {
					return err
				}
			}

			n, release, err := a.loadNetwork(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			engine := n.Engine(a.cfg.RoutingOptions(a.logger)...)

			var res *routing.Result
			if len(points) == 2 {
				res, err = engine.ShortestPath(cmd.Context(), points[0], points[1])
			} else {
				res, err = engine.ShortestPathChain(cmd.Context(), points)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(api.NewRouteResponse(res))
		},
	}
	cmd.Flags().StringVar(&crsName, "crs", "", `CRS of the points, e.g. "EPSG:4326"; defaults to the network's`)
	return cmd
}

// parsePoint parses "x,y".
func parsePoint(s string, crs geo.CRS) (routing.Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return routing.Point{}, fmt.Errorf("point %q: want X,Y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return routing.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return routing.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	p := routing.Pt(x, y)
	p.CRS = crs
	return p, nil
}
