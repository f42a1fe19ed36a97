package scenario

import "github.com/ethanmclark1/conav-suite/internal/geom"

// Default is used when a reset names no scenario.
const Default = "v_cluster"

func rects(rs ...geom.Rect) []geom.Rect { return rs }

func box(xlo, xhi, ylo, yhi float64) *geom.Rect {
	r := geom.R(xlo, xhi, ylo, yhi)
	return &r
}

func corner(x, y, leg float64) geom.Triangle {
	// Right angle sits on the world corner (x, y); legs run inward.
	dx, dy := -leg, -leg
	if x < 0 {
		dx = leg
	}
	if y < 0 {
		dy = leg
	}
	return geom.Triangle{{X: x, Y: y}, {X: x + dx, Y: y}, {X: x, Y: y + dy}}
}

func builtin() map[string]Scenario {
	list := []Scenario{
		{
			Name:    "v_cluster",
			Regions: rects(geom.R(-0.15, 0.15, -0.15, 0.15)),
		},
		{
			Name:    "bisect",
			Regions: rects(geom.R(-0.1, 0.1, -0.8, 0.8)),
		},
		{
			Name: "circle",
			Regions: rects(
				geom.R(-0.55, -0.35, -0.1, 0.1),
				geom.R(0.35, 0.55, -0.1, 0.1),
				geom.R(-0.1, 0.1, 0.35, 0.55),
				geom.R(-0.1, 0.1, -0.55, -0.35),
			),
		},
		{
			Name: "cross",
			Regions: rects(
				geom.R(-0.6, 0.6, -0.05, 0.05),
				geom.R(-0.05, 0.05, -0.6, 0.6),
			),
		},
		{
			Name: "corners",
			Triangles: []geom.Triangle{
				corner(-1, -1, 0.6),
				corner(1, -1, 0.6),
				corner(1, 1, 0.6),
				corner(-1, 1, 0.6),
			},
		},
		{
			Name: "staggered",
			Regions: rects(
				geom.R(-0.8, -0.4, 0.3, 0.5),
				geom.R(-0.2, 0.2, -0.1, 0.1),
				geom.R(0.4, 0.8, -0.5, -0.3),
			),
			Dynamic: rects(geom.R(0.85, 0.9, -0.9, 0.9)),
		},
		{
			Name: "quarters",
			Regions: rects(
				geom.R(-0.6, -0.4, 0.4, 0.6),
				geom.R(0.4, 0.6, 0.4, 0.6),
				geom.R(-0.6, -0.4, -0.6, -0.4),
				geom.R(0.4, 0.6, -0.6, -0.4),
			),
		},
		{
			Name: "scatter",
			Regions: rects(
				geom.R(-0.7, -0.5, 0.5, 0.7),
				geom.R(0.1, 0.3, 0.3, 0.5),
				geom.R(-0.3, -0.1, -0.4, -0.2),
				geom.R(0.5, 0.7, -0.7, -0.5),
			),
		},
		{
			Name: "stellaris",
			Regions: rects(
				geom.R(-0.1, 0.1, 0.5, 0.7),
				geom.R(-0.1, 0.1, -0.7, -0.5),
				geom.R(-0.7, -0.5, -0.1, 0.1),
				geom.R(0.5, 0.7, -0.1, 0.1),
			),
			Dynamic: rects(
				geom.R(-0.9, 0.9, 0.85, 0.9),
				geom.R(-0.9, 0.9, -0.9, -0.85),
			),
		},
		{
			Name:  "disaster_response_0",
			Class: ClassDisasterResponse,
			Start: box(-0.05, 0.05, -1, -0.90),
			Goal:  box(-0.85, -0.75, 0.90, 1),
			Regions: rects(
				geom.R(-1, -0.3, 0.30, 0.50),
				geom.R(0.15, 0.40, 0.60, 1),
				geom.R(-0.85, -0.75, 0.05, 0.15),
			),
			Dynamic: rects(geom.R(0.95, 1, 0.95, 1)),
			Growth:  1.125,
		},
		{
			Name:  "disaster_response_1",
			Class: ClassDisasterResponse,
			Start: box(-0.05, 0.05, -1, -0.90),
			Goal:  box(0.80, 1, -0.10, 0.10),
			Regions: rects(
				geom.R(-0.25, 0, -0.3, 0.65),
				geom.R(0.25, 0.45, 0.5, 1),
				geom.R(0.75, 0.85, -0.75, -0.30),
			),
			Dynamic: rects(geom.R(-0.6, -0.45, 0.95, 1)),
			Growth:  1.050,
		},
		{
			Name:  "disaster_response_2",
			Class: ClassDisasterResponse,
			Start: box(-1, -0.85, -0.10, 0.10),
			Goal:  box(0.85, 1, -0.10, 0.10),
			Regions: rects(
				geom.R(-0.5, -0.3, -0.6, 0.2),
				geom.R(0.2, 0.4, -0.2, 0.7),
				geom.R(-0.1, 0.1, 0.6, 1),
			),
			Dynamic: rects(geom.R(0.5, 0.6, -0.8, -0.7)),
			Growth:  1.075,
		},
		{
			Name:  "precision_farming_0",
			Class: ClassPrecisionFarming,
			Regions: rects(
				geom.R(0.2, 0.4, -0.2, 0.2),
				geom.R(0.6, 0.8, 0.4, 0.6),
			),
			Dynamic: rects(geom.R(-0.3, -0.2, -0.9, -0.8)),
			Sweep: &Sweep{
				Destination: geom.Vec{X: -0.8, Y: -0.8},
				Direction:   Left,
				Bounds:      geom.R(-1, -0.4, -1, 1),
			},
		},
		{
			Name:  "precision_farming_1",
			Class: ClassPrecisionFarming,
			Regions: rects(
				geom.R(-0.6, -0.4, -0.5, -0.3),
				geom.R(0.3, 0.5, -0.7, -0.5),
			),
			Dynamic: rects(geom.R(0.8, 0.9, 0.2, 0.3)),
			Sweep: &Sweep{
				Destination: geom.Vec{X: 0.75, Y: 0.75},
				Direction:   Left,
				Bounds:      geom.R(-1, 1, 0.4, 1),
			},
		},
		{
			Name:  "precision_farming_2",
			Class: ClassPrecisionFarming,
			Regions: rects(
				geom.R(-0.8, -0.6, 0.2, 0.4),
				geom.R(0.6, 0.8, -0.2, 0),
			),
			Dynamic: rects(geom.R(-0.6, -0.5, -0.95, -0.85)),
			Sweep: &Sweep{
				Destination: geom.Vec{X: -0.1875, Y: -0.90},
				Direction:   Right,
				Bounds:      geom.R(-0.25, 0.25, -1, 1),
			},
		},
		{
			Name:  "precision_farming_3",
			Class: ClassPrecisionFarming,
			Regions: rects(
				geom.R(-0.5, -0.3, 0.3, 0.5),
				geom.R(0.3, 0.5, 0.5, 0.7),
			),
			Dynamic: rects(geom.R(0.8, 0.9, -0.3, -0.2)),
			Sweep: &Sweep{
				Destination: geom.Vec{X: -0.75, Y: -0.80},
				Direction:   Left,
				Bounds:      geom.R(-1, 1, -1, -0.4),
			},
		},
	}

	out := make(map[string]Scenario, len(list))
	for _, s := range list {
		out[s.Name] = s
	}
	return out
}
