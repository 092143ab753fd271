// Copyright 2026, Square, Inc.

package cmd

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/square/rendergraph/proto"
	"github.com/square/rendergraph/rendc/app"
)

const renderUsage = "rendc render <node> [time=T] [view=V] [scale=S] [roi=x1,y1,x2,y2] [planes=Layer.Channels,...] [out=file.tif] [plane=Layer.Channels]"

type Render struct {
	ctx   app.Context
	req   proto.RenderRequest
	out   string // TIFF file, if set
	plane string // plane written to out
	// --
	setRoI bool
}

func NewRender(ctx app.Context) *Render {
	return &Render{
		ctx: ctx,
	}
}

func (c *Render) Prepare() error {
	args := c.ctx.Command.Args
	if len(args) == 0 {
		return fmt.Errorf("Usage: %s", renderUsage)
	}
	c.req.Node = args[0]
	kv, err := keyValues(args[1:], "time", "view", "scale", "roi", "planes", "out", "plane")
	if err != nil {
		return err
	}

	if v, ok := kv["time"]; ok {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("Invalid time=%s: %s", v, err)
		}
		c.req.Time = proto.Time(t)
	}
	if v, ok := kv["view"]; ok {
		view, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("Invalid view=%s: %s", v, err)
		}
		c.req.View = proto.ViewIdx(view)
	}
	if v, ok := kv["scale"]; ok {
		s, err := strconv.ParseFloat(v, 64)
		if err != nil || s <= 0 || s > 1 {
			return fmt.Errorf("Invalid scale=%s: expected a number in (0, 1]", v)
		}
		c.req.Scale = proto.RenderScale{X: s, Y: s}
	}
	if v, ok := kv["roi"]; ok {
		roi, err := parseRoI(v)
		if err != nil {
			return err
		}
		c.req.RoI = roi
		c.setRoI = true
	}
	if v, ok := kv["planes"]; ok {
		for _, p := range strings.Split(v, ",") {
			comps, err := proto.ParseComponents(p)
			if err != nil {
				return fmt.Errorf("Invalid planes=%s: %s", v, err)
			}
			c.req.Planes = append(c.req.Planes, comps)
		}
	}
	c.out = kv["out"]
	c.plane = kv["plane"]
	if c.plane != "" && c.out == "" {
		return fmt.Errorf("plane=%s without out=file.tif", c.plane)
	}
	return nil
}

func (c *Render) Run() error {
	// Render the whole format of the node by default.
	if !c.setRoI {
		md, err := c.ctx.Backend.Metadata(c.req.Node)
		if err != nil {
			return err
		}
		c.req.RoI = md.Format
	}
	if c.ctx.Options.Debug {
		app.Debug("request: %#v", c.req)
	}

	var res proto.RenderResponse
	var err error
	if c.out == "" {
		res, err = c.ctx.Backend.Render(c.req)
	} else {
		var img []byte
		img, res, err = c.ctx.Backend.RenderTIFF(c.req, c.plane)
		if err == nil && img != nil {
			err = os.WriteFile(c.out, img, 0644)
		}
	}

	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(res, err)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.ctx.Out, "%s %s\n", res.RequestId, proto.StatusName[res.Status])
	for _, p := range res.Planes {
		fmt.Fprintf(c.ctx.Out, "  %-20s %-4s %dx%d\n", p.Plane, p.Depth, p.Bounds.Width(), p.Bounds.Height())
	}
	if c.out != "" && res.Status == proto.STATUS_OK {
		fmt.Fprintf(c.ctx.Out, "wrote %s\n", c.out)
	}
	if len(res.Stats) == 0 {
		return nil
	}

	names := make([]string, 0, len(res.Stats))
	for name := range res.Stats {
		names = append(names, name)
	}
	sort.Strings(names)
	hdr := "%-20s  %7s  %9s  %6s  %6s  %10s  %s\n"
	line := "%-20s  %7d  %9d  %6d  %6d  %10s  %s\n"
	fmt.Fprintf(c.ctx.Out, hdr, "NODE", "RENDERS", "IDENTITY", "CACHED", "SHARED", "TIME", "PLANES")
	for _, name := range names {
		s := res.Stats[name]
		fmt.Fprintf(c.ctx.Out, line, name, s.Renders, s.IdentitySkips, s.CacheHits, s.SharedWaits,
			s.TimeSpent.String(), strings.Join(s.Planes, ","))
	}
	return nil
}

func (c *Render) Cmd() string {
	return "render " + strings.Join(c.ctx.Command.Args, " ")
}

func (c *Render) Help() string {
	return "'" + renderUsage + "' renders a node and prints the render stats." +
		" The region of interest is in canonical coordinates and defaults to the format of the node." +
		" With out=file.tif, the first requested plane (or plane=) is written as a TIFF image.\n"
}

func parseRoI(s string) (proto.RectD, error) {
	f := strings.Split(s, ",")
	if len(f) != 4 {
		return proto.RectD{}, fmt.Errorf("Invalid roi=%s: expected x1,y1,x2,y2", s)
	}
	var v [4]float64
	for i := range f {
		n, err := strconv.ParseFloat(strings.TrimSpace(f[i]), 64)
		if err != nil {
			return proto.RectD{}, fmt.Errorf("Invalid roi=%s: %s", s, err)
		}
		v[i] = n
	}
	return proto.RectD{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, nil
}
