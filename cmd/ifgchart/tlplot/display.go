package tlplot

import (
	"image"
	"image/png"
	"log"
	"os"
	"path"

	"gioui.org/app"
	"gioui.org/io/key"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

type plotWidget struct {
	plot      *plot.Plot
	dpi       int
	exportDir string

	width, height vg.Length
	image         image.Image
}

func (p *plotWidget) render(w, h vg.Length) image.Image {
	c := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(p.dpi))
	p.plot.Draw(draw.New(c))
	return c.Image()
}

func (p *plotWidget) imageFor(size image.Point) image.Image {
	w := vg.Points(float64(size.X) * vg.Inch.Points() / float64(p.dpi))
	h := vg.Points(float64(size.Y) * vg.Inch.Points() / float64(p.dpi))
	if p.image == nil || p.width != w || p.height != h {
		p.image = p.render(w, h)
		p.width = w
		p.height = h
	}
	return p.image
}

func (p *plotWidget) layout(gtx layout.Context) layout.Dimensions {
	defer op.Save(gtx.Ops).Load()
	paint.NewImageOp(p.imageFor(gtx.Constraints.Max)).Add(gtx.Ops)
	paint.PaintOp{}.Add(gtx.Ops)
	return layout.Dimensions{Size: gtx.Constraints.Max}
}

func (p *plotWidget) export() {
	if p.exportDir == "" || p.image == nil {
		return
	}
	filepath := path.Join(p.exportDir, "timeline.png")
	f, err := os.Create(filepath)
	if err != nil {
		log.Fatal(err)
	}
	if err := png.Encode(f, p.image); err != nil {
		log.Fatal(err)
	}
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}
	log.Printf("exported plot to %s", filepath)
}

// DisplayPlot opens the plot in a window. Q or escape closes it; E exports
// a PNG into exportDir when one is given. It does not return until the
// window is closed.
func DisplayPlot(p *plot.Plot, exportDir string) error {
	widget := &plotWidget{
		plot:      p,
		dpi:       128,
		exportDir: exportDir,
	}

	go func() {
		win := app.NewWindow(
			app.Title("Frame Timeline"),
			app.Size(unit.Px(1024), unit.Px(768)),
		)
		defer win.Close()

		for e := range win.Events() {
			switch e := e.(type) {
			case system.FrameEvent:
				ops := new(op.Ops)
				gtx := layout.NewContext(ops, e)
				layout.UniformInset(unit.Dp(30)).Layout(gtx, widget.layout)
				e.Frame(ops)
			case key.Event:
				switch e.Name {
				case "Q", key.NameEscape:
					win.Close()
				case "E":
					if e.State == key.Press {
						widget.export()
					}
				}
			case system.DestroyEvent:
				os.Exit(0)
			}
		}
	}()

	app.Main()
	return nil
}
