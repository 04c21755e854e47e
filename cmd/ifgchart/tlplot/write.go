package tlplot

import (
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

func combineErrors(errors ...error) (err error) {
	for _, e := range errors {
		switch {
		case e == nil:
			// ignore
		case err == nil:
			err = e
		default:
			err = multierror.Append(err, e)
		}
	}
	return err
}

// WritePlot renders a plot into the writer in the named image format.
func WritePlot(p *plot.Plot, width, height vg.Length, output io.Writer, format string) error {
	w, err := p.WriterTo(width, height, format)
	if err != nil {
		return err
	}
	_, err = w.WriteTo(output)
	return err
}

// SavePlot renders a plot into a new file, choosing the image format by the
// format argument rather than the path extension.
func SavePlot(p *plot.Plot, width, height vg.Length, path string, format string) (err error) {
	output, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = combineErrors(err, output.Close())
	}()
	return WritePlot(p, width, height, output, format)
}
