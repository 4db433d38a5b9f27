package monitor

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/storage/sqlite"
)

// WriteRunReport renders an HTML summary for one run: the ground
// distribution of reconstructed impact points and the telescope
// multiplicity of the reconstructions.
func WriteRunReport(path string, run *sqlite.Run, recs []sqlite.StereoRecord) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Run %s", run.RunID)

	page.AddCharts(coreScatter(run, recs), multiplicityBar(recs))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := page.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("render report: %w", err)
	}
	return f.Close()
}

func coreScatter(run *sqlite.Run, recs []sqlite.StereoRecord) *charts.Scatter {
	data := make([]opts.ScatterData, 0, len(recs))
	for _, rec := range recs {
		data = append(data, opts.ScatterData{
			Value: []interface{}{rec.Result.CoreX, rec.Result.CoreY, rec.EventID},
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Reconstructed impact points",
			Subtitle: fmt.Sprintf("obs=%d method=%s events=%d", run.ObsID, run.StereoMethod, len(recs)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "core x (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "core y (m)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("impact points", data,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	return scatter
}

func multiplicityBar(recs []sqlite.StereoRecord) *charts.Bar {
	counts := make(map[int]int)
	for _, rec := range recs {
		counts[rec.Result.NumTels]++
	}
	tels := make([]int, 0, len(counts))
	for n := range counts {
		tels = append(tels, n)
	}
	sort.Ints(tels)

	labels := make([]string, 0, len(tels))
	values := make([]opts.BarData, 0, len(tels))
	for _, n := range tels {
		labels = append(labels, fmt.Sprintf("%d tels", n))
		values = append(values, opts.BarData{Value: counts[n]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Telescope multiplicity"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("events", values,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}
