package commands

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/datatier/cachesim/internal/cache"
)

// hitRatePlot samples the cumulative byte hit rate every interval accesses.
type hitRatePlot struct {
	interval int64

	accesses   int64
	bytesHit   int64
	bytesTotal int64

	xs []int64
	ys []float64
}

func newHitRatePlot(interval int64) *hitRatePlot {
	return &hitRatePlot{interval: interval}
}

func (p *hitRatePlot) observe(info *cache.AccessInfo) {
	p.accesses++
	p.bytesHit += info.BytesHit
	p.bytesTotal += info.BytesRequested()

	if p.accesses%p.interval == 0 {
		p.sample()
	}
}

func (p *hitRatePlot) sample() {
	if p.bytesTotal == 0 {
		return
	}

	p.xs = append(p.xs, p.accesses)
	p.ys = append(p.ys, float64(p.bytesHit)/float64(p.bytesTotal))
}

// render writes the chart as a standalone HTML page.
func (p *hitRatePlot) render(path, policyName string) error {
	p.sample() // flush the tail below a full interval

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Cumulative byte hit rate",
			Subtitle: fmt.Sprintf("policy: %s", policyName),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "accesses"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "byte hit rate"}),
	)

	xs := make([]string, len(p.xs))
	points := make([]opts.LineData, len(p.ys))

	for i := range p.xs {
		xs[i] = fmt.Sprint(p.xs[i])
		points[i] = opts.LineData{Value: p.ys[i]}
	}

	line.SetXAxis(xs).AddSeries(policyName, points,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
	)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}
	defer file.Close()

	if err := line.Render(file); err != nil {
		return err
	}

	return file.Close()
}
