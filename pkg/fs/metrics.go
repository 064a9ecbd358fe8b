package fs

import (
	"sync"

	"go.opentelemetry.io/otel/metric"

	"github.com/ctfer-io/chore-server/global"
)

var (
	loadsCounter     metric.Int64Counter
	loadsCounterOnce sync.Once

	savesCounter     metric.Int64Counter
	savesCounterOnce sync.Once

	sizeHistogram     metric.Int64Histogram
	sizeHistogramOnce sync.Once
)

func LoadsCounter() metric.Int64Counter {
	loadsCounterOnce.Do(func() {
		cnt, err := global.Meter.Int64Counter("chore_state.loads",
			metric.WithDescription("The number of chore state loads, by result (hit or absent)"),
		)
		if err != nil {
			panic(err)
		}
		loadsCounter = cnt
	})
	return loadsCounter
}

func SavesCounter() metric.Int64Counter {
	savesCounterOnce.Do(func() {
		cnt, err := global.Meter.Int64Counter("chore_state.saves",
			metric.WithDescription("The number of chore state saves, by result (ok or error)"),
		)
		if err != nil {
			panic(err)
		}
		savesCounter = cnt
	})
	return savesCounter
}

func SizeHistogram() metric.Int64Histogram {
	sizeHistogramOnce.Do(func() {
		h, err := global.Meter.Int64Histogram("chore_state.document.size",
			metric.WithDescription("The size of the saved chore state document"),
			metric.WithUnit("By"),
		)
		if err != nil {
			panic(err)
		}
		sizeHistogram = h
	})
	return sizeHistogram
}
