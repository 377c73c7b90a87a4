package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Хелперы регистрации возвращают уже зарегистрированный коллектор,
// поэтому конструкторы метрик можно вызывать повторно (тесты, несколько инстансов).

func registerOrExisting[T prometheus.Collector](registerer prometheus.Registerer, collector T, name string) T {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(T)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", name))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector %q: %v", name, err))
	}
	return collector
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	return registerOrExisting[prometheus.Counter](registerer, prometheus.NewCounter(opts), opts.Name)
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	return registerOrExisting(registerer, prometheus.NewCounterVec(opts, labels), opts.Name)
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	return registerOrExisting[prometheus.Gauge](registerer, prometheus.NewGauge(opts), opts.Name)
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	return registerOrExisting(registerer, prometheus.NewHistogramVec(opts, labels), opts.Name)
}
