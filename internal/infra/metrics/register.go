package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once       sync.Once
	collectors []prometheus.Collector
)

// register is called by init() in each metrics file to enqueue collectors.
func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// RegisterWith registers every scout collector with reg. Collectors reg
// already holds are skipped, so a second call is harmless.
func RegisterWith(reg prometheus.Registerer) error {
	var errs []error
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MustRegister registers the collectors with the default registry once and
// panics on a conflict.
func MustRegister() {
	once.Do(func() {
		if err := RegisterWith(prometheus.DefaultRegisterer); err != nil {
			panic(err)
		}
	})
}
