package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/hellofresh/health-go/v5"
	"go.uber.org/multierr"

	"github.com/ctfer-io/chore-server/global"
)

func healthcheck(dir string) http.Handler {
	opts := []health.Option{
		health.WithComponent(health.Component{
			Name:    "chore-server",
			Version: global.Version,
		}),
		health.WithSystemInfo(),
		health.WithChecks(health.Config{
			Name:    "data-dir",
			Timeout: time.Second,
			Check: func(context.Context) error {
				return checkWritable(dir)
			},
		}),
	}
	h, err := health.New(opts...)
	if err != nil {
		panic(err)
	}
	return h.Handler()
}

// checkWritable makes sure a file can be created in dir.
func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".healthcheck-*")
	if err != nil {
		return err
	}
	return multierr.Combine(f.Close(), os.Remove(f.Name()))
}
