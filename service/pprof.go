package service

import (
	"context"
	_ "expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"arcade/log"
)

func (s *ArcadeService) servePprof(ctx context.Context) <-chan error {
	if s.conf.PprofPort == 0 {
		return nil
	}

	errCh := make(chan error)

	go func() {
		laddr := fmt.Sprintf(":%d", s.conf.PprofPort)
		log.Infof("arcade pprof: %#v", laddr)

		errCh <- http.ListenAndServe(laddr, nil)
	}()

	return errCh
}
