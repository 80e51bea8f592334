package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elysiawen/SubLinks-sub001/internal/engine"
	"github.com/elysiawen/SubLinks-sub001/internal/fetch"
	"github.com/elysiawen/SubLinks-sub001/internal/httpapi"
	"github.com/elysiawen/SubLinks-sub001/internal/store"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:8687", "HTTP 监听地址")
	dbPath := flag.String("db", "sublinks.db", "数据库文件路径")
	fetchTimeout := flag.Duration("fetch-timeout", 15*time.Second, "单个上游源的拉取超时")
	buildTimeout := flag.Duration("build-timeout", 60*time.Second, "单次文档构建的总超时（包含全部上游拉取）")
	precacheConcurrency := flag.Int64("precache-concurrency", 4, "预缓存时的并发构建数")
	readHeaderTimeout := flag.Duration("read-header-timeout", 5*time.Second, "HTTP ReadHeaderTimeout")
	shutdownTimeout := flag.Duration("shutdown-timeout", 10*time.Second, "收到退出信号后的优雅退出等待时间")
	flag.Parse()

	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	st, err := store.Open(*dbPath)
	if err != nil {
		logrus.Fatalln(err)
	}
	defer st.Close()

	eng := engine.New(st, st, st, engine.Options{
		Fetch:               fetch.Options{Timeout: *fetchTimeout},
		PrecacheConcurrency: *precacheConcurrency,
	})

	srv := &http.Server{
		Addr: *listen,
		Handler: httpapi.NewHandler(httpapi.Deps{
			Engine: eng,
			Store:  st,
			Options: httpapi.Options{
				BuildTimeout: *buildTimeout,
			},
		}),
		ReadHeaderTimeout: *readHeaderTimeout,
	}

	logrus.Infof("listening on http://%s", *listen)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logrus.Infoln("shutdown signal received")

		shCtx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			logrus.Errorf("graceful shutdown failed: %v", err)
			_ = srv.Close()
		}

		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalln(err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalln(err)
		}
	}
}
