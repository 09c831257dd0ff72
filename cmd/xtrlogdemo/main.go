// Command xtrlogdemo exercises a logger end to end: two sinks sharing one
// logger, the format-string Log API with a by-value and a by-reference
// string argument, a status query, and a clean shutdown.
package main

import (
	"fmt"
	"os"

	"code.hybscloud.com/xtrlog"
	"code.hybscloud.com/xtrlog/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "xtrlogdemo:", err)
		os.Exit(1)
	}
}

func run() error {
	backend, err := storage.NewFile(os.Args[len(os.Args)-1], 64<<10)
	if err != nil {
		return err
	}
	backend.ErrorCallback = func(op string, err error) {
		fmt.Fprintf(os.Stderr, "storage: %s: %v\n", op, err)
	}

	logger, err := xtrlog.NewLogger(xtrlog.Config{Storage: backend})
	if err != nil {
		return err
	}
	defer logger.Close()

	workerSink, err := logger.NewSink("worker-1", xtrlog.New(1<<16).Level(xtrlog.Info))
	if err != nil {
		return err
	}
	defer workerSink.Close()

	requestSink, err := logger.NewSink("request-1", xtrlog.New(1<<16).Level(xtrlog.Debug))
	if err != nil {
		return err
	}
	defer requestSink.Close()

	const hostname = "build-runner-7" // long-lived for this process, safe to capture by reference

	for i := 0; i < 10; i++ {
		workerSink.Info("main.go:42: hello from {} on {}", fmt.Sprintf("iteration-%d", i), xtrlog.NoCopy(hostname))
		requestSink.Debug("main.go:43: hello from {} on {}", fmt.Sprintf("iteration-%d", i), xtrlog.NoCopy(hostname))
	}

	for _, s := range logger.Status(nil) {
		fmt.Fprintf(os.Stderr, "status: %s level=%s used=%d/%d dropped=%d\n", s.Name, s.Level, s.Used, s.Capacity, s.Dropped)
	}

	if err := workerSink.Sync(); err != nil {
		return err
	}
	return requestSink.Sync()
}
