package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sundial/internal/scheduler"
	"sundial/internal/scheduler/loader"
)

func main() {
	var descriptorPath string
	flag.StringVar(&descriptorPath, "jobs", "./jobs.yaml", "path to a schedule descriptor")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	sched := scheduler.New(scheduler.Config{Logger: log})

	ld := loader.New(sched)
	ld.RegisterJobClass("echo", func() scheduler.Job { return &echoJob{log: log} })

	if data, err := os.ReadFile(descriptorPath); err == nil {
		if err := ld.LoadFile(descriptorPath, data); err != nil {
			fmt.Println("fatal: loading descriptor:", err)
			os.Exit(1)
		}
		go func() {
			if err := ld.Watch(ctx, descriptorPath, log); err != nil && ctx.Err() == nil {
				log.Error("descriptor watch stopped", slog.Any("err", err))
			}
		}()
	} else {
		log.Warn("no descriptor found; starting with an empty store", slog.String("path", descriptorPath))
	}

	sched.Start(ctx)

	<-ctx.Done()
	sched.Shutdown(true)
}

// echoJob is the builtin "echo" job class; it logs the job and trigger
// names, the scheduled fire time and the lag behind it, and returns.
type echoJob struct {
	log *slog.Logger
}

func (j *echoJob) DoRun(ctx *scheduler.JobContext) error {
	j.log.Info("echo job fired", slog.String("job", ctx.JobName()), slog.String("trigger", ctx.TriggerName()), slog.Time("scheduled", ctx.ScheduledFireTime()), slog.Duration("lag", time.Since(ctx.ScheduledFireTime())))
	return nil
}

func (j *echoJob) Cleanup() {}
