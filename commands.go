package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ai_art_description/access"
	"ai_art_description/jobs"
	"ai_art_description/publisher"
	"ai_art_description/server"
)

func generateCmd() *cobra.Command {
	var (
		override bool
		roles    []string
	)
	cmd := &cobra.Command{
		Use:   "generate ITEM_ID",
		Short: "Generate descriptions for one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pub, err := buildPublisher(cfg)
			if err != nil {
				return err
			}
			out := pub.GenerateDescription(cmd.Context(), publisher.Request{
				ItemID:   ids[0],
				Override: override,
				Actor:    access.Grants(roles),
			})
			if err := printJSON(out); err != nil {
				return err
			}
			if !out.Success {
				return fmt.Errorf("generation failed: %s", out.Reason)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&override, "override", false, "skip the role check")
	cmd.Flags().StringSliceVar(&roles, "roles", nil, "roles or capabilities of the caller")
	return cmd
}

func bulkCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "bulk ITEM_ID...",
		Short: "Generate descriptions for many items (role check overridden)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pub, err := buildPublisher(cfg)
			if err != nil {
				return err
			}
			if workers <= 0 {
				workers = cfg.Workers
			}
			report := pub.RunBulk(cmd.Context(), ids, workers)
			noun := "descriptions"
			if report.Processed == 1 {
				noun = "description"
			}
			fmt.Printf("%d AI %s generated.\n", report.Processed, noun)
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent generations (default from config)")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and an in-process job worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pub, err := buildPublisher(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			queue, closeQueue, err := buildQueue(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeQueue()

			tracker := jobs.NewTracker()
			srv, err := server.New(pub, queue, tracker, server.Options{
				Timeout:     cfg.Timeout() + 30*time.Second,
				BulkWorkers: cfg.Workers,
				Rule: publisher.AutoRule{
					PostType:       cfg.WordPress.PostType,
					RawResponseKey: cfg.RawResponseKey,
				},
			})
			if err != nil {
				return err
			}
			listen := cfg.ServerAddr
			if addr != "" {
				listen = addr
			}
			httpSrv := &http.Server{Addr: listen, Handler: srv.Routes()}
			worker := &jobs.Worker{
				Queue:       queue,
				Runner:      pub,
				Tracker:     tracker,
				Concurrency: cfg.Workers,
				MaxAttempts: cfg.MaxAttempts,
				RetryDelay:  10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return worker.Run(gctx) })
			g.Go(func() error {
				log.Info().Str("addr", listen).Msg("Starting web server")
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "http listen address (overrides config server_addr)")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process queued jobs from Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.RedisURL == "" {
				return errors.New("worker needs redis_url; serve runs an in-process worker instead")
			}
			pub, err := buildPublisher(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			queue, closeQueue, err := buildQueue(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeQueue()

			log.Info().Int("concurrency", cfg.Workers).Msg("Worker started")
			w := &jobs.Worker{
				Queue:       queue,
				Runner:      pub,
				Concurrency: cfg.Workers,
				MaxAttempts: cfg.MaxAttempts,
				RetryDelay:  10 * time.Second,
			}
			return w.Run(ctx)
		},
	}
}

func enqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue ITEM_ID...",
		Short: "Queue scheduled generation jobs for a worker (role check overridden)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.RedisURL == "" {
				return errors.New("enqueue needs redis_url so a worker can pick the jobs up")
			}
			queue, closeQueue, err := buildQueue(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeQueue()

			for _, id := range ids {
				job := jobs.NewJob(id, true, jobs.SourceSchedule)
				if err := queue.Enqueue(cmd.Context(), job); err != nil {
					return fmt.Errorf("enqueue item %d: %w", id, err)
				}
				fmt.Println(job.ID)
			}
			log.Info().Int("jobs", len(ids)).Msg("Jobs queued")
			return nil
		},
	}
}

func hookCmd() *cobra.Command {
	var ev publisher.StatusTransition
	cmd := &cobra.Command{
		Use:   "on-publish",
		Short: "Run the publish trigger for one status transition",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pub, err := buildPublisher(cfg)
			if err != nil {
				return err
			}
			if ev.PostType == "" {
				ev.PostType = cfg.WordPress.PostType
			}
			rule := publisher.AutoRule{PostType: cfg.WordPress.PostType, RawResponseKey: cfg.RawResponseKey}
			out, ran := pub.HandleTransition(cmd.Context(), rule, ev, time.Now())
			if !ran && out.Reason != "" {
				return fmt.Errorf("load item %d: %s", ev.ItemID, out.Message)
			}
			if !ran {
				log.Info().Int64("item_id", ev.ItemID).Msg("Item not eligible for auto generation")
				return nil
			}
			return printJSON(out)
		},
	}
	cmd.Flags().Int64Var(&ev.ItemID, "item", 0, "item id")
	cmd.Flags().StringVar(&ev.PostType, "post-type", "", "post type (default from config)")
	cmd.Flags().StringVar(&ev.OldStatus, "old-status", "", "previous status")
	cmd.Flags().StringVar(&ev.NewStatus, "new-status", "publish", "new status")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
