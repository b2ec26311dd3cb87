// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/novaquill/kafwire/pkg/client"
	"github.com/novaquill/kafwire/pkg/config"
	"github.com/novaquill/kafwire/pkg/metrics"
	"github.com/novaquill/kafwire/pkg/protocol"
)

const usageText = `usage: kafwire [-config FILE] COMMAND [flags]

commands:
  metadata  [-topics a,b]                     print cluster metadata
  produce   -topic T [-partition N] [-key K] VALUE...
  offsets   -topic T [-partition N] [-time -1|-2] [-max N]
  fetch     -topic T [-partition N] [-offset N] [-count N]
`

func main() {
	globals := flag.NewFlagSet("kafwire", flag.ExitOnError)
	configPath := globals.String("config", "", "path to YAML config file")
	globals.Usage = func() { fmt.Fprint(os.Stderr, usageText) }

	args := os.Args[1:]
	if err := globals.Parse(args); err != nil {
		os.Exit(2)
	}
	rest := globals.Args()
	if len(rest) == 0 {
		globals.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)

	ctx := context.Background()
	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.MetricsAddr, logger)
	}

	if err := run(ctx, cfg, logger, rest[0], rest[1:]); err != nil {
		logger.Error("command failed", "command", rest[0], "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, command string, args []string) error {
	conn, err := client.Dial(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	switch command {
	case "metadata":
		return runMetadata(ctx, conn, args)
	case "produce":
		return runProduce(ctx, conn, args)
	case "offsets":
		return runOffsets(ctx, conn, args)
	case "fetch":
		return runFetch(ctx, conn, cfg, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runMetadata(ctx context.Context, conn *client.Conn, args []string) error {
	fs := flag.NewFlagSet("metadata", flag.ExitOnError)
	topicsArg := fs.String("topics", "", "comma-separated topic names, empty for all")
	if err := fs.Parse(args); err != nil {
		return err
	}

	meta, err := conn.Metadata(ctx, splitTopics(*topicsArg)...)
	if err != nil {
		return err
	}
	for _, b := range meta.Brokers {
		fmt.Printf("broker %d %s:%d\n", b.NodeID, b.Host, b.Port)
	}
	for _, t := range meta.Topics {
		if t.Err.IsError() {
			fmt.Printf("topic %s error=%s\n", t.Name, t.Err)
			continue
		}
		fmt.Printf("topic %s partitions=%d\n", t.Name, len(t.Partitions))
		for _, p := range t.Partitions {
			fmt.Printf("  partition %d leader=%d replicas=%v isr=%v", p.ID, p.LeaderID, p.Replicas, p.ISR)
			if p.Err.IsError() {
				fmt.Printf(" error=%s", p.Err)
			}
			fmt.Println()
		}
	}
	return nil
}

func runProduce(ctx context.Context, conn *client.Conn, args []string) error {
	fs := flag.NewFlagSet("produce", flag.ExitOnError)
	topic := fs.String("topic", "", "topic to produce to")
	partition := fs.Int("partition", 0, "target partition")
	key := fs.String("key", "", "optional message key applied to every value")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *topic == "" {
		return errors.New("produce: -topic is required")
	}
	values := fs.Args()
	if len(values) == 0 {
		return errors.New("produce: at least one value argument is required")
	}

	msgs := make([]protocol.Message, 0, len(values))
	for _, v := range values {
		msgs = append(msgs, protocol.Message{Key: []byte(*key), Value: []byte(v)})
	}
	resp, err := conn.Produce(ctx, &protocol.ProduceRequest{
		Topics: []protocol.ProduceTopic{{
			Name: *topic,
			Partitions: []protocol.ProducePartition{{
				Partition: int32(*partition),
				Messages:  msgs,
			}},
		}},
	})
	if err != nil {
		return err
	}
	for _, t := range resp.Topics {
		for _, o := range t.Offsets {
			if o.Err.IsError() {
				fmt.Printf("%s/%d error=%s\n", t.Name, o.Partition, o.Err)
				continue
			}
			fmt.Printf("%s/%d offset=%d\n", t.Name, o.Partition, o.Offset)
		}
	}
	return nil
}

func runOffsets(ctx context.Context, conn *client.Conn, args []string) error {
	fs := flag.NewFlagSet("offsets", flag.ExitOnError)
	topic := fs.String("topic", "", "topic to query")
	partition := fs.Int("partition", 0, "partition to query")
	at := fs.Int64("time", -1, "-1 for latest, -2 for earliest")
	maxOffsets := fs.Int("max", 1, "maximum offsets to return")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *topic == "" {
		return errors.New("offsets: -topic is required")
	}

	resp, err := conn.Offsets(ctx, *topic, int32(*partition), *at, int32(*maxOffsets))
	if err != nil {
		return err
	}
	for _, t := range resp.Topics {
		for _, p := range t.Partitions {
			if p.Err.IsError() {
				fmt.Printf("%s/%d error=%s\n", t.Name, p.Partition, p.Err)
				continue
			}
			fmt.Printf("%s/%d offsets=%v\n", t.Name, p.Partition, p.Offsets)
		}
	}
	return nil
}

func runFetch(ctx context.Context, conn *client.Conn, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	topic := fs.String("topic", "", "topic to fetch from")
	partition := fs.Int("partition", 0, "partition to fetch from")
	offset := fs.Int64("offset", 0, "offset to start fetching at")
	count := fs.Int("count", 0, "stop after this many messages, 0 for one fetch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *topic == "" {
		return errors.New("fetch: -topic is required")
	}

	next := *offset
	printed := 0
	for {
		resp, err := conn.Fetch(ctx, *topic, int32(*partition), next)
		if err != nil {
			return err
		}
		progressed := false
		for _, t := range resp.Topics {
			for _, p := range t.Partitions {
				if p.Err.IsError() {
					return fmt.Errorf("fetch %s/%d: %s", t.Name, p.Partition, p.Err)
				}
				for _, m := range p.Messages {
					fmt.Printf("%s/%d offset=%d key=%q value=%q\n",
						t.Name, p.Partition, m.Offset, m.Key, m.Value)
					printed++
				}
				if len(p.Messages) > 0 {
					next = p.LastOffset + 1
					progressed = true
				}
			}
		}
		if *count <= 0 || printed >= *count || !progressed {
			return nil
		}
	}
}

func splitTopics(raw string) []string {
	parts := strings.Split(raw, ",")
	topics := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		topics = append(topics, part)
	}
	return topics
}

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelWarn
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler).With("component", "kafwire")
}

func startMetricsServer(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
}
