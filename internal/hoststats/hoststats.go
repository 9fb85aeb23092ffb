// Package hoststats periodically samples host OS metrics (CPU load,
// process uptime) and ships them to a remote peer as Stats messages,
// standing in for the sensor telemetry the original's ControlBoard
// produced from real hardware.
package hoststats

import (
	"bytes"
	"compress/flate"
	"context"
	"log/slog"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/kulve/pleco-go/internal/logger"
	"github.com/kulve/pleco-go/internal/message"
)

// gzipSizeThreshold is the payload size above which a sample batch is
// gzip-compressed before framing. A compressed batch travels as a Debug
// line, so like any Debug payload it is cut to message.DebugMaxLen bytes;
// batches at or below the threshold go out as ordinary Stats frames.
const gzipSizeThreshold = 64

// Sender is the subset of peer.Peer hoststats needs: sending a Stats
// batch and, for oversized batches, a Debug-adjacent compressed line.
type Sender interface {
	SendStats(samples []message.StatSample)
	SendDebug(text string)
}

// Sampler collects host metrics on a cron schedule and forwards them
// through a Sender.
type Sampler struct {
	sender Sender
	cron   *cron.Cron
	log    *slog.Logger
	start  time.Time
	// seqs is a throwaway sequence table used only to build local Stats
	// frames (to size-check a batch and to produce the bytes the
	// compressed path gzips); the sequence numbers it produces are
	// discarded, never placed on the wire.
	seqs *message.SequenceTable
}

// New builds a Sampler that samples on the given cron schedule
// expression, in any form robfig/cron v3's default parser accepts:
// standard 5-field syntax (minute granularity; the 6-field seconds form
// such as "*/10 * * * * *" is not accepted) or a descriptor such as
// "@every 10s".
func New(sender Sender, schedule string) (*Sampler, error) {
	s := &Sampler{
		sender: sender,
		log:    logger.Logger().With("component", "hoststats"),
		start:  time.Now(),
		seqs:   message.NewSequenceTable(),
	}
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelDebug))))
	if _, err := c.AddFunc(schedule, s.sample); err != nil {
		return nil, err
	}
	s.cron = c
	return s, nil
}

// Start begins the cron schedule.
func (s *Sampler) Start() {
	s.log.Info("hoststats sampler started")
	s.cron.Start()
}

// Stop halts the schedule and waits for an in-flight sample to finish, up
// to ctx's deadline.
func (s *Sampler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		s.log.Warn("hoststats stop timed out")
	}
}

// RunTicker is an alternative driver that samples on a plain time.Ticker
// instead of the cron schedule; it runs until ctx is cancelled.
func RunTicker(ctx context.Context, s *Sampler, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sample()
		}
	}
}

func (s *Sampler) sample() {
	samples := make([]message.StatSample, 0, 2)

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		samples = append(samples, message.StatSample{
			Subtype: message.SubtypeCPUUsage,
			Value:   clampToUint16(pct[0]),
		})
	} else {
		s.log.Debug("failed to sample cpu usage", "error", err)
	}

	uptimeSeconds := int(time.Since(s.start).Seconds())
	samples = append(samples, message.StatSample{
		Subtype: message.SubtypeUptime,
		Value:   clampToUint16(float64(uptimeSeconds)),
	})

	if len(samples) == 0 {
		return
	}

	batch := message.NewStats(s.seqs, samples)
	if batch.Len() > gzipSizeThreshold {
		s.sendCompressed(samples)
		return
	}
	s.sender.SendStats(samples)
}

// sendCompressed gzip-compresses the encoded batch and forwards it as a
// debug-adjacent line, used only for unusually large sample batches; the
// ordinary path sends the Stats frame directly.
func (s *Sampler) sendCompressed(samples []message.StatSample) {
	raw := message.NewStats(s.seqs, samples).Payload()

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, flate.BestSpeed)
	if err != nil {
		s.log.Warn("gzip writer init failed, sending uncompressed", "error", err)
		s.sender.SendStats(samples)
		return
	}
	if _, err := w.Write(raw); err != nil {
		s.log.Warn("gzip write failed, sending uncompressed", "error", err)
		s.sender.SendStats(samples)
		return
	}
	if err := w.Close(); err != nil {
		s.log.Warn("gzip close failed, sending uncompressed", "error", err)
		s.sender.SendStats(samples)
		return
	}
	s.sender.SendDebug("stats.gz:" + buf.String())
}

func clampToUint16(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}
