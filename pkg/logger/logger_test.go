package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/pkg/logger"
)

func decode(buf *bytes.Buffer) map[string]any {
	var parsed map[string]any
	ExpectWithOffset(1, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &parsed)).To(Succeed())
	return parsed
}

var testTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

var _ = Describe("Logger", func() {
	Describe("ParseFormat", func() {
		DescribeTable("accepts known formats",
			func(in string, want logger.Format) {
				got, err := logger.ParseFormat(in)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(want))
			},
			Entry("empty", "", logger.FormatText),
			Entry("text", "text", logger.FormatText),
			Entry("pretty", "Pretty", logger.FormatPretty),
			Entry("json", " json ", logger.FormatJSON),
		)

		It("rejects unknown formats", func() {
			_, err := logger.ParseFormat("xml")
			Expect(err).To(MatchError(ContainSubstring("unknown log format")))
		})
	})

	Describe("New", func() {
		It("writes text records at info by default", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			l.Info("bucket ingested", "collection", "manual")
			l.Debug("hidden")

			Expect(buf.String()).To(ContainSubstring("bucket ingested"))
			Expect(buf.String()).To(ContainSubstring("collection=manual"))
			Expect(buf.String()).NotTo(ContainSubstring("hidden"))
		})

		It("lowers the level with WithDebug", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithDebug(true))
			l.Debug("excluded chunk", "id", 3)

			Expect(buf.String()).To(ContainSubstring("excluded chunk"))
		})

		It("writes JSON records", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatJSON))
			l.Info("query", "top_k", 4)

			parsed := decode(&buf)
			Expect(parsed["msg"]).To(Equal("query"))
			Expect(parsed["top_k"]).To(BeNumerically("==", 4))
		})

		It("writes pretty records", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatPretty))
			l.Info("pretty output")

			Expect(buf.String()).To(ContainSubstring("pretty output"))
		})

		It("nests group attributes", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatJSON))
			l.WithGroup("request").Info("processed", "method", "POST")

			group, ok := decode(&buf)["request"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(group["method"]).To(Equal("POST"))
		})
	})

	Describe("NewLogger", func() {
		It("enables debug records only when asked", func() {
			Expect(logger.NewLogger(true).Enabled(context.Background(), slog.LevelDebug)).To(BeTrue())
			Expect(logger.NewLogger(false).Enabled(context.Background(), slog.LevelDebug)).To(BeFalse())
		})
	})

	Describe("NewServeLogger", func() {
		It("appends JSON records to the log file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "logs", "serve.log")
			l, closeFn, err := logger.NewServeLogger(false, path)
			Expect(err).NotTo(HaveOccurred())

			l.Info("api server listening", "listen", ":8081")
			Expect(closeFn()).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())

			var parsed map[string]any
			Expect(json.Unmarshal(bytes.TrimSpace(data), &parsed)).To(Succeed())
			Expect(parsed["msg"]).To(Equal("api server listening"))
			Expect(parsed["listen"]).To(Equal(":8081"))
		})

		It("skips the file when none is given", func() {
			l, closeFn, err := logger.NewServeLogger(false, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(l).NotTo(BeNil())
			Expect(closeFn()).To(Succeed())
		})
	})

	Describe("Nop", func() {
		It("discards everything", func() {
			l := logger.Nop()
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
			Expect(func() { l.With("k", "v").WithGroup("g").Error("msg") }).NotTo(Panic())
		})
	})

	Describe("Multi", func() {
		It("dispatches to every logger", func() {
			var buf1, buf2 bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&buf1)),
				nil,
				logger.New(logger.WithWriter(&buf2)),
			)

			multi.Info("broadcast", "key", "val")

			Expect(buf1.String()).To(ContainSubstring("broadcast"))
			Expect(buf2.String()).To(ContainSubstring("broadcast"))
		})

		It("respects each logger's level", func() {
			var quiet, verbose bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&quiet)),
				logger.New(logger.WithWriter(&verbose), logger.WithDebug(true)),
			)

			multi.Debug("detail")

			Expect(quiet.String()).To(BeEmpty())
			Expect(verbose.String()).To(ContainSubstring("detail"))
		})

		It("carries With attributes to every logger", func() {
			var buf bytes.Buffer
			multi := logger.Multi(logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatJSON)))

			multi.With("component", "retrieval").Info("hello")

			Expect(decode(&buf)["component"]).To(Equal("retrieval"))
		})

		It("keeps writing after one handler fails", func() {
			var buf bytes.Buffer
			good := logger.New(logger.WithWriter(&buf))
			bad := slog.New(failingHandler{Handler: good.Handler()})

			err := logger.Multi(bad, good).Handler().Handle(context.Background(),
				slog.NewRecord(testTime, slog.LevelInfo, "still here", 0))

			Expect(err).To(MatchError("sink down"))
			Expect(strings.Count(buf.String(), "still here")).To(Equal(1))
		})
	})
})
