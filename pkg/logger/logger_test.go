package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with defaults", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get returns it", func() {
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initialized with an unknown format", func() {
			err := Init(WithFormat("xml"))

			Convey("Then it fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestLoggerOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf), WithFormat("json")), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging with fields", func() {
			Get().Info(ctx, "standings computed",
				String("tournament", "open"),
				Int("players", 12),
				Float64("points", 2.5),
				Bool("cached", false),
				Error(errors.New("boom")),
			)

			Convey("Then the record carries every field and the caller", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "standings computed")
				So(rec["tournament"], ShouldEqual, "open")
				So(rec["players"], ShouldEqual, 12.0)
				So(rec["points"], ShouldEqual, 2.5)
				So(rec["cached"], ShouldEqual, false)
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When logging below the level", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			Get().Info(ctx, "hidden")
			Get().Warn(ctx, "shown")

			Convey("Then only the visible record is written", func() {
				So(strings.Contains(buf.String(), "hidden"), ShouldBeFalse)
				So(strings.Contains(buf.String(), "shown"), ShouldBeTrue)
			})
		})

		Convey("When using a named logger", func() {
			Named("worker").Info(ctx, "job done", String("player", "7"))

			Convey("Then fields are grouped under the name", func() {
				So(buf.String(), ShouldContainSubstring, `"worker":{`)
			})
		})

		Convey("When setting an unknown level", func() {
			Convey("Then it is rejected", func() {
				So(SetLevelString("verbose"), ShouldNotBeNil)
			})
		})

		Reset(func() { _ = SetLevelString("info") })
	})
}
