package worker

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRegistryRegister(t *testing.T) {
	registry := NewRegistry()

	Convey("Given a new registry", t, func() {
		Convey("And a worker for a task type", func() {
			image := &FailingWorker{Reason: "image"}

			Convey("When the worker is registered", func() {
				registry.Register("text2image", image)

				Convey("It should resolve by task type", func() {
					resolved, ok := registry.Resolve("text2image")

					So(ok, ShouldBeTrue)
					So(resolved, ShouldEqual, image)
				})
			})
		})
	})
}

func TestRegistryResolveUnknown(t *testing.T) {
	registry := NewRegistry()

	Convey("Given a registry without workers", t, func() {
		Convey("When resolving an unknown task type", func() {
			resolved, ok := registry.Resolve("text2song")

			Convey("It should report a miss", func() {
				So(ok, ShouldBeFalse)
				So(resolved, ShouldBeNil)
			})
		})
	})
}

func TestRegistryTypes(t *testing.T) {
	registry := NewRegistry()

	Convey("Given a registry with several workers", t, func() {
		registry.Register("text2video", &FailingWorker{Reason: "video"})
		registry.Register("text2image", &FailingWorker{Reason: "image"})
		registry.Register("text2audio", &FailingWorker{Reason: "audio"})

		Convey("When listing the task types", func() {
			types := registry.Types()

			Convey("It should return them in sorted order", func() {
				So(types, ShouldResemble, []string{"text2audio", "text2image", "text2video"})
			})
		})
	})
}

func TestRegistryReplace(t *testing.T) {
	registry := NewRegistry()

	Convey("Given a registry with a worker for a task type", t, func() {
		registry.Register("text2image", &FailingWorker{Reason: "old"})

		Convey("When a second worker is registered for the same type", func() {
			replacement := &FailingWorker{Reason: "new"}
			registry.Register("text2image", replacement)

			Convey("It should resolve to the replacement", func() {
				resolved, ok := registry.Resolve("text2image")

				So(ok, ShouldBeTrue)
				So(resolved, ShouldEqual, replacement)
			})
		})
	})
}
