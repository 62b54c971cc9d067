package util

import (
	"testing"

	"github.com/mi-skam/bramble/filesystem"
	. "github.com/smartystreets/goconvey/convey"
)

func TestQuantify(t *testing.T) {
	Convey("Quantify", t, func() {
		So(Quantify(1, "item", "items"), ShouldEqual, "1 item")
		So(Quantify(0, "item", "items"), ShouldEqual, "0 items")
		So(Quantify(7, "entry", "entries"), ShouldEqual, "7 entries")
	})
}

func TestCapitalize(t *testing.T) {
	Convey("Capitalize", t, func() {
		So(Capitalize("media"), ShouldEqual, "Media")
		So(Capitalize(""), ShouldEqual, "")
		So(Capitalize("X"), ShouldEqual, "X")
	})
}

func TestMinMax(t *testing.T) {
	Convey("Min and Max", t, func() {
		So(Max(1, 3, 2), ShouldEqual, 3)
		So(Min(4, 2, 8), ShouldEqual, 2)
		So(Max[int](), ShouldEqual, 0)
	})
}

func TestDelete(t *testing.T) {
	filesystem.SetMemMapFs()
	defer filesystem.SetOsFs()

	Convey("Delete", t, func() {
		Convey("Should remove a file", func() {
			So(filesystem.API().WriteFile("/f.txt", []byte("x"), 0644), ShouldBeNil)
			So(Delete("/f.txt"), ShouldBeNil)
			exists, _ := filesystem.API().Exists("/f.txt")
			So(exists, ShouldBeFalse)
		})

		Convey("Should remove a directory recursively", func() {
			So(filesystem.API().WriteFile("/d/sub/f.txt", []byte("x"), 0644), ShouldBeNil)
			So(Delete("/d"), ShouldBeNil)
			exists, _ := filesystem.API().Exists("/d")
			So(exists, ShouldBeFalse)
		})

		Convey("Should error on missing paths", func() {
			So(Delete("/missing"), ShouldNotBeNil)
		})
	})
}
