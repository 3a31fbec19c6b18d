package model_test

import (
	"testing"

	"github.com/okian/hantei/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRole(t *testing.T) {
	Convey("Given the session roles", t, func() {
		Convey("Then each should render its wire name", func() {
			So(model.RoleUnclassified.String(), ShouldEqual, "unclassified")
			So(model.RoleReferee.String(), ShouldEqual, "referee")
			So(model.RoleDisplay.String(), ShouldEqual, "display")
			So(model.Role(42).String(), ShouldEqual, "unclassified")
		})

		Convey("Then the zero value should be unclassified", func() {
			var r model.Role
			So(r, ShouldEqual, model.RoleUnclassified)
			So(len(model.Roles), ShouldEqual, 3)
		})
	})
}

func TestSignature(t *testing.T) {
	Convey("Given two signatures", t, func() {
		a := model.Signature{Target: model.TargetRed, Category: "trunk", Magnitude: 2}
		b := model.Signature{Target: model.TargetRed, Category: "trunk", Magnitude: 2}
		c := model.Signature{Target: model.TargetRed, Category: "head", Magnitude: 2}

		Convey("Then identical fields should compare equal and key maps", func() {
			So(a, ShouldResemble, b)
			m := map[model.Signature]int{a: 1}
			So(m[b], ShouldEqual, 1)
			So(m[c], ShouldEqual, 0)
		})

		Convey("Then String should be stable", func() {
			So(a.String(), ShouldEqual, "red:trunk:2")
		})
	})
}
