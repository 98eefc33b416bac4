package smoke

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerateProfiles(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		profiles := generateProfiles(200, 42)

		So(profiles, ShouldHaveLength, 200)

		Convey("Every profile is registrable", func() {
			ids := map[string]bool{}
			for _, p := range profiles {
				ids[p.UserID] = true
				birth, err := time.Parse("2006-01-02 15:04", p.DOB+" "+p.TOB)
				So(err, ShouldBeNil)
				So(birth.Before(firstInstant), ShouldBeFalse)
				So(birth.After(lastInstant), ShouldBeFalse)
				So(p.Latitude, ShouldBeBetweenOrEqual, -90, 90)
				So(p.Longitude, ShouldBeBetweenOrEqual, -180, 180)
				So(p.Place, ShouldNotBeEmpty)
			}
			So(ids, ShouldHaveLength, 200)
		})

		Convey("The same seed gives the same birth data", func() {
			again := generateProfiles(200, 42)
			for i := range profiles {
				So(again[i].DOB, ShouldEqual, profiles[i].DOB)
				So(again[i].TOB, ShouldEqual, profiles[i].TOB)
				So(again[i].Latitude, ShouldEqual, profiles[i].Latitude)
			}
		})
	})
}
