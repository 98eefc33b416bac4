package chart

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/okian/nakshatra/internal/domain/ephemeris"
	. "github.com/smartystreets/goconvey/convey"
)

// fixedProvider returns canned tropical longitudes and records the instants it saw.
type fixedProvider struct {
	mu        sync.Mutex
	positions map[ephemeris.Body]float64
	fail      map[ephemeris.Body]error
	seen      []time.Time
}

func (p *fixedProvider) PositionOf(_ context.Context, body ephemeris.Body, instant time.Time) (float64, error) {
	p.mu.Lock()
	p.seen = append(p.seen, instant)
	p.mu.Unlock()
	if err, ok := p.fail[body]; ok {
		return 0, err
	}
	lon, ok := p.positions[body]
	if !ok {
		return 0, ephemeris.ErrUnsupportedBody
	}
	return lon, nil
}

func newFixedProvider() *fixedProvider {
	return &fixedProvider{
		positions: map[ephemeris.Body]float64{
			ephemeris.Sun:     100,
			ephemeris.Moon:    200.5,
			ephemeris.Mercury: 95,
			ephemeris.Venus:   10,
			ephemeris.Mars:    370, // outside [0, 360) on purpose
			ephemeris.Jupiter: 300,
			ephemeris.Saturn:  -20,
		},
		fail: map[ephemeris.Body]error{},
	}
}

var ongole = time.Date(1976, 7, 31, 8, 12, 0, 0, time.UTC) //nolint:gochecknoglobals // test fixture

func TestNewCalculator(t *testing.T) {
	Convey("Given no provider", t, func() {
		_, err := NewCalculator(nil)

		Convey("Then construction should fail", func() {
			So(errors.Is(err, ErrNilProvider), ShouldBeTrue)
		})
	})
}

func TestComputeBodyLongitude(t *testing.T) {
	Convey("Given a calculator over a fixed provider", t, func() {
		p := newFixedProvider()
		calc, err := NewCalculator(p)
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When the provider returns an unnormalized value", func() {
			lon, err := calc.ComputeBodyLongitude(ctx, ephemeris.Mars, ongole)

			Convey("Then it should be normalized", func() {
				So(err, ShouldBeNil)
				So(lon, ShouldEqual, 10)
			})
		})

		Convey("When the body is Rahu", func() {
			_, err := calc.ComputeBodyLongitude(ctx, ephemeris.Rahu, ongole)

			Convey("Then it should be rejected as unsupported", func() {
				So(errors.Is(err, ErrUnsupportedBody), ShouldBeTrue)
				So(len(p.seen), ShouldEqual, 0)
			})
		})

		Convey("When the body is unknown", func() {
			_, err := calc.ComputeBodyLongitude(ctx, ephemeris.Body("Pluto"), ongole)

			Convey("Then it should be rejected as unsupported", func() {
				So(errors.Is(err, ErrUnsupportedBody), ShouldBeTrue)
				var ce *Error
				So(errors.As(err, &ce), ShouldBeTrue)
				So(ce.Op, ShouldEqual, "chart.ComputeBodyLongitude")
			})
		})

		Convey("When the provider returns a non-finite value", func() {
			p.positions[ephemeris.Venus] = math.NaN()
			_, err := calc.ComputeBodyLongitude(ctx, ephemeris.Venus, ongole)

			Convey("Then it should be a provider failure", func() {
				So(errors.Is(err, ErrEphemerisProvider), ShouldBeTrue)
			})
		})

		Convey("When the instant carries a zone", func() {
			ist := time.FixedZone("IST", 5*3600+1800)
			_, err := calc.ComputeBodyLongitude(ctx, ephemeris.Sun, ongole.In(ist))

			Convey("Then the provider should receive it in UTC", func() {
				So(err, ShouldBeNil)
				So(p.seen[0].Location(), ShouldEqual, time.UTC)
				So(p.seen[0].Equal(ongole), ShouldBeTrue)
			})
		})
	})
}

func TestComputeChart(t *testing.T) {
	Convey("Given a calculator over a fixed provider", t, func() {
		p := newFixedProvider()
		calc, err := NewCalculator(p)
		So(err, ShouldBeNil)
		ctx := context.Background()
		instant := time.Date(2000, 6, 1, 6, 30, 0, 0, time.UTC)

		Convey("When computing a chart", func() {
			ch, err := calc.ComputeChart(ctx, instant, 15.5, 80.0)
			So(err, ShouldBeNil)

			Convey("Then all eight bodies should be present", func() {
				So(len(ch.Planets), ShouldEqual, 8)
				for _, b := range ephemeris.ChartBodies {
					_, ok := ch.Planets[b]
					So(ok, ShouldBeTrue)
				}
			})

			Convey("Then longitudes should be converted with the year's ayanamsa", func() {
				So(ch.AyanamsaDegrees, ShouldEqual, 23.85)
				So(ch.Planets[ephemeris.Sun].Longitude, ShouldAlmostEqual, 76.15, 1e-9)
				So(ch.Planets[ephemeris.Sun].Sign, ShouldEqual, Gemini)
				So(ch.Planets[ephemeris.Sun].SignNumber, ShouldEqual, 3)
				So(ch.Planets[ephemeris.Saturn].Longitude, ShouldAlmostEqual, 316.15, 1e-9)
			})

			Convey("Then Rahu should sit exactly opposite the Moon", func() {
				moon := ch.Planets[ephemeris.Moon].Longitude
				So(ch.Planets[ephemeris.Rahu].Longitude, ShouldEqual, math.Mod(moon+180, 360))
			})

			Convey("Then the ascendant should advance the Sun by 15° per hour", func() {
				// 100 + 6.5*15 = 197.5 tropical
				So(ch.Ascendant.Longitude, ShouldAlmostEqual, 197.5-23.85, 1e-9)
				So(ch.Ascendant.Sign, ShouldEqual, Virgo)
				So(ch.Ascendant.Degree, ShouldAlmostEqual, 173.65-150, 1e-9)
			})

			Convey("Then the location should be recorded but not used", func() {
				other, err := calc.ComputeChart(ctx, instant, -33.9, -18.4)
				So(err, ShouldBeNil)
				So(ch.Latitude, ShouldEqual, 15.5)
				So(other.Ascendant, ShouldResemble, ch.Ascendant)
			})
		})

		Convey("When a body fails in the provider", func() {
			boom := errors.New("kernel file missing")
			p.fail[ephemeris.Mars] = boom
			ch, err := calc.ComputeChart(ctx, instant, 0, 0)

			Convey("Then the chart should fail without partial data", func() {
				So(errors.Is(err, ErrEphemerisProvider), ShouldBeTrue)
				So(errors.Is(err, boom), ShouldBeTrue)
				So(ch.Planets, ShouldBeNil)
				var ce *Error
				So(errors.As(err, &ce), ShouldBeTrue)
				So(ce.Op, ShouldEqual, "chart.ComputeChart")
			})
		})

		Convey("When the provider does not know a body", func() {
			delete(p.positions, ephemeris.Jupiter)
			_, err := calc.ComputeChart(ctx, instant, 0, 0)

			Convey("Then the chart should fail as unsupported", func() {
				So(errors.Is(err, ErrUnsupportedBody), ShouldBeTrue)
				So(errors.Is(err, ErrEphemerisProvider), ShouldBeFalse)
			})
		})
	})
}

func TestComputeChartWithBuiltinProvider(t *testing.T) {
	Convey("Given the documented Ongole birth", t, func() {
		calc, err := NewCalculator(ephemeris.NewBuiltinProvider())
		So(err, ShouldBeNil)
		ctx := context.Background()

		ch, err := calc.ComputeChart(ctx, ongole, 15.5057, 80.0499)
		So(err, ShouldBeNil)

		Convey("Then Rahu should equal the Moon plus 180 normalized", func() {
			moon := ch.Planets[ephemeris.Moon].Longitude
			So(ch.Planets[ephemeris.Rahu].Longitude, ShouldEqual, Normalize(moon+180))
		})

		Convey("Then every body should have a valid pada", func() {
			So(len(ch.Planets), ShouldEqual, 8)
			for _, pos := range ch.Planets {
				So(pos.Pada, ShouldBeBetweenOrEqual, 1, 4)
				So(pos.Longitude, ShouldBeGreaterThanOrEqualTo, 0)
				So(pos.Longitude, ShouldBeLessThan, 360)
			}
		})

		Convey("Then the placements should match the reference ephemeris", func() {
			So(ch.Ascendant.Sign.Valid(), ShouldBeTrue)
			So(ch.Ascendant.Sign, ShouldEqual, Scorpio)
			So(ch.Planets[ephemeris.Sun].Sign, ShouldEqual, Cancer)
			So(ch.Planets[ephemeris.Moon].Sign, ShouldEqual, Virgo)
			So(ch.Planets[ephemeris.Moon].Nakshatra.String(), ShouldEqual, "Hasta")
			So(ch.Planets[ephemeris.Rahu].Sign, ShouldEqual, Pisces)
			So(ch.Planets[ephemeris.Jupiter].Sign, ShouldEqual, Taurus)
			So(ch.AyanamsaDegrees, ShouldAlmostEqual, 23.85-24*0.0138889, 1e-12)
		})

		Convey("Then recomputing should be bit-identical", func() {
			again, err := calc.ComputeChart(ctx, ongole, 15.5057, 80.0499)
			So(err, ShouldBeNil)
			So(again, ShouldResemble, ch)
		})

		Convey("Then a zone-less instant should equal the explicit UTC one", func() {
			naive, err := ParseInstant("1976-07-31T08:12:00")
			So(err, ShouldBeNil)
			tagged, err := ParseInstant("1976-07-31T08:12:00Z")
			So(err, ShouldBeNil)
			shifted, err := ParseInstant("1976-07-31T13:42:00+05:30")
			So(err, ShouldBeNil)

			a, err := calc.ComputeChart(ctx, naive, 15.5057, 80.0499)
			So(err, ShouldBeNil)
			b, err := calc.ComputeChart(ctx, tagged, 15.5057, 80.0499)
			So(err, ShouldBeNil)
			c, err := calc.ComputeChart(ctx, shifted, 15.5057, 80.0499)
			So(err, ShouldBeNil)
			So(a, ShouldResemble, b)
			So(c, ShouldResemble, ch)
		})
	})
}

func TestComputeTransits(t *testing.T) {
	Convey("Given a calculator over the builtin provider", t, func() {
		calc, err := NewCalculator(ephemeris.NewBuiltinProvider())
		So(err, ShouldBeNil)
		ctx := context.Background()
		instant := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

		Convey("When computing transits", func() {
			tr, err := calc.ComputeTransits(ctx, instant)
			So(err, ShouldBeNil)

			Convey("Then they should agree with the full chart", func() {
				ch, err := calc.ComputeChart(ctx, instant, 0, 0)
				So(err, ShouldBeNil)
				for _, b := range ephemeris.ChartBodies {
					So(tr[b].Sign, ShouldEqual, ch.Planets[b].Sign)
					So(tr[b].Degree, ShouldEqual, ch.Planets[b].Degree)
				}
			})

			Convey("Then the JSON should carry only sign and degree for eight bodies", func() {
				raw, err := json.Marshal(tr)
				So(err, ShouldBeNil)
				var decoded map[string]map[string]any
				So(json.Unmarshal(raw, &decoded), ShouldBeNil)

				names := make([]string, 0, len(decoded))
				for name, fields := range decoded {
					names = append(names, name)
					keys := make([]string, 0, len(fields))
					for k := range fields {
						keys = append(keys, k)
					}
					sort.Strings(keys)
					So(keys, ShouldResemble, []string{"degree", "sign"})
				}
				sort.Strings(names)
				So(names, ShouldResemble, []string{"Jupiter", "Mars", "Mercury", "Moon", "Rahu", "Saturn", "Sun", "Venus"})
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			tr, err := calc.ComputeTransits(cctx, instant)

			Convey("Then it should fail as a provider failure", func() {
				So(tr, ShouldBeNil)
				So(errors.Is(err, ErrEphemerisProvider), ShouldBeTrue)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestChartJSON(t *testing.T) {
	Convey("Given a computed chart", t, func() {
		calc, err := NewCalculator(ephemeris.NewBuiltinProvider())
		So(err, ShouldBeNil)
		ch, err := calc.ComputeChart(context.Background(), ongole, 15.5057, 80.0499)
		So(err, ShouldBeNil)

		Convey("When encoding it", func() {
			raw, err := json.Marshal(ch)
			So(err, ShouldBeNil)

			Convey("Then signs and nakshatras should be names", func() {
				So(string(raw), ShouldContainSubstring, `"sign":"Scorpio"`)
				So(string(raw), ShouldContainSubstring, `"nakshatra":"Hasta"`)
				So(string(raw), ShouldContainSubstring, `"ayanamsa_degrees":`)
			})

			Convey("Then decoding should restore the same chart", func() {
				var back Chart
				So(json.Unmarshal(raw, &back), ShouldBeNil)
				So(back.Planets, ShouldResemble, ch.Planets)
				So(back.Ascendant, ShouldResemble, ch.Ascendant)
				So(back.Instant.Equal(ch.Instant), ShouldBeTrue)
			})
		})
	})
}

func TestErrorMessages(t *testing.T) {
	Convey("Given calculator errors", t, func() {
		Convey("Then a kind-only error should print op and kind", func() {
			e := &Error{Op: "chart.X", Kind: ErrUnsupportedBody}
			So(e.Error(), ShouldEqual, "chart.X: unsupported body")
		})

		Convey("Then a wrapped cause should print once", func() {
			e := providerError("chart.X", errors.New("no data"))
			So(e.Error(), ShouldEqual, "chart.X: ephemeris provider failure: no data")
		})
	})
}
